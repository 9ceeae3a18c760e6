package config

import (
	"fmt"
	"time"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Baseline   BaselineConfig   `mapstructure:"baseline"`
	Models     ModelsConfig     `mapstructure:"models"`
	Source     SourceConfig     `mapstructure:"source"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Database   DatabaseConfig   `mapstructure:"database"`
	API        APIConfig        `mapstructure:"api"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Events     EventsConfig     `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	InstallationID  string        `mapstructure:"installation_id"`
	Timezone        string        `mapstructure:"timezone"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Location resolves the configured time zone, falling back to local time.
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type EngineConfig struct {
	SequenceLength       int     `mapstructure:"sequence_length"`
	HistoryLength        int     `mapstructure:"history_length"`
	InitialThreshold     float64 `mapstructure:"initial_threshold"`
	CriticalProbability  float64 `mapstructure:"critical_probability"`
	ForecastHorizonHours int     `mapstructure:"forecast_horizon_hours"`
	MaxFeedback          int     `mapstructure:"max_feedback"`
}

type BaselineConfig struct {
	MinSamples       int           `mapstructure:"min_samples"`
	MaxSamples       int           `mapstructure:"max_samples"`
	HourlyMinSamples int           `mapstructure:"hourly_min_samples"`
	AnomalyThreshold float64       `mapstructure:"anomaly_threshold"`
	ProfilePath      string        `mapstructure:"profile_path"`
	SaveInterval     time.Duration `mapstructure:"save_interval"`
}

type ModelsConfig struct {
	BundlePath     string               `mapstructure:"bundle_path"`
	Watch          bool                 `mapstructure:"watch"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type SourceConfig struct {
	Type           string               `mapstructure:"type"`
	Endpoint       string               `mapstructure:"endpoint"`
	Interval       time.Duration        `mapstructure:"interval"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	RetryAttempts  int                  `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration        `mapstructure:"retry_delay"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	MQTT           MQTTConfig           `mapstructure:"mqtt"`
	Mock           MockConfig           `mapstructure:"mock"`
}

type MQTTConfig struct {
	Broker    string `mapstructure:"broker"`
	Topic     string `mapstructure:"topic"`
	ClientID  string `mapstructure:"client_id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	QoS       int    `mapstructure:"qos"`
	KeepAlive int    `mapstructure:"keep_alive"`
}

type MockConfig struct {
	Pattern string `mapstructure:"pattern"`
	Seed    int64  `mapstructure:"seed"`
}

type CircuitBreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
	HalfOpenMax int           `mapstructure:"half_open_max"`
}

type AlertsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"`
	MaxConnections  int           `mapstructure:"max_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

// Enabled reports whether a database is configured at all.
func (d DatabaseConfig) Enabled() bool {
	return d.Driver != "" && d.Driver != "none"
}

func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, sslMode,
	)
}

type APIConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	DefaultLimit    int           `mapstructure:"default_limit"`
	MaxLimit        int           `mapstructure:"max_limit"`
	MaxSeriesLength int           `mapstructure:"max_series_length"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
