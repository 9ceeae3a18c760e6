package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/leakwatch")
	}

	v.SetEnvPrefix("LEAKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "leakwatch")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.installation_id", "default")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("app.shutdown_timeout", "15s")

	// Engine defaults
	v.SetDefault("engine.sequence_length", 10)
	v.SetDefault("engine.history_length", 20)
	v.SetDefault("engine.initial_threshold", 0.65)
	v.SetDefault("engine.critical_probability", 0.75)
	v.SetDefault("engine.forecast_horizon_hours", 24)
	v.SetDefault("engine.max_feedback", 100)

	// Baseline defaults
	v.SetDefault("baseline.min_samples", 100)
	v.SetDefault("baseline.max_samples", 1000)
	v.SetDefault("baseline.hourly_min_samples", 10)
	v.SetDefault("baseline.anomaly_threshold", 0.65)
	v.SetDefault("baseline.profile_path", "./data/profiles")
	v.SetDefault("baseline.save_interval", "1h")

	// Model defaults
	v.SetDefault("models.bundle_path", "./models/bundle.json")
	v.SetDefault("models.watch", true)
	v.SetDefault("models.circuit_breaker.max_failures", 5)
	v.SetDefault("models.circuit_breaker.timeout", "30s")
	v.SetDefault("models.circuit_breaker.half_open_max", 3)

	// Source defaults
	v.SetDefault("source.type", "http")
	v.SetDefault("source.endpoint", "http://localhost:9000")
	v.SetDefault("source.interval", "60s")
	v.SetDefault("source.timeout", "5s")
	v.SetDefault("source.retry_attempts", 3)
	v.SetDefault("source.retry_delay", "1s")
	v.SetDefault("source.circuit_breaker.max_failures", 5)
	v.SetDefault("source.circuit_breaker.timeout", "30s")
	v.SetDefault("source.circuit_breaker.half_open_max", 3)
	v.SetDefault("source.mqtt.broker", "localhost:1883")
	v.SetDefault("source.mqtt.topic", "leakwatch/+/readings")
	v.SetDefault("source.mqtt.qos", 1)
	v.SetDefault("source.mqtt.keep_alive", 30)
	v.SetDefault("source.mock.pattern", "normal")

	// Alert defaults
	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.endpoint", "http://localhost:9000")
	v.SetDefault("alerts.timeout", "5s")

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "leakwatch")
	v.SetDefault("database.user", "leakwatch")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.path", "./data/leakwatch.db")
	v.SetDefault("database.max_connections", 10)

	// API defaults
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("api.max_body_bytes", 1<<20)
	v.SetDefault("api.default_limit", 50)
	v.SetDefault("api.max_limit", 500)
	v.SetDefault("api.max_series_length", 1000)
	v.SetDefault("api.cors.allowed_origins", []string{"*"})

	// WebSocket defaults
	v.SetDefault("websocket.max_connections", 100)
	v.SetDefault("websocket.ping_interval", "30s")

	// Prometheus defaults
	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	// Event defaults
	v.SetDefault("events.buffer_size", 100)
}
