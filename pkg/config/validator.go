package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/OldStager01/leakwatch/pkg/validation"
)

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, fmt.Errorf("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("app.log_level must be one of: debug, info, warn, error"))
	}

	if c.App.InstallationID == "" {
		errs = append(errs, errors.New("app.installation_id is required"))
	} else if err := validation.ValidateInstallationID(c.App.InstallationID); err != nil {
		errs = append(errs, fmt.Errorf("app.installation_id: %w", err))
	}
	if c.App.Timezone != "" {
		if _, err := time.LoadLocation(c.App.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("app.timezone %q is not a known time zone", c.App.Timezone))
		}
	}

	// Engine validation
	if c.Engine.SequenceLength < 3 {
		errs = append(errs, errors.New("engine.sequence_length must be at least 3"))
	}
	if c.Engine.HistoryLength < 5 {
		errs = append(errs, errors.New("engine.history_length must be at least 5"))
	}
	if c.Engine.InitialThreshold <= 0 || c.Engine.InitialThreshold >= 1 {
		errs = append(errs, errors.New("engine.initial_threshold must be between 0 and 1"))
	}
	if c.Engine.CriticalProbability <= 0 || c.Engine.CriticalProbability >= 1 {
		errs = append(errs, errors.New("engine.critical_probability must be between 0 and 1"))
	}
	if c.Engine.ForecastHorizonHours <= 0 {
		errs = append(errs, errors.New("engine.forecast_horizon_hours must be positive"))
	}

	// Baseline validation
	if c.Baseline.MinSamples <= 0 {
		errs = append(errs, errors.New("baseline.min_samples must be positive"))
	}
	if c.Baseline.MaxSamples < c.Baseline.MinSamples {
		errs = append(errs, errors.New("baseline.max_samples must be >= min_samples"))
	}
	if c.Baseline.AnomalyThreshold <= 0 || c.Baseline.AnomalyThreshold >= 1 {
		errs = append(errs, errors.New("baseline.anomaly_threshold must be between 0 and 1"))
	}
	if c.Baseline.SaveInterval < 0 {
		errs = append(errs, errors.New("baseline.save_interval must not be negative"))
	}

	// Source validation
	switch c.Source.Type {
	case "http":
		if c.Source.Endpoint == "" {
			errs = append(errs, errors.New("source.endpoint is required for the http source"))
		}
	case "mqtt":
		if c.Source.MQTT.Broker == "" || c.Source.MQTT.Topic == "" {
			errs = append(errs, errors.New("source.mqtt.broker and source.mqtt.topic are required for the mqtt source"))
		}
		if c.Source.MQTT.QoS < 0 || c.Source.MQTT.QoS > 2 {
			errs = append(errs, errors.New("source.mqtt.qos must be 0, 1 or 2"))
		}
	case "mock":
	default:
		errs = append(errs, errors.New("source.type must be one of: http, mqtt, mock"))
	}
	if c.Source.Interval <= 0 {
		errs = append(errs, errors.New("source.interval must be positive"))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, errors.New("source.timeout must be positive"))
	}
	if c.Source.Timeout >= c.Source.Interval {
		errs = append(errs, errors.New("source.timeout must be less than source.interval"))
	}

	// Alert validation
	if c.Alerts.Enabled && c.Alerts.Endpoint == "" {
		errs = append(errs, errors.New("alerts.endpoint is required when alerts are enabled"))
	}

	// Database validation
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required"))
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, errors.New("database.port must be between 1 and 65535"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required"))
		}
	case "sqlite3":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite3"))
		}
	case "none", "":
	default:
		errs = append(errs, errors.New("database.driver must be one of: postgres, sqlite3, none"))
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("api.rate_limit must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
