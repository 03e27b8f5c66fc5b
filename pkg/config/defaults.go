package config

import (
	"time"

	"verity-hq/callisto/pkg/providers"
)

// Default values applied to unset configuration fields.
const (
	DefaultMode                = ModeProduction
	DefaultHealthCheckInterval = 60 * time.Second
	DefaultProviderTimeout     = 30 * time.Second
	DefaultHistoryPath         = "callisto-history.db"
	DefaultRetentionDays       = 30
	DefaultPruneSchedule       = "0 3 * * *"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultMetricsPath         = "/metrics"
	DefaultListenAddress       = ":8090"
)

// ApplyDefaults fills unset fields with default values. It is called by
// LoadConfig before validation.
func ApplyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}

	if cfg.HealthCheck.Interval <= 0 {
		cfg.HealthCheck.Interval = DefaultHealthCheckInterval
	}

	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.RetentionDays <= 0 {
		cfg.History.RetentionDays = DefaultRetentionDays
	}
	if cfg.History.PruneSchedule == "" {
		cfg.History.PruneSchedule = DefaultPruneSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	for name, p := range cfg.Providers {
		if p.Timeout <= 0 {
			p.Timeout = DefaultProviderTimeout
		}
		if p.Retry == (providers.RetryPolicy{}) {
			p.Retry = providers.DefaultRetryPolicy()
		}
		cfg.Providers[name] = p
	}
}
