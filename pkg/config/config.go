// Package config defines the application configuration schema and its
// loading, defaulting and validation logic.
package config

import (
	"time"

	"verity-hq/callisto/pkg/providers"
)

// Modes the application can run in. Production treats validation
// problems as fatal; development downgrades them to warnings.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Config is the root configuration structure.
type Config struct {
	// Mode selects strict (production) or permissive (development)
	// validation behavior.
	Mode string `yaml:"mode"`

	// RequiredCapabilities lists capability types that must have at
	// least one registered provider for initialization to succeed.
	RequiredCapabilities []providers.CapabilityType `yaml:"required_capabilities"`

	// Providers maps provider name to its settings.
	Providers map[string]ProviderSettings `yaml:"providers"`

	// HealthCheck controls the registry's periodic health sweeps.
	HealthCheck HealthCheckConfig `yaml:"health_check"`

	// History controls health snapshot persistence.
	History HistoryConfig `yaml:"history"`

	// Telemetry controls logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server configures the status/metrics HTTP listener.
	Server ServerConfig `yaml:"server"`
}

// ProviderSettings configures a single provider instance.
type ProviderSettings struct {
	// Capability is the capability type (inference, auth, storage,
	// knowledge).
	Capability providers.CapabilityType `yaml:"capability"`

	// Subtype names the concrete backend kind within the capability.
	Subtype string `yaml:"subtype"`

	// Enabled controls participation in selection.
	Enabled bool `yaml:"enabled"`

	// Priority orders providers within a capability (higher wins).
	Priority int `yaml:"priority"`

	// Default marks the capability's preferred provider.
	Default bool `yaml:"default"`

	// FallbackOrder breaks priority ties (lower tried first).
	FallbackOrder int `yaml:"fallback_order"`

	// BaseURL is the backend endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey is the credential. Prefer the environment override
	// CALLISTO_PROVIDERS_<NAME>_API_KEY over committing keys to file.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout"`

	// RateLimits enables client-side throttling when set.
	RateLimits *providers.RateLimits `yaml:"rate_limits"`

	// Retry tunes the retry/backoff policy.
	Retry providers.RetryPolicy `yaml:"retry"`
}

// HealthCheckConfig controls periodic health sweeps.
type HealthCheckConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// HistoryConfig controls health snapshot persistence.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file location.
	Path string `yaml:"path"`

	// RetentionDays bounds how long snapshots are kept.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for the retention job.
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig controls logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig configures the status/metrics HTTP listener.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ToProviderConfig converts settings to the provider-layer config with
// the given name.
func (s ProviderSettings) ToProviderConfig(name string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:       name,
		Capability: s.Capability,
		Subtype:    s.Subtype,
		Enabled:    s.Enabled,
		Priority:   s.Priority,
		BaseURL:    s.BaseURL,
		APIKey:     s.APIKey,
		Timeout:    s.Timeout,
		RateLimits: s.RateLimits,
		Retry:      s.Retry,
	}
}
