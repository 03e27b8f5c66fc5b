package config

import (
	"fmt"
	"net/url"
	"strings"

	"verity-hq/callisto/pkg/providers"
)

// FieldError is a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "providers.gemini.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects all field errors found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem found, or nil when valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Mode != ModeProduction && cfg.Mode != ModeDevelopment {
		errs = append(errs, FieldError{
			Field:   "mode",
			Message: fmt.Sprintf("must be %q or %q", ModeProduction, ModeDevelopment),
		})
	}

	for _, cap := range cfg.RequiredCapabilities {
		if !cap.Valid() {
			errs = append(errs, FieldError{
				Field:   "required_capabilities",
				Message: fmt.Sprintf("unknown capability type %q", cap),
			})
		}
	}

	for name, p := range cfg.Providers {
		errs = append(errs, validateProvider(name, p)...)
	}

	errs = append(errs, validateHealthCheck(&cfg.HealthCheck)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProvider(name string, p ProviderSettings) []FieldError {
	var errs []FieldError
	prefix := "providers." + name

	if name == "" {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "provider name must not be empty",
		})
	}
	if !p.Capability.Valid() {
		errs = append(errs, FieldError{
			Field:   prefix + ".capability",
			Message: fmt.Sprintf("unknown capability type %q", p.Capability),
		})
	}
	if p.BaseURL == "" {
		errs = append(errs, FieldError{
			Field:   prefix + ".base_url",
			Message: "base URL is required",
		})
	} else if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   prefix + ".base_url",
			Message: "must be a valid absolute URL",
		})
	}
	if p.Priority < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".priority",
			Message: "priority must not be negative",
		})
	}
	if p.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".timeout",
			Message: "timeout must be positive",
		})
	}
	if p.Retry.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".retry.max_retries",
			Message: "max retries must not be negative",
		})
	}
	if p.Retry.BackoffMultiplier < 1 && p.Retry != (providers.RetryPolicy{}) {
		errs = append(errs, FieldError{
			Field:   prefix + ".retry.backoff_multiplier",
			Message: "backoff multiplier must be at least 1",
		})
	}
	if p.Retry.MaxDelay > 0 && p.Retry.MaxDelay < p.Retry.BaseDelay {
		errs = append(errs, FieldError{
			Field:   prefix + ".retry.max_delay",
			Message: "max delay must not be smaller than base delay",
		})
	}
	if p.RateLimits != nil && p.RateLimits.RequestsPerMinute <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".rate_limits.requests_per_minute",
			Message: "requests per minute must be positive when rate limits are set",
		})
	}
	return errs
}

func validateHealthCheck(cfg *HealthCheckConfig) []FieldError {
	var errs []FieldError
	if cfg.Enabled && cfg.Interval <= 0 {
		errs = append(errs, FieldError{
			Field:   "health_check.interval",
			Message: "interval must be positive when health checks are enabled",
		})
	}
	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return errs
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "history.path",
			Message: "path is required when history is enabled",
		})
	}
	if cfg.RetentionDays <= 0 {
		errs = append(errs, FieldError{
			Field:   "history.retention_days",
			Message: "retention days must be positive",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "must be one of: debug, info, warn, error",
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "must be json or text",
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "must start with /",
		})
	}
	return errs
}
