package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"verity-hq/callisto/pkg/providers"
)

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides on top. Variables follow the
// convention CALLISTO_SECTION_FIELD (e.g., CALLISTO_MODE,
// CALLISTO_PROVIDERS_GEMINI_API_KEY) and always win over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CALLISTO_MODE"); val != "" {
		cfg.Mode = val
	}

	if val := os.Getenv("CALLISTO_HEALTH_CHECK_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.HealthCheck.Enabled = b
		}
	}
	if val := os.Getenv("CALLISTO_HEALTH_CHECK_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.HealthCheck.Interval = d
		}
	}

	if val := os.Getenv("CALLISTO_HISTORY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.History.Enabled = b
		}
	}
	if val := os.Getenv("CALLISTO_HISTORY_PATH"); val != "" {
		cfg.History.Path = val
	}
	if val := os.Getenv("CALLISTO_HISTORY_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.History.RetentionDays = i
		}
	}

	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}

	if val := os.Getenv("CALLISTO_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}

	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}
}

// applyProviderEnvOverrides applies CALLISTO_PROVIDERS_<NAME>_<FIELD>
// overrides for one provider. Hyphens in the name map to underscores.
func applyProviderEnvOverrides(cfg *Config, name string) {
	p := cfg.Providers[name]
	envName := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	prefix := "CALLISTO_PROVIDERS_" + envName + "_"

	if val := os.Getenv(prefix + "ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			p.Enabled = b
		}
	}
	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		p.BaseURL = val
	}
	if val := os.Getenv(prefix + "API_KEY"); val != "" {
		p.APIKey = val
	}
	if val := os.Getenv(prefix + "PRIORITY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			p.Priority = i
		}
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			p.Timeout = d
		}
	}
	if val := os.Getenv(prefix + "MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			if p.Retry == (providers.RetryPolicy{}) {
				p.Retry = providers.DefaultRetryPolicy()
			}
			p.Retry.MaxRetries = i
		}
	}

	cfg.Providers[name] = p
}
