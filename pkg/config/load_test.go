package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"verity-hq/callisto/pkg/providers"
)

const sampleConfig = `
mode: production
required_capabilities:
  - inference

providers:
  gemini:
    capability: inference
    subtype: openai-compatible
    enabled: true
    priority: 20
    default: true
    base_url: https://generativelanguage.example.com
    api_key: file-key
    timeout: 20s
    retry:
      max_retries: 2
      base_delay: 500ms
      max_delay: 10s
      backoff_multiplier: 2.0
  local-ollama:
    capability: inference
    subtype: openai-compatible
    enabled: true
    priority: 5
    base_url: http://localhost:11434

health_check:
  enabled: true
  interval: 30s

history:
  enabled: true
  path: /tmp/history.db
  retention_days: 7

telemetry:
  logging:
    level: debug
    format: text
  metrics:
    enabled: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callisto.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Mode != ModeProduction {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}

	gemini := cfg.Providers["gemini"]
	if gemini.Capability != providers.CapabilityInference || !gemini.Default || gemini.Priority != 20 {
		t.Errorf("unexpected gemini settings: %+v", gemini)
	}
	if gemini.Timeout != 20*time.Second {
		t.Errorf("gemini timeout = %s", gemini.Timeout)
	}
	if gemini.Retry.MaxRetries != 2 || gemini.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("unexpected retry policy: %+v", gemini.Retry)
	}

	// Defaults fill in the unset fields.
	ollama := cfg.Providers["local-ollama"]
	if ollama.Timeout != DefaultProviderTimeout {
		t.Errorf("expected default timeout, got %s", ollama.Timeout)
	}
	if ollama.Retry != providers.DefaultRetryPolicy() {
		t.Errorf("expected default retry policy, got %+v", ollama.Retry)
	}
	if cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
		t.Errorf("expected default metrics path, got %q", cfg.Telemetry.Metrics.Path)
	}
	if cfg.History.PruneSchedule != DefaultPruneSchedule {
		t.Errorf("expected default prune schedule, got %q", cfg.History.PruneSchedule)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/callisto.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "providers: [not a map")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("CALLISTO_MODE", "development")
	t.Setenv("CALLISTO_PROVIDERS_GEMINI_API_KEY", "env-key")
	t.Setenv("CALLISTO_PROVIDERS_LOCAL_OLLAMA_PRIORITY", "42")
	t.Setenv("CALLISTO_HEALTH_CHECK_INTERVAL", "5s")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Mode != ModeDevelopment {
		t.Errorf("env override for mode not applied, got %q", cfg.Mode)
	}
	if got := cfg.Providers["gemini"].APIKey; got != "env-key" {
		t.Errorf("env override for api key not applied, got %q", got)
	}
	if got := cfg.Providers["local-ollama"].Priority; got != 42 {
		t.Errorf("env override for hyphenated provider not applied, got %d", got)
	}
	if cfg.HealthCheck.Interval != 5*time.Second {
		t.Errorf("env override for interval not applied, got %s", cfg.HealthCheck.Interval)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Mode: "staging",
		Providers: map[string]ProviderSettings{
			"bad": {
				Capability: "graphics",
				BaseURL:    "",
				Priority:   -1,
			},
		},
		HealthCheck: HealthCheckConfig{Enabled: true, Interval: 0},
		History:     HistoryConfig{Enabled: true, Path: "", RetentionDays: 0},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{Level: "verbose", Format: "xml"},
		},
	}

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) < 7 {
		t.Errorf("expected all errors collected, got %d: %v", len(verr.Errors), verr)
	}
}

func TestValidateBaseURL(t *testing.T) {
	base := ProviderSettings{
		Capability: providers.CapabilityAuth,
		Timeout:    time.Second,
	}

	tests := []struct {
		url string
		ok  bool
	}{
		{"https://auth.example.com", true},
		{"http://localhost:8080", true},
		{"not-a-url", false},
		{"/relative/path", false},
		{"", false},
	}

	for _, tt := range tests {
		p := base
		p.BaseURL = tt.url
		errs := validateProvider("p", p)
		if tt.ok && len(errs) != 0 {
			t.Errorf("url %q: unexpected errors %v", tt.url, errs)
		}
		if !tt.ok && len(errs) == 0 {
			t.Errorf("url %q: expected validation error", tt.url)
		}
	}
}

func TestWatcherTriggersReload(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	reloaded := make(chan struct{}, 1)
	if err := w.Start(func() error {
		select {
		case reloaded <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig+"\n# touched\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not trigger reload")
	}
}
