package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"verity-hq/callisto/pkg/providers"
)

func testConfig(baseURL string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:     "test-inference",
		Subtype:  "openai-compatible",
		Enabled:  true,
		Priority: 10,
		BaseURL:  baseURL,
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
		Retry: providers.RetryPolicy{
			MaxRetries:        2,
			BaseDelay:         1 * time.Millisecond,
			MaxDelay:          5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	}
}

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*providers.ProviderConfig)
	}{
		{"missing name", func(c *providers.ProviderConfig) { c.Name = "" }},
		{"missing base URL", func(c *providers.ProviderConfig) { c.BaseURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("http://localhost:0")
			tt.mutate(&cfg)
			_, err := NewProvider(cfg)
			var ce *providers.ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("expected *ConfigError, got %v", err)
			}
		})
	}
}

func TestCompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}

		var req CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-1",
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "credible"}, "finish_reason": "stop"},
			},
		})
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Model:    "verity-check",
		Messages: []Message{{Role: "user", Content: "assess this claim"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "credible" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if m := p.GetMetrics(); m.SuccessfulRequests != 1 {
		t.Errorf("expected 1 successful request, got %d", m.SuccessfulRequests)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "cmpl-2"})
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if _, err := p.Complete(context.Background(), &CompletionRequest{Model: "m"}); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestCompleteMapsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	_, err = p.Complete(context.Background(), &CompletionRequest{Model: "m"})
	var ce *providers.CredentialError
	if !errors.As(err, &ce) {
		t.Errorf("expected *CredentialError, got %v", err)
	}
}

func TestCompleteMapsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	_, err = p.Complete(context.Background(), &CompletionRequest{Model: "m"})
	var rle *providers.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}
	if rle.RetryAfter != 7*time.Second {
		t.Errorf("expected RetryAfter 7s, got %s", rle.RetryAfter)
	}
	if m := p.GetMetrics(); m.RateLimitHits == 0 {
		t.Error("expected rate limit hits to be counted")
	}
}

func TestPerformHealthCheck(t *testing.T) {
	healthy := atomic.Bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected probe path %s", r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.PerformHealthCheck(context.Background()); err == nil {
		t.Error("expected probe failure while backend is down")
	}
	if p.IsHealthy() {
		t.Error("failed probe should mark provider unhealthy")
	}

	healthy.Store(true)
	if err := p.PerformHealthCheck(context.Background()); err != nil {
		t.Errorf("probe failed: %v", err)
	}
	if !p.IsHealthy() {
		t.Error("successful probe should restore health")
	}
}

func TestValidateCredentialsSkipsWithoutKey(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.APIKey = ""
	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.ValidateCredentials(context.Background()); err != nil {
		t.Errorf("keyless validation should be a no-op, got %v", err)
	}
}
