package providers

import "time"

// CapabilityType identifies a category of interchangeable backend function.
// Providers of the same capability can substitute for each other during
// selection and fallback.
type CapabilityType string

const (
	// CapabilityInference covers model inference backends.
	CapabilityInference CapabilityType = "inference"

	// CapabilityAuth covers token verification and identity backends.
	CapabilityAuth CapabilityType = "auth"

	// CapabilityStorage covers file/drive storage backends.
	CapabilityStorage CapabilityType = "storage"

	// CapabilityKnowledge covers knowledge-lookup backends.
	CapabilityKnowledge CapabilityType = "knowledge"
)

// Capabilities lists all known capability types in a stable order.
var Capabilities = []CapabilityType{
	CapabilityInference,
	CapabilityAuth,
	CapabilityStorage,
	CapabilityKnowledge,
}

// Valid reports whether c is a known capability type.
func (c CapabilityType) Valid() bool {
	switch c {
	case CapabilityInference, CapabilityAuth, CapabilityStorage, CapabilityKnowledge:
		return true
	}
	return false
}

// RetryPolicy controls the retry behavior of ExecuteWithRetry.
// The delay before the attempt following failed attempt k (zero-indexed) is
// min(BaseDelay * BackoffMultiplier^k, MaxDelay) plus uniform jitter in
// [0, 0.1*delay).
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the computed backoff delay (before jitter).
	MaxDelay time.Duration `yaml:"max_delay"`

	// BackoffMultiplier is the exponential growth factor between retries.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// DefaultRetryPolicy returns the retry policy used when a provider's
// configuration leaves the policy unset.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RateLimits contains client-side rate limit hints for a provider.
// When set, the provider throttles its own outbound calls with a token
// bucket before contacting the backend.
type RateLimits struct {
	// RequestsPerMinute is the sustained request rate.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst is the maximum burst size. Defaults to RequestsPerMinute.
	Burst int `yaml:"burst"`
}

// ProviderConfig contains static per-provider tuning data.
// It is immutable after construction except via an explicit UpdateConfig.
type ProviderConfig struct {
	// Name is the unique provider identifier (e.g., "gemini", "openai").
	Name string `yaml:"-"`

	// Capability is the capability type this provider serves.
	Capability CapabilityType `yaml:"capability"`

	// Subtype is the concrete backend kind within the capability
	// (e.g., "openai-compatible", "oidc", "drive", "search").
	Subtype string `yaml:"subtype"`

	// Enabled controls whether the provider participates in selection.
	Enabled bool `yaml:"enabled"`

	// Priority orders providers within a capability (higher wins).
	Priority int `yaml:"priority"`

	// BaseURL is the backend endpoint base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication credential.
	APIKey string `yaml:"api_key"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// RateLimits contains optional client-side throttling thresholds.
	RateLimits *RateLimits `yaml:"rate_limits"`

	// Retry controls the retry/backoff behavior.
	Retry RetryPolicy `yaml:"retry"`
}

// Metrics is a point-in-time snapshot of a provider's request counters.
// The snapshot is safe to serialize and holds no references to live state.
type Metrics struct {
	// TotalRequests counts every executed attempt.
	TotalRequests int64 `json:"total_requests"`

	// SuccessfulRequests counts attempts that returned without error.
	SuccessfulRequests int64 `json:"successful_requests"`

	// FailedRequests counts attempts that returned an error.
	FailedRequests int64 `json:"failed_requests"`

	// AverageResponseTime is the incremental mean over successful attempts.
	AverageResponseTime time.Duration `json:"average_response_time"`

	// LastRequestTime is when the most recent attempt started.
	// Zero if no request has been made.
	LastRequestTime time.Time `json:"last_request_time"`

	// RateLimitHits counts errors classified as rate limiting.
	RateLimitHits int64 `json:"rate_limit_hits"`

	// CircuitBreakerTrips counts transitions into the open state.
	CircuitBreakerTrips int64 `json:"circuit_breaker_trips"`
}

// HealthStatus is a point-in-time snapshot of a provider's health.
type HealthStatus struct {
	// IsHealthy reports whether the provider is considered usable.
	// Always false while the circuit breaker is open.
	IsHealthy bool `json:"is_healthy"`

	// LastHealthCheck is when the health state was last updated.
	LastHealthCheck time.Time `json:"last_health_check"`

	// ConsecutiveFailures counts sequential failed operations or probes.
	// Reset to zero by any single success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// ResponseTime is the duration of the last health probe.
	ResponseTime time.Duration `json:"response_time"`

	// LastError is the most recent error message, empty when healthy.
	LastError string `json:"last_error,omitempty"`
}

// MetricsSink receives per-operation telemetry from a provider's executor.
// Implementations must be safe for concurrent use. The Prometheus collector
// in pkg/telemetry/metrics satisfies this interface.
type MetricsSink interface {
	RecordRequest(provider, operation string)
	RecordLatency(provider, operation string, seconds float64)
	RecordError(provider, errorType string)
	RecordRateLimitHit(provider string)
	RecordBreakerTrip(provider string)
	UpdateHealth(provider string, healthy bool)
}
