package providers

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// Circuit breaker tuning. These are process-wide constants rather than
// per-provider configuration: every provider trips after the same number
// of consecutive failures and cools down for the same interval.
const (
	circuitBreakerThreshold = 5
	circuitBreakerCooldown  = 30 * time.Second

	// jitterFraction bounds the random jitter added to each backoff
	// delay, as a fraction of the computed delay.
	jitterFraction = 0.1
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BaseProvider supplies retry, circuit breaking, rate limiting, metrics
// and health tracking shared by every concrete provider. Concrete
// providers embed *BaseProvider and add their capability operations,
// health probe and credential validation.
//
// All mutable state is guarded by mu; snapshots returned by GetMetrics
// and GetHealth are copies.
type BaseProvider struct {
	config ProviderConfig
	logger *slog.Logger

	httpClient *http.Client
	bucket     *tokenBucket // nil when no rate limits configured
	sink       MetricsSink  // nil when no telemetry wired

	mu      sync.Mutex
	metrics Metrics
	health  HealthStatus

	breaker        breakerState
	breakerTripped time.Time // when the breaker last opened

	// nowFunc is swapped in tests to control the clock.
	nowFunc func() time.Time
}

// BaseOption customizes a BaseProvider at construction.
type BaseOption func(*BaseProvider)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) BaseOption {
	return func(b *BaseProvider) { b.logger = logger }
}

// WithMetricsSink wires per-operation telemetry recording.
func WithMetricsSink(sink MetricsSink) BaseOption {
	return func(b *BaseProvider) { b.sink = sink }
}

// WithHTTPClient overrides the HTTP client used by DoRequest.
func WithHTTPClient(client *http.Client) BaseOption {
	return func(b *BaseProvider) { b.httpClient = client }
}

// NewBaseProvider builds the shared provider core from config.
// Providers start healthy with a closed breaker; the first health sweep
// or operation adjusts the state from there.
func NewBaseProvider(config ProviderConfig, opts ...BaseOption) *BaseProvider {
	if config.Retry == (RetryPolicy{}) {
		config.Retry = DefaultRetryPolicy()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	b := &BaseProvider{
		config:  config,
		nowFunc: time.Now,
		health: HealthStatus{
			IsHealthy: true,
		},
	}
	if config.RateLimits != nil && config.RateLimits.RequestsPerMinute > 0 {
		b.bucket = newTokenBucket(*config.RateLimits)
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("provider", config.Name, "capability", string(config.Capability))
	if b.httpClient == nil {
		b.httpClient = &http.Client{Timeout: config.Timeout}
	}
	return b
}

// GetName returns the provider name.
func (b *BaseProvider) GetName() string { return b.config.Name }

// GetCapability returns the provider's capability type.
func (b *BaseProvider) GetCapability() CapabilityType { return b.config.Capability }

// GetConfig returns a copy of the provider configuration.
func (b *BaseProvider) GetConfig() ProviderConfig { return b.config }

// Logger returns the provider-scoped structured logger.
func (b *BaseProvider) Logger() *slog.Logger { return b.logger }

// HTTPClient returns the client used for backend requests.
func (b *BaseProvider) HTTPClient() *http.Client { return b.httpClient }

// GetMetrics returns a snapshot of the request counters.
func (b *BaseProvider) GetMetrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// GetHealth returns a snapshot of the health state.
func (b *BaseProvider) GetHealth() HealthStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.health
}

// IsHealthy reports whether the provider is usable. A provider with an
// open breaker is never healthy.
func (b *BaseProvider) IsHealthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.breaker == breakerOpen && b.nowFunc().Sub(b.breakerTripped) < circuitBreakerCooldown {
		return false
	}
	return b.health.IsHealthy
}

// IsCircuitOpen reports whether the breaker currently rejects calls.
// When the cool-down has elapsed the breaker moves to half-open and this
// returns false, admitting a single trial call.
func (b *BaseProvider) IsCircuitOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.circuitOpenLocked()
}

// circuitOpenLocked checks and advances the breaker state. Caller must
// hold mu. Transitions open -> half-open once the cool-down elapses.
func (b *BaseProvider) circuitOpenLocked() bool {
	if b.breaker != breakerOpen {
		return false
	}
	if b.nowFunc().Sub(b.breakerTripped) >= circuitBreakerCooldown {
		b.breaker = breakerHalfOpen
		b.logger.Info("circuit breaker half-open, admitting trial call")
		return false
	}
	return true
}

// ExecuteWithRetry runs op under the retry policy and circuit breaker.
//
// Each attempt is counted in the metrics. Failures increment the
// consecutive-failure count; reaching the threshold opens the breaker
// and ends the retry loop immediately, returning the last underlying
// error. If the breaker is already open when called, a
// *CircuitOpenError is returned without invoking op.
func (b *BaseProvider) ExecuteWithRetry(ctx context.Context, operation string, op func(context.Context) error) error {
	if !b.config.Enabled {
		return &OperationError{Provider: b.config.Name, Operation: operation, Err: ErrProviderDisabled}
	}

	b.mu.Lock()
	if b.circuitOpenLocked() {
		remaining := circuitBreakerCooldown - b.nowFunc().Sub(b.breakerTripped)
		b.mu.Unlock()
		if b.sink != nil {
			b.sink.RecordError(b.config.Name, "circuit_open")
		}
		return &CircuitOpenError{Provider: b.config.Name, Operation: operation, RetryAfter: remaining}
	}
	b.mu.Unlock()

	policy := b.config.Retry
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(policy, attempt-1)
			b.logger.Debug("retrying operation",
				"operation", operation,
				"attempt", attempt,
				"delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := b.attempt(ctx, operation, op)
		if err == nil {
			return nil
		}
		lastErr = err

		if tripped := b.recordFailure(err); tripped {
			b.logger.Warn("circuit breaker opened",
				"operation", operation,
				"consecutive_failures", circuitBreakerThreshold,
				"error", err)
			return lastErr
		}
	}

	b.logger.Warn("operation failed after retries",
		"operation", operation,
		"attempts", policy.MaxRetries+1,
		"error", lastErr)
	return lastErr
}

// attempt runs a single invocation of op, enforcing the local rate
// limit and recording request metrics.
func (b *BaseProvider) attempt(ctx context.Context, operation string, op func(context.Context) error) error {
	if b.bucket != nil {
		if ok, wait := b.bucket.take(); !ok {
			err := &RateLimitError{
				Provider:   b.config.Name,
				Message:    "client-side rate limit exceeded",
				RetryAfter: wait,
			}
			b.recordAttempt(operation, 0, err)
			return err
		}
	}

	start := b.nowFunc()
	err := op(ctx)
	elapsed := b.nowFunc().Sub(start)

	b.recordAttempt(operation, elapsed, err)
	return err
}

// recordAttempt updates counters for one executed attempt.
func (b *BaseProvider) recordAttempt(operation string, elapsed time.Duration, err error) {
	b.mu.Lock()
	b.metrics.TotalRequests++
	b.metrics.LastRequestTime = b.nowFunc()
	if err == nil {
		b.metrics.SuccessfulRequests++
		// Incremental mean over successful attempts only.
		n := b.metrics.SuccessfulRequests
		prev := b.metrics.AverageResponseTime
		b.metrics.AverageResponseTime = prev + (elapsed-prev)/time.Duration(n)

		b.health.IsHealthy = true
		b.health.ConsecutiveFailures = 0
		b.health.LastError = ""
		b.health.LastHealthCheck = b.nowFunc()

		if b.breaker == breakerHalfOpen {
			b.breaker = breakerClosed
			b.logger.Info("circuit breaker closed after successful trial")
		}
	} else {
		b.metrics.FailedRequests++
		if IsRateLimitError(err) {
			b.metrics.RateLimitHits++
		}
	}
	b.mu.Unlock()

	if b.sink != nil {
		b.sink.RecordRequest(b.config.Name, operation)
		if err == nil {
			b.sink.RecordLatency(b.config.Name, operation, elapsed.Seconds())
			b.sink.UpdateHealth(b.config.Name, true)
		} else {
			b.sink.RecordError(b.config.Name, ErrorType(err))
			if IsRateLimitError(err) {
				b.sink.RecordRateLimitHit(b.config.Name)
			}
		}
	}
}

// recordFailure advances the failure count and breaker state after a
// failed attempt. Returns true when the breaker opened as a result.
func (b *BaseProvider) recordFailure(err error) bool {
	b.mu.Lock()
	b.health.ConsecutiveFailures++
	b.health.LastError = err.Error()
	b.health.LastHealthCheck = b.nowFunc()

	tripped := false
	switch {
	case b.breaker == breakerHalfOpen:
		// Failed trial call: back to open, restart the cool-down.
		b.breaker = breakerOpen
		b.breakerTripped = b.nowFunc()
		b.metrics.CircuitBreakerTrips++
		b.health.IsHealthy = false
		tripped = true
	case b.breaker == breakerClosed && b.health.ConsecutiveFailures >= circuitBreakerThreshold:
		b.breaker = breakerOpen
		b.breakerTripped = b.nowFunc()
		b.metrics.CircuitBreakerTrips++
		b.health.IsHealthy = false
		tripped = true
	}
	b.mu.Unlock()

	if tripped && b.sink != nil {
		b.sink.RecordBreakerTrip(b.config.Name)
		b.sink.UpdateHealth(b.config.Name, false)
	}
	return tripped
}

// Probe runs fn as a health probe, updating the health snapshot with
// the outcome and probe duration. Concrete providers call this from
// PerformHealthCheck with their capability-specific check.
func (b *BaseProvider) Probe(ctx context.Context, fn func(context.Context) error) error {
	start := b.nowFunc()
	err := fn(ctx)
	elapsed := b.nowFunc().Sub(start)

	b.mu.Lock()
	b.health.LastHealthCheck = b.nowFunc()
	b.health.ResponseTime = elapsed
	if err == nil {
		b.health.IsHealthy = true
		b.health.ConsecutiveFailures = 0
		b.health.LastError = ""
		if b.breaker == breakerHalfOpen {
			b.breaker = breakerClosed
		}
	} else {
		b.health.IsHealthy = false
		b.health.ConsecutiveFailures++
		b.health.LastError = err.Error()
	}
	healthy := b.health.IsHealthy
	b.mu.Unlock()

	if b.sink != nil {
		b.sink.UpdateHealth(b.config.Name, healthy)
	}
	if err != nil {
		b.logger.Debug("health probe failed", "error", err)
	}
	return err
}

// MarkUnhealthy forces the provider into an unhealthy state with the
// given reason. Used when credential validation fails at registration.
func (b *BaseProvider) MarkUnhealthy(reason string) {
	b.mu.Lock()
	b.health.IsHealthy = false
	b.health.LastError = reason
	b.health.LastHealthCheck = b.nowFunc()
	b.mu.Unlock()

	if b.sink != nil {
		b.sink.UpdateHealth(b.config.Name, false)
	}
}

// ResetMetrics zeroes the request counters. Health and breaker state
// are untouched.
func (b *BaseProvider) ResetMetrics() {
	b.mu.Lock()
	b.metrics = Metrics{}
	b.mu.Unlock()
}

// Close releases provider resources. The base implementation closes
// idle HTTP connections.
func (b *BaseProvider) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

// backoffDelay computes the wait before the retry following failed
// attempt k (zero-indexed): min(base * multiplier^k, max) plus uniform
// jitter in [0, jitterFraction*delay).
func backoffDelay(policy RetryPolicy, k int) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.BackoffMultiplier, float64(k))
	if max := float64(policy.MaxDelay); delay > max {
		delay = max
	}
	jitter := rand.Float64() * jitterFraction * delay
	return time.Duration(delay + jitter)
}
