package providers

import "context"

// Provider is the contract every backend provider implements.
// Concrete providers embed *BaseProvider, which supplies everything here
// except PerformHealthCheck and ValidateCredentials.
type Provider interface {
	// GetName returns the unique provider name.
	GetName() string

	// GetCapability returns the provider's capability type.
	GetCapability() CapabilityType

	// GetConfig returns a copy of the provider's configuration.
	GetConfig() ProviderConfig

	// GetMetrics returns a snapshot of the request counters.
	GetMetrics() Metrics

	// GetHealth returns a snapshot of the health state.
	GetHealth() HealthStatus

	// IsHealthy reports whether the provider is currently usable.
	IsHealthy() bool

	// IsCircuitOpen reports whether the circuit breaker is rejecting
	// calls. After the cool-down elapses the breaker admits a single
	// trial call, so a false return does not guarantee the next call
	// will also be admitted.
	IsCircuitOpen() bool

	// ExecuteWithRetry runs op under the provider's retry policy and
	// circuit breaker, recording metrics for every attempt. It returns
	// the last underlying error when all attempts fail, or a
	// *CircuitOpenError when the breaker rejects the call outright.
	ExecuteWithRetry(ctx context.Context, operation string, op func(context.Context) error) error

	// PerformHealthCheck probes the backend and updates the health
	// snapshot. Called periodically by the registry's health loop.
	PerformHealthCheck(ctx context.Context) error

	// ValidateCredentials verifies the configured credentials against
	// the backend. A failure returns a *CredentialError.
	ValidateCredentials(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}
