// Package providers contains test doubles shared by package tests.
package providers

import (
	"context"
	"sync"
	"time"

	core "verity-hq/callisto/pkg/providers"
)

// Fake is a controllable provider for tests. It embeds the real
// BaseProvider so retry, breaker and metrics behavior is genuine, while
// probes and credential checks are scripted.
type Fake struct {
	*core.BaseProvider

	mu          sync.Mutex
	probeErr    error
	probeDelay  time.Duration
	probePanic  bool
	validateErr error
	probeCalls  int
}

// FakeOption adjusts a Fake's configuration before construction.
type FakeOption func(*core.ProviderConfig)

// WithPriority sets the provider priority.
func WithPriority(priority int) FakeOption {
	return func(c *core.ProviderConfig) { c.Priority = priority }
}

// WithEnabled sets the enabled flag.
func WithEnabled(enabled bool) FakeOption {
	return func(c *core.ProviderConfig) { c.Enabled = enabled }
}

// WithRetry sets the retry policy.
func WithRetry(policy core.RetryPolicy) FakeOption {
	return func(c *core.ProviderConfig) { c.Retry = policy }
}

// NewFake builds a fake provider with fast retries and sane defaults.
func NewFake(name string, capability core.CapabilityType, opts ...FakeOption) *Fake {
	cfg := core.ProviderConfig{
		Name:       name,
		Capability: capability,
		Subtype:    "fake",
		Enabled:    true,
		Priority:   10,
		BaseURL:    "http://localhost:0",
		Timeout:    time.Second,
		Retry: core.RetryPolicy{
			MaxRetries:        1,
			BaseDelay:         time.Millisecond,
			MaxDelay:          5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Fake{BaseProvider: core.NewBaseProvider(cfg)}
}

// SetProbeError scripts the outcome of subsequent health probes.
func (f *Fake) SetProbeError(err error) {
	f.mu.Lock()
	f.probeErr = err
	f.mu.Unlock()
}

// SetProbeDelay makes each probe sleep before reporting.
func (f *Fake) SetProbeDelay(d time.Duration) {
	f.mu.Lock()
	f.probeDelay = d
	f.mu.Unlock()
}

// SetProbePanic makes the next probes panic, for isolation tests.
func (f *Fake) SetProbePanic(v bool) {
	f.mu.Lock()
	f.probePanic = v
	f.mu.Unlock()
}

// SetValidateError scripts ValidateCredentials.
func (f *Fake) SetValidateError(err error) {
	f.mu.Lock()
	f.validateErr = err
	f.mu.Unlock()
}

// ProbeCalls reports how many probes have run.
func (f *Fake) ProbeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCalls
}

// PerformHealthCheck runs the scripted probe through the real health
// tracking.
func (f *Fake) PerformHealthCheck(ctx context.Context) error {
	f.mu.Lock()
	f.probeCalls++
	err := f.probeErr
	delay := f.probeDelay
	panicking := f.probePanic
	f.mu.Unlock()

	if panicking {
		panic("scripted probe panic")
	}
	return f.Probe(ctx, func(ctx context.Context) error {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return err
	})
}

// ValidateCredentials returns the scripted result.
func (f *Fake) ValidateCredentials(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.validateErr != nil {
		return &core.CredentialError{
			Provider: f.GetName(),
			Message:  "scripted credential failure",
			Err:      f.validateErr,
		}
	}
	return nil
}
