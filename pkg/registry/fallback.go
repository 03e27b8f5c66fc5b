package registry

import (
	"context"
	"fmt"
	"strings"

	"verity-hq/callisto/pkg/providers"
)

// AllProvidersExhaustedError is returned when every provider in a
// fallback chain failed. It is distinct from a single provider's retry
// exhaustion, which surfaces the last underlying error directly.
type AllProvidersExhaustedError struct {
	Capability providers.CapabilityType
	Operation  string
	// Attempts maps provider name to the error it failed with,
	// in attempt order.
	Attempts []AttemptError
}

// AttemptError records one failed provider attempt in a chain.
type AttemptError struct {
	Provider string
	Err      error
}

func (e *AllProvidersExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %s providers exhausted for %s (%d attempted)",
		e.Capability, e.Operation, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Provider, a.Err)
	}
	return b.String()
}

// Unwrap exposes the last attempt's error for errors.Is/As.
func (e *AllProvidersExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// ExecuteWithFallback runs op against the best healthy provider of the
// capability, then walks the fallback chain on failure. Each provider
// applies its own retry and breaker policy inside op's execution; this
// loop only moves across providers.
//
// Returns nil on the first provider whose op succeeds,
// providers.ErrProviderNotFound when no provider is selectable at all,
// and *AllProvidersExhaustedError when every attempted provider failed.
func (r *Registry) ExecuteWithFallback(ctx context.Context, capability providers.CapabilityType, operation string, op func(context.Context, providers.Provider) error) error {
	primary := r.Select(capability, &SelectOptions{
		RequireHealthy:  true,
		FallbackEnabled: true,
	})
	if primary == nil {
		return fmt.Errorf("no %s provider available: %w", capability, providers.ErrProviderNotFound)
	}

	chain := []providers.Provider{primary}
	for _, p := range r.FallbackProviders(capability, primary.GetName()) {
		chain = append(chain, p)
	}

	var attempts []AttemptError
	for _, p := range chain {
		err := op(ctx, p)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts = append(attempts, AttemptError{Provider: p.GetName(), Err: err})
		r.logger.Warn("provider failed, trying next in chain",
			"capability", string(capability),
			"operation", operation,
			"provider", p.GetName(),
			"error", err)
	}

	return &AllProvidersExhaustedError{
		Capability: capability,
		Operation:  operation,
		Attempts:   attempts,
	}
}
