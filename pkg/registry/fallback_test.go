package registry

import (
	"context"
	"errors"
	"testing"

	fakes "verity-hq/callisto/internal/providers"
	"verity-hq/callisto/pkg/providers"
)

func TestExecuteWithFallbackFirstSucceeds(t *testing.T) {
	r := New()
	a := fakes.NewFake("alpha", providers.CapabilityInference, fakes.WithPriority(20))
	b := fakes.NewFake("beta", providers.CapabilityInference, fakes.WithPriority(10))
	r.Register(Registration{Provider: a, Capability: providers.CapabilityInference})
	r.Register(Registration{Provider: b, Capability: providers.CapabilityInference})

	var tried []string
	err := r.ExecuteWithFallback(context.Background(), providers.CapabilityInference, "complete",
		func(ctx context.Context, p providers.Provider) error {
			tried = append(tried, p.GetName())
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(tried) != 1 || tried[0] != "alpha" {
		t.Errorf("expected only alpha tried, got %v", tried)
	}
}

func TestExecuteWithFallbackWalksChain(t *testing.T) {
	r := New()
	a := fakes.NewFake("alpha", providers.CapabilityInference, fakes.WithPriority(20))
	b := fakes.NewFake("beta", providers.CapabilityInference, fakes.WithPriority(10))
	r.Register(Registration{Provider: a, Capability: providers.CapabilityInference})
	r.Register(Registration{Provider: b, Capability: providers.CapabilityInference})

	var tried []string
	err := r.ExecuteWithFallback(context.Background(), providers.CapabilityInference, "complete",
		func(ctx context.Context, p providers.Provider) error {
			tried = append(tried, p.GetName())
			if p.GetName() == "alpha" {
				return errors.New("alpha down")
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(tried) != 2 || tried[1] != "beta" {
		t.Errorf("expected fallback to beta, got %v", tried)
	}
}

func TestExecuteWithFallbackExhaustion(t *testing.T) {
	r := New()
	a := fakes.NewFake("alpha", providers.CapabilityInference, fakes.WithPriority(20))
	b := fakes.NewFake("beta", providers.CapabilityInference, fakes.WithPriority(10))
	r.Register(Registration{Provider: a, Capability: providers.CapabilityInference})
	r.Register(Registration{Provider: b, Capability: providers.CapabilityInference})

	lastErr := errors.New("beta down")
	err := r.ExecuteWithFallback(context.Background(), providers.CapabilityInference, "complete",
		func(ctx context.Context, p providers.Provider) error {
			if p.GetName() == "alpha" {
				return errors.New("alpha down")
			}
			return lastErr
		})

	var exhausted *AllProvidersExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *AllProvidersExhaustedError, got %v", err)
	}
	if len(exhausted.Attempts) != 2 {
		t.Errorf("expected 2 recorded attempts, got %d", len(exhausted.Attempts))
	}
	if !errors.Is(err, lastErr) {
		t.Error("exhaustion error should unwrap to the last attempt's error")
	}
}

func TestExecuteWithFallbackNoProviders(t *testing.T) {
	r := New()
	err := r.ExecuteWithFallback(context.Background(), providers.CapabilityStorage, "list_files",
		func(ctx context.Context, p providers.Provider) error { return nil })
	if !errors.Is(err, providers.ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}
