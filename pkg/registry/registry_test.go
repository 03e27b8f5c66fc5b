package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	fakes "verity-hq/callisto/internal/providers"
	"verity-hq/callisto/pkg/providers"
)

func TestSelectOrdering(t *testing.T) {
	r := New()
	a := fakes.NewFake("alpha", providers.CapabilityInference, fakes.WithPriority(10))
	b := fakes.NewFake("beta", providers.CapabilityInference, fakes.WithPriority(20))
	r.Register(Registration{Provider: a, Capability: providers.CapabilityInference, IsDefault: true})
	r.Register(Registration{Provider: b, Capability: providers.CapabilityInference})

	// Default wins over higher priority.
	if got := r.Select(providers.CapabilityInference, nil); got == nil || got.GetName() != "alpha" {
		t.Errorf("expected default alpha, got %v", name(got))
	}

	// Preferred name wins over default.
	got := r.Select(providers.CapabilityInference, &SelectOptions{PreferredProvider: "beta"})
	if got == nil || got.GetName() != "beta" {
		t.Errorf("expected preferred beta, got %v", name(got))
	}

	// Exclusion removes the default.
	got = r.Select(providers.CapabilityInference, &SelectOptions{ExcludeProviders: []string{"alpha"}})
	if got == nil || got.GetName() != "beta" {
		t.Errorf("expected beta after excluding alpha, got %v", name(got))
	}
}

func TestSelectPriorityAndFallbackOrder(t *testing.T) {
	r := New()
	low := fakes.NewFake("low", providers.CapabilityAuth, fakes.WithPriority(5))
	high := fakes.NewFake("high", providers.CapabilityAuth, fakes.WithPriority(50))
	first := fakes.NewFake("first", providers.CapabilityAuth, fakes.WithPriority(50))
	r.Register(Registration{Provider: low, Capability: providers.CapabilityAuth, FallbackOrder: 0})
	r.Register(Registration{Provider: high, Capability: providers.CapabilityAuth, FallbackOrder: 2})
	r.Register(Registration{Provider: first, Capability: providers.CapabilityAuth, FallbackOrder: 1})

	// Equal priority: lower fallbackOrder wins.
	if got := r.Select(providers.CapabilityAuth, nil); got == nil || got.GetName() != "first" {
		t.Errorf("expected first (lower fallback order), got %v", name(got))
	}
}

func TestSelectSkipsDisabled(t *testing.T) {
	r := New()
	off := fakes.NewFake("off", providers.CapabilityStorage, fakes.WithPriority(100), fakes.WithEnabled(false))
	on := fakes.NewFake("on", providers.CapabilityStorage, fakes.WithPriority(1))
	r.Register(Registration{Provider: off, Capability: providers.CapabilityStorage})
	r.Register(Registration{Provider: on, Capability: providers.CapabilityStorage})

	if got := r.Select(providers.CapabilityStorage, nil); got == nil || got.GetName() != "on" {
		t.Errorf("disabled provider must not be selected, got %v", name(got))
	}
}

func TestSelectEmptyCapabilityReturnsNil(t *testing.T) {
	r := New()
	if got := r.Select(providers.CapabilityKnowledge, nil); got != nil {
		t.Errorf("expected nil for empty capability, got %v", name(got))
	}
}

func TestSelectRequireHealthy(t *testing.T) {
	r := New()
	sick := fakes.NewFake("sick", providers.CapabilityInference, fakes.WithPriority(100))
	sick.MarkUnhealthy("backend down")
	well := fakes.NewFake("well", providers.CapabilityInference, fakes.WithPriority(1))
	r.Register(Registration{Provider: sick, Capability: providers.CapabilityInference})
	r.Register(Registration{Provider: well, Capability: providers.CapabilityInference})

	got := r.Select(providers.CapabilityInference, &SelectOptions{RequireHealthy: true})
	if got == nil || got.GetName() != "well" {
		t.Errorf("expected healthy well, got %v", name(got))
	}
}

func TestSelectAllUnhealthy(t *testing.T) {
	r := New()
	a := fakes.NewFake("alpha", providers.CapabilityInference, fakes.WithPriority(10))
	b := fakes.NewFake("beta", providers.CapabilityInference, fakes.WithPriority(20))
	a.MarkUnhealthy("down")
	b.MarkUnhealthy("down")
	r.Register(Registration{Provider: a, Capability: providers.CapabilityInference})
	r.Register(Registration{Provider: b, Capability: providers.CapabilityInference})

	// Without fallback: none.
	got := r.Select(providers.CapabilityInference, &SelectOptions{RequireHealthy: true})
	if got != nil {
		t.Errorf("expected nil with all unhealthy and no fallback, got %v", name(got))
	}

	// With fallback: highest priority despite health.
	got = r.Select(providers.CapabilityInference, &SelectOptions{RequireHealthy: true, FallbackEnabled: true})
	if got == nil || got.GetName() != "beta" {
		t.Errorf("expected beta via fallback, got %v", name(got))
	}
}

func TestFallbackProviders(t *testing.T) {
	r := New()
	a := fakes.NewFake("alpha", providers.CapabilityKnowledge, fakes.WithPriority(30))
	b := fakes.NewFake("beta", providers.CapabilityKnowledge, fakes.WithPriority(20))
	c := fakes.NewFake("gamma", providers.CapabilityKnowledge, fakes.WithPriority(10))
	b.MarkUnhealthy("down")
	r.Register(Registration{Provider: a, Capability: providers.CapabilityKnowledge})
	r.Register(Registration{Provider: b, Capability: providers.CapabilityKnowledge})
	r.Register(Registration{Provider: c, Capability: providers.CapabilityKnowledge})

	chain := r.FallbackProviders(providers.CapabilityKnowledge, "alpha")
	if len(chain) != 1 || chain[0].GetName() != "gamma" {
		t.Fatalf("expected [gamma], got %v", names(chain))
	}

	chain = r.FallbackProviders(providers.CapabilityKnowledge, "")
	want := []string{"alpha", "gamma"}
	if len(chain) != 2 || chain[0].GetName() != want[0] || chain[1].GetName() != want[1] {
		t.Errorf("expected %v, got %v", want, names(chain))
	}
}

func TestRegisterOverwriteAndUnregister(t *testing.T) {
	r := New()
	first := fakes.NewFake("alpha", providers.CapabilityAuth, fakes.WithPriority(1))
	second := fakes.NewFake("alpha", providers.CapabilityAuth, fakes.WithPriority(99))
	r.Register(Registration{Provider: first, Capability: providers.CapabilityAuth})
	r.Register(Registration{Provider: second, Capability: providers.CapabilityAuth})

	if r.Count() != 1 {
		t.Fatalf("overwrite should not grow the registry, count=%d", r.Count())
	}
	if got := r.Get("alpha"); got.GetConfig().Priority != 99 {
		t.Error("overwrite should replace the prior registration")
	}

	if !r.Unregister("alpha") {
		t.Error("expected unregister to report presence")
	}
	if r.Unregister("alpha") {
		t.Error("expected second unregister to report absence")
	}
	if r.Get("alpha") != nil {
		t.Error("unregistered provider still retrievable")
	}
}

func TestHealthSweepFanOutIsolation(t *testing.T) {
	r := New()
	slow := fakes.NewFake("slow", providers.CapabilityInference)
	slow.SetProbeDelay(50 * time.Millisecond)
	failing := fakes.NewFake("failing", providers.CapabilityInference)
	failing.SetProbeError(errors.New("probe failed"))
	panicking := fakes.NewFake("panicking", providers.CapabilityInference)
	panicking.SetProbePanic(true)
	fine := fakes.NewFake("fine", providers.CapabilityInference)

	for _, f := range []*fakes.Fake{slow, failing, panicking, fine} {
		r.Register(Registration{Provider: f, Capability: providers.CapabilityInference})
	}

	start := time.Now()
	r.SweepHealth(context.Background())
	elapsed := time.Since(start)

	// All four probes ran, concurrently, despite failure and panic.
	for _, f := range []*fakes.Fake{slow, failing, panicking, fine} {
		if f.ProbeCalls() != 1 {
			t.Errorf("%s: expected 1 probe, got %d", f.GetName(), f.ProbeCalls())
		}
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("sweep took %s; probes should fan out concurrently", elapsed)
	}
	if fine.GetHealth().IsHealthy != true {
		t.Error("healthy sibling affected by failing probes")
	}
	if failing.GetHealth().IsHealthy {
		t.Error("failed probe should mark provider unhealthy")
	}
}

func TestHealthSweepObserver(t *testing.T) {
	var seen []string
	r := New(WithSweepObserver(func(name string, _ providers.CapabilityType, _ providers.HealthStatus) {
		seen = append(seen, name)
	}))
	r.Register(Registration{Provider: fakes.NewFake("alpha", providers.CapabilityAuth), Capability: providers.CapabilityAuth})

	r.SweepHealth(context.Background())
	if len(seen) != 1 || seen[0] != "alpha" {
		t.Errorf("expected observer to see alpha, got %v", seen)
	}
}

func TestStartStopHealthChecks(t *testing.T) {
	r := New()
	f := fakes.NewFake("alpha", providers.CapabilityStorage)
	r.Register(Registration{Provider: f, Capability: providers.CapabilityStorage})

	r.StartHealthChecks(10 * time.Millisecond)
	time.Sleep(35 * time.Millisecond)
	r.StopHealthChecks()

	calls := f.ProbeCalls()
	if calls < 2 {
		t.Errorf("expected several probes, got %d", calls)
	}

	time.Sleep(30 * time.Millisecond)
	if got := f.ProbeCalls(); got != calls {
		t.Errorf("probes continued after stop: %d -> %d", calls, got)
	}
}

func TestClearStopsHealthLoop(t *testing.T) {
	r := New()
	f := fakes.NewFake("alpha", providers.CapabilityStorage)
	r.Register(Registration{Provider: f, Capability: providers.CapabilityStorage})
	r.StartHealthChecks(10 * time.Millisecond)

	r.Clear()
	if r.Count() != 0 {
		t.Errorf("expected empty registry after clear, got %d", r.Count())
	}

	calls := f.ProbeCalls()
	time.Sleep(30 * time.Millisecond)
	if got := f.ProbeCalls(); got != calls {
		t.Errorf("health loop survived clear: %d -> %d", calls, got)
	}
}

func TestGetMetricsLiveCounts(t *testing.T) {
	r := New()
	a := fakes.NewFake("alpha", providers.CapabilityInference)
	b := fakes.NewFake("beta", providers.CapabilityAuth)
	b.MarkUnhealthy("down")
	r.Register(Registration{Provider: a, Capability: providers.CapabilityInference})
	r.Register(Registration{Provider: b, Capability: providers.CapabilityAuth})

	m := r.GetMetrics()
	if m.TotalProviders != 2 || m.HealthyProviders != 1 || m.UnhealthyProviders != 1 {
		t.Errorf("unexpected aggregate: %+v", m)
	}
	if tm := m.ByCapability[providers.CapabilityAuth]; tm.Unhealthy != 1 {
		t.Errorf("unexpected auth counts: %+v", tm)
	}

	// Live, not cached: health change shows up on the next call.
	b.Probe(context.Background(), func(context.Context) error { return nil })
	if m := r.GetMetrics(); m.HealthyProviders != 2 {
		t.Errorf("metrics should reflect live state, got %+v", m)
	}
}

func name(p providers.Provider) string {
	if p == nil {
		return "<nil>"
	}
	return p.GetName()
}

func names(ps []providers.Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.GetName()
	}
	return out
}
