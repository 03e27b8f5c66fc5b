// Package registry catalogs providers by capability type and implements
// the selection, fallback and health-sweep policy on top of them.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"verity-hq/callisto/pkg/providers"
)

// Registration binds a provider to its selection attributes.
type Registration struct {
	Provider providers.Provider

	// Capability groups interchangeable providers.
	Capability providers.CapabilityType

	// Subtype is the concrete backend kind within the capability.
	Subtype string

	// IsDefault marks the preferred provider of the capability.
	IsDefault bool

	// FallbackOrder breaks ties among same-priority providers
	// (lower is tried first).
	FallbackOrder int
}

// SelectOptions tunes a single Select call. The zero value selects the
// best enabled provider of the capability with no health filtering.
type SelectOptions struct {
	// PreferredProvider, when set and present, wins over every other
	// ordering criterion.
	PreferredProvider string

	// ExcludeProviders removes the named providers from consideration.
	ExcludeProviders []string

	// RequireHealthy restricts candidates to healthy providers with a
	// closed circuit breaker.
	RequireHealthy bool

	// FallbackEnabled permits falling back to unhealthy providers when
	// RequireHealthy finds no candidate.
	FallbackEnabled bool
}

// SweepFunc observes the outcome of one provider's health probe during
// a sweep. Used to record health history.
type SweepFunc func(name string, capability providers.CapabilityType, health providers.HealthStatus)

// Registry is a typed catalog of providers. All methods are safe for
// concurrent use; Select is a snapshot of registry state at call time
// and makes no ordering guarantee against concurrent mutation.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Registration

	// onSweep, when set, is invoked after each provider's probe in a
	// health sweep.
	onSweep SweepFunc

	healthMu   sync.Mutex
	healthStop chan struct{}
	healthDone chan struct{}
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithSweepObserver records each health probe outcome during sweeps.
func WithSweepObserver(fn SweepFunc) Option {
	return func(r *Registry) { r.onSweep = fn }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*Registration),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Register inserts a registration keyed by the provider's name.
// Re-registering an existing name overwrites the prior entry with a
// warning; the displaced provider is closed.
func (r *Registry) Register(reg Registration) {
	name := reg.Provider.GetName()

	r.mu.Lock()
	prev, existed := r.entries[name]
	r.entries[name] = &reg
	r.mu.Unlock()

	if existed {
		r.logger.Warn("provider registration overwritten",
			"provider", name,
			"capability", string(reg.Capability))
		if err := prev.Provider.Close(); err != nil {
			r.logger.Warn("closing displaced provider", "provider", name, "error", err)
		}
		return
	}
	r.logger.Info("provider registered",
		"provider", name,
		"capability", string(reg.Capability),
		"subtype", reg.Subtype,
		"default", reg.IsDefault)
}

// Unregister removes a provider by name, closing it. Reports whether
// the name was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	reg, ok := r.entries[name]
	if ok {
		delete(r.entries, name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := reg.Provider.Close(); err != nil {
		r.logger.Warn("closing unregistered provider", "provider", name, "error", err)
	}
	r.logger.Info("provider unregistered", "provider", name)
	return true
}

// Clear removes every registration and stops a running health loop.
func (r *Registry) Clear() {
	r.StopHealthChecks()

	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*Registration)
	r.mu.Unlock()

	for name, reg := range entries {
		if err := reg.Provider.Close(); err != nil {
			r.logger.Warn("closing provider on clear", "provider", name, "error", err)
		}
	}
	if len(entries) > 0 {
		r.logger.Info("registry cleared", "providers", len(entries))
	}
}

// Get returns the provider registered under name, or nil.
func (r *Registry) Get(name string) providers.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.entries[name]; ok {
		return reg.Provider
	}
	return nil
}

// Names returns the registered provider names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Select returns the best provider of the capability under opts, or nil
// when no candidate qualifies. Absence is not an error.
//
// Ordering among enabled, non-excluded candidates:
//  1. exact match to PreferredProvider
//  2. IsDefault true before false
//  3. higher Priority
//  4. lower FallbackOrder
//
// With RequireHealthy, the healthy/breaker-closed subset is tried
// first; an empty subset falls back to the full ordering only when
// FallbackEnabled is set.
func (r *Registry) Select(capability providers.CapabilityType, opts *SelectOptions) providers.Provider {
	if opts == nil {
		opts = &SelectOptions{}
	}

	excluded := make(map[string]bool, len(opts.ExcludeProviders))
	for _, name := range opts.ExcludeProviders {
		excluded[name] = true
	}

	r.mu.RLock()
	candidates := make([]*Registration, 0, len(r.entries))
	for name, reg := range r.entries {
		if reg.Capability != capability || excluded[name] || !reg.Provider.GetConfig().Enabled {
			continue
		}
		candidates = append(candidates, reg)
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil
	}

	sortCandidates(candidates, opts.PreferredProvider)

	if opts.RequireHealthy {
		for _, reg := range candidates {
			if reg.Provider.IsHealthy() && !reg.Provider.IsCircuitOpen() {
				return reg.Provider
			}
		}
		if !opts.FallbackEnabled {
			return nil
		}
		r.logger.Warn("no healthy provider, falling back to unhealthy candidate",
			"capability", string(capability),
			"provider", candidates[0].Provider.GetName())
	}
	return candidates[0].Provider
}

// sortCandidates orders registrations by the selection key, with a
// name tie-break for determinism across map iteration order.
func sortCandidates(candidates []*Registration, preferred string) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		an, bn := a.Provider.GetName(), b.Provider.GetName()

		if preferred != "" && (an == preferred) != (bn == preferred) {
			return an == preferred
		}
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		ap, bp := a.Provider.GetConfig().Priority, b.Provider.GetConfig().Priority
		if ap != bp {
			return ap > bp
		}
		if a.FallbackOrder != b.FallbackOrder {
			return a.FallbackOrder < b.FallbackOrder
		}
		return an < bn
	})
}

// FallbackProviders returns all healthy providers of the capability
// except excludeName, sorted by descending priority. Callers use this
// to run their own multi-provider fallback loop.
func (r *Registry) FallbackProviders(capability providers.CapabilityType, excludeName string) []providers.Provider {
	r.mu.RLock()
	candidates := make([]*Registration, 0, len(r.entries))
	for name, reg := range r.entries {
		if reg.Capability != capability || name == excludeName {
			continue
		}
		if !reg.Provider.GetConfig().Enabled || !reg.Provider.IsHealthy() {
			continue
		}
		candidates = append(candidates, reg)
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		ap, bp := candidates[i].Provider.GetConfig().Priority, candidates[j].Provider.GetConfig().Priority
		if ap != bp {
			return ap > bp
		}
		return candidates[i].Provider.GetName() < candidates[j].Provider.GetName()
	})

	result := make([]providers.Provider, len(candidates))
	for i, reg := range candidates {
		result[i] = reg.Provider
	}
	return result
}

// Snapshot returns the current registrations grouped by capability.
func (r *Registry) Snapshot() map[providers.CapabilityType][]Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[providers.CapabilityType][]Registration)
	for _, reg := range r.entries {
		out[reg.Capability] = append(out[reg.Capability], *reg)
	}
	return out
}
