// Package manager owns the provider registry's lifecycle: it validates
// configuration, constructs and registers providers, runs health
// checking, and presents a single initialization/shutdown surface.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"verity-hq/callisto/pkg/config"
	"verity-hq/callisto/pkg/providers"
	"verity-hq/callisto/pkg/registry"
)

// State is the manager's lifecycle phase.
type State int

const (
	StateUninitialized State = iota
	StateValidatingEnvironment
	StateLoadingConfiguration
	StateRegisteringProviders
	StateStartingHealthChecks
	StateInitialized
)

func (s State) String() string {
	switch s {
	case StateValidatingEnvironment:
		return "validating-environment"
	case StateLoadingConfiguration:
		return "loading-configuration"
	case StateRegisteringProviders:
		return "registering-providers"
	case StateStartingHealthChecks:
		return "starting-health-checks"
	case StateInitialized:
		return "initialized"
	default:
		return "uninitialized"
	}
}

// ErrNotInitialized is returned by operations that require a completed
// Initialize. Using the manager before initialization is a programming
// error, so callers should treat this as fatal.
var ErrNotInitialized = errors.New("provider manager is not initialized")

// Options configures a Manager. Config is required; everything else
// has working defaults.
type Options struct {
	Config *config.Config

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// MetricsSink, when set, is wired into every constructed provider.
	MetricsSink providers.MetricsSink

	// SweepObserver, when set, sees every health probe outcome.
	SweepObserver registry.SweepFunc

	// Factory constructs providers from config. Defaults to
	// DefaultFactory.
	Factory Factory
}

// Manager orchestrates the registry lifecycle. Construct one per
// application with New and share it by reference; it is safe for
// concurrent use.
type Manager struct {
	cfg     *config.Config
	logger  *slog.Logger
	sink    providers.MetricsSink
	factory Factory

	mu       sync.Mutex
	state    State
	registry *registry.Registry
	warnings []string
	errs     []string
}

// New creates a manager. Call Initialize before using it.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	factory := opts.Factory
	if factory == nil {
		factory = DefaultFactory
	}

	regOpts := []registry.Option{registry.WithLogger(logger)}
	if opts.SweepObserver != nil {
		regOpts = append(regOpts, registry.WithSweepObserver(opts.SweepObserver))
	}

	return &Manager{
		cfg:      opts.Config,
		logger:   logger,
		sink:     opts.MetricsSink,
		factory:  factory,
		registry: registry.New(regOpts...),
	}
}

// Registry exposes the underlying registry for callers that run their
// own selection or fallback loops.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initialize drives the full startup sequence: environment validation,
// configuration validation, provider registration and, when enabled,
// health checking. Calling Initialize on an initialized manager is a
// no-op, so the call is idempotent.
//
// In production mode validation problems abort initialization; in
// development mode they are collected as warnings.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateInitialized {
		m.logger.Debug("manager already initialized")
		return nil
	}

	m.warnings = nil
	m.errs = nil
	strict := m.cfg == nil || m.cfg.Mode != config.ModeDevelopment

	m.state = StateValidatingEnvironment
	if err := m.validateEnvironment(strict); err != nil {
		m.state = StateUninitialized
		return err
	}

	m.state = StateLoadingConfiguration
	if err := m.validateConfiguration(strict); err != nil {
		m.state = StateUninitialized
		return err
	}

	m.state = StateRegisteringProviders
	if err := m.registerProviders(ctx, strict); err != nil {
		m.registry.Clear()
		m.state = StateUninitialized
		return err
	}

	if m.cfg.HealthCheck.Enabled {
		m.state = StateStartingHealthChecks
		m.registry.StartHealthChecks(m.cfg.HealthCheck.Interval)
	}

	m.state = StateInitialized
	m.logger.Info("provider manager initialized",
		"providers", m.registry.Count(),
		"warnings", len(m.warnings),
		"mode", m.cfg.Mode)
	return nil
}

// Reinitialize tears the registry down and re-runs the full startup
// sequence. Safe to call repeatedly; commonly driven by configuration
// reload.
func (m *Manager) Reinitialize(ctx context.Context) error {
	m.Shutdown()
	return m.Initialize(ctx)
}

// UpdateConfig swaps the configuration used by the next Initialize or
// Reinitialize.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// Shutdown stops health checks, clears the registry and returns the
// manager to the uninitialized state. Operations requiring an
// initialized manager fail with ErrNotInitialized afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized {
		return
	}
	m.registry.Clear()
	m.state = StateUninitialized
	m.logger.Info("provider manager shut down")
}

func (m *Manager) validateEnvironment(strict bool) error {
	if m.cfg == nil {
		return fmt.Errorf("manager requires a configuration")
	}
	if len(m.cfg.Providers) == 0 {
		return m.problem(strict, "no providers configured")
	}
	for _, cap := range m.cfg.RequiredCapabilities {
		found := false
		for _, p := range m.cfg.Providers {
			if p.Capability == cap && p.Enabled {
				found = true
				break
			}
		}
		if !found {
			return m.problem(strict, fmt.Sprintf("required capability %q has no enabled provider configured", cap))
		}
	}
	return nil
}

func (m *Manager) validateConfiguration(strict bool) error {
	if err := config.Validate(m.cfg); err != nil {
		return m.problem(strict, err.Error())
	}
	return nil
}

// problem records a validation failure: fatal in strict mode, a
// collected warning otherwise.
func (m *Manager) problem(strict bool, msg string) error {
	if strict {
		m.errs = append(m.errs, msg)
		return fmt.Errorf("initialization failed: %s", msg)
	}
	m.warnings = append(m.warnings, msg)
	m.logger.Warn("configuration problem tolerated in development mode", "problem", msg)
	return nil
}

func (m *Manager) registerProviders(ctx context.Context, strict bool) error {
	for name, settings := range m.cfg.Providers {
		pcfg := settings.ToProviderConfig(name)

		var opts []providers.BaseOption
		opts = append(opts, providers.WithLogger(m.logger))
		if m.sink != nil {
			opts = append(opts, providers.WithMetricsSink(m.sink))
		}

		provider, err := m.factory(pcfg, opts...)
		if err != nil {
			if perr := m.problem(strict, fmt.Sprintf("provider %s: %v", name, err)); perr != nil {
				return perr
			}
			continue
		}

		// Invalid credentials exclude the provider from healthy
		// selection but do not block registration; it recovers via
		// health checks once corrected.
		if err := provider.ValidateCredentials(ctx); err != nil {
			m.warnings = append(m.warnings, fmt.Sprintf("provider %s: credential validation failed: %v", name, err))
			m.logger.Warn("provider registered with invalid credentials",
				"provider", name, "error", err)
			markUnhealthy(provider, "credential validation failed")
		}

		m.registry.Register(registry.Registration{
			Provider:      provider,
			Capability:    settings.Capability,
			Subtype:       settings.Subtype,
			IsDefault:     settings.Default,
			FallbackOrder: settings.FallbackOrder,
		})
	}

	// A required capability with zero registered providers is fatal
	// regardless of mode; there is nothing to degrade to.
	for _, cap := range m.cfg.RequiredCapabilities {
		if len(m.registry.FallbackProviders(cap, "")) == 0 && m.registry.Select(cap, nil) == nil {
			m.errs = append(m.errs, fmt.Sprintf("required capability %q has no registered provider", cap))
			return fmt.Errorf("initialization failed: required capability %q has no registered provider", cap)
		}
	}
	return nil
}

func markUnhealthy(p providers.Provider, reason string) {
	type marker interface{ MarkUnhealthy(string) }
	if mk, ok := p.(marker); ok {
		mk.MarkUnhealthy(reason)
	}
}

// GetProvider returns the best provider of the capability, preferring
// preferredName when given. Selection requires health but falls back to
// unhealthy providers rather than returning nothing. Returns nil when
// the capability has no provider at all.
func (m *Manager) GetProvider(capability providers.CapabilityType, preferredName string) (providers.Provider, error) {
	if err := m.requireInitialized(); err != nil {
		return nil, err
	}
	return m.registry.Select(capability, &registry.SelectOptions{
		PreferredProvider: preferredName,
		RequireHealthy:    true,
		FallbackEnabled:   true,
	}), nil
}

func (m *Manager) requireInitialized() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInitialized {
		return ErrNotInitialized
	}
	return nil
}
