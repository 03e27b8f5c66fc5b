package manager

import (
	"verity-hq/callisto/pkg/providers"
	"verity-hq/callisto/pkg/registry"
)

// Status summarizes the manager's current condition.
type Status struct {
	Initialized        bool     `json:"initialized"`
	State              string   `json:"state"`
	TotalProviders     int      `json:"total_providers"`
	HealthyProviders   int      `json:"healthy_providers"`
	ConfigurationValid bool     `json:"configuration_valid"`
	Errors             []string `json:"errors,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// HealthReport combines per-provider health with registry aggregates.
type HealthReport struct {
	Providers map[string]providers.HealthStatus `json:"providers"`
	Registry  registry.Metrics                  `json:"registry"`
}

// Status reports the manager's condition. Fails with ErrNotInitialized
// before Initialize or after Shutdown.
func (m *Manager) Status() (Status, error) {
	if err := m.requireInitialized(); err != nil {
		return Status{}, err
	}

	m.mu.Lock()
	state := m.state
	errs := append([]string(nil), m.errs...)
	warnings := append([]string(nil), m.warnings...)
	m.mu.Unlock()

	rm := m.registry.GetMetrics()
	return Status{
		Initialized:        true,
		State:              state.String(),
		TotalProviders:     rm.TotalProviders,
		HealthyProviders:   rm.HealthyProviders,
		ConfigurationValid: len(errs) == 0,
		Errors:             errs,
		Warnings:           warnings,
	}, nil
}

// HealthStatus returns every registered provider's health snapshot plus
// the registry aggregates. Fails with ErrNotInitialized before
// Initialize or after Shutdown.
func (m *Manager) HealthStatus() (HealthReport, error) {
	if err := m.requireInitialized(); err != nil {
		return HealthReport{}, err
	}

	report := HealthReport{
		Providers: make(map[string]providers.HealthStatus),
		Registry:  m.registry.GetMetrics(),
	}
	for _, name := range m.registry.Names() {
		if p := m.registry.Get(name); p != nil {
			report.Providers[name] = p.GetHealth()
		}
	}
	return report, nil
}
