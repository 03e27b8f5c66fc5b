package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"verity-hq/callisto/pkg/providers"
)

// sweepProbeTimeout bounds each provider's probe within a sweep so one
// hanging backend cannot stall the tick indefinitely.
const sweepProbeTimeout = 15 * time.Second

// StartHealthChecks begins a recurring sweep that probes every
// registered provider at the given interval. Starting while a loop is
// already running restarts it with the new interval.
func (r *Registry) StartHealthChecks(interval time.Duration) {
	r.healthMu.Lock()
	defer r.healthMu.Unlock()

	if r.healthStop != nil {
		r.stopHealthLocked()
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	r.healthStop = stop
	r.healthDone = done

	go r.healthLoop(interval, stop, done)
	r.logger.Info("health checks started", "interval", interval)
}

// StopHealthChecks stops the sweep loop and waits for an in-flight
// sweep to settle. Safe to call when no loop is running.
func (r *Registry) StopHealthChecks() {
	r.healthMu.Lock()
	defer r.healthMu.Unlock()
	r.stopHealthLocked()
}

func (r *Registry) stopHealthLocked() {
	if r.healthStop == nil {
		return
	}
	close(r.healthStop)
	<-r.healthDone
	r.healthStop = nil
	r.healthDone = nil
	r.logger.Info("health checks stopped")
}

func (r *Registry) healthLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Probe once immediately so status is populated before the first
	// full interval elapses.
	r.SweepHealth(context.Background())

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.SweepHealth(context.Background())
		}
	}
}

// SweepHealth probes every registered provider concurrently and waits
// for all probes to settle. Probe errors and panics are isolated per
// provider: they update that provider's health state and are logged,
// never propagated.
func (r *Registry) SweepHealth(ctx context.Context) {
	r.mu.RLock()
	regs := make([]*Registration, 0, len(r.entries))
	for _, reg := range r.entries {
		regs = append(regs, reg)
	}
	r.mu.RUnlock()

	if len(regs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, reg := range regs {
		wg.Add(1)
		go func(reg *Registration) {
			defer wg.Done()
			r.probeOne(ctx, reg)
		}(reg)
	}
	wg.Wait()
}

func (r *Registry) probeOne(ctx context.Context, reg *Registration) {
	name := reg.Provider.GetName()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("health probe panicked",
				"provider", name,
				"panic", fmt.Sprint(rec))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, sweepProbeTimeout)
	defer cancel()

	if err := reg.Provider.PerformHealthCheck(ctx); err != nil {
		r.logger.Warn("health probe failed", "provider", name, "error", err)
	}

	if r.onSweep != nil {
		r.onSweep(name, reg.Capability, reg.Provider.GetHealth())
	}
}

// Metrics aggregates provider counts from live registration state.
type Metrics struct {
	TotalProviders     int                                      `json:"total_providers"`
	HealthyProviders   int                                      `json:"healthy_providers"`
	UnhealthyProviders int                                      `json:"unhealthy_providers"`
	ByCapability       map[providers.CapabilityType]TypeMetrics `json:"by_capability"`
}

// TypeMetrics counts providers of one capability.
type TypeMetrics struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
}

// GetMetrics computes aggregate counts from current registry state.
// Nothing is cached; every call reflects the live registrations.
func (r *Registry) GetMetrics() Metrics {
	r.mu.RLock()
	regs := make([]*Registration, 0, len(r.entries))
	for _, reg := range r.entries {
		regs = append(regs, reg)
	}
	r.mu.RUnlock()

	m := Metrics{ByCapability: make(map[providers.CapabilityType]TypeMetrics)}
	for _, reg := range regs {
		tm := m.ByCapability[reg.Capability]
		tm.Total++
		m.TotalProviders++
		if reg.Provider.IsHealthy() {
			tm.Healthy++
			m.HealthyProviders++
		} else {
			tm.Unhealthy++
			m.UnhealthyProviders++
		}
		m.ByCapability[reg.Capability] = tm
	}
	return m
}
