package manager

import (
	"fmt"

	"verity-hq/callisto/pkg/providers"
	"verity-hq/callisto/pkg/providers/auth"
	"verity-hq/callisto/pkg/providers/inference"
	"verity-hq/callisto/pkg/providers/knowledge"
	"verity-hq/callisto/pkg/providers/storage"
)

// Factory constructs a provider from its configuration. Swapped out in
// tests to register doubles.
type Factory func(cfg providers.ProviderConfig, opts ...providers.BaseOption) (providers.Provider, error)

// DefaultFactory builds the concrete provider for the configured
// capability type.
func DefaultFactory(cfg providers.ProviderConfig, opts ...providers.BaseOption) (providers.Provider, error) {
	switch cfg.Capability {
	case providers.CapabilityInference:
		return inference.NewProvider(cfg, opts...)
	case providers.CapabilityAuth:
		return auth.NewProvider(cfg, opts...)
	case providers.CapabilityStorage:
		return storage.NewProvider(cfg, opts...)
	case providers.CapabilityKnowledge:
		return knowledge.NewProvider(cfg, opts...)
	default:
		return nil, &providers.ConfigError{
			Provider: cfg.Name,
			Field:    "capability",
			Message:  fmt.Sprintf("unknown capability type %q", cfg.Capability),
		}
	}
}
