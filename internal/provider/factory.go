package provider

import (
	"fmt"

	"bidflow/internal/config"
	"bidflow/internal/domain"
	"bidflow/internal/port"
)

// Factory creates a backend from its vendor config.
type Factory func(cfg config.ProviderConfig) (port.ModelProvider, error)

// registry of backends, populated by init() in each backend package.
var providers = map[string]Factory{}

// RegisterProvider registers a backend factory by name.
func RegisterProvider(name string, factory Factory) {
	providers[name] = factory
}

// NewProvider creates the backend registered under name.
func NewProvider(name string, cfg config.ProviderConfig) (port.ModelProvider, error) {
	factory, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
	}
	return factory(cfg)
}

// ForRosterEntry builds the resilient, model-bound provider for one roster entry.
func ForRosterEntry(vendors *config.ProvidersConfig, entry config.RosterEntry) (*Bound, error) {
	vendorCfg, ok := vendors.For(entry.Provider)
	if !ok {
		return nil, fmt.Errorf("roster entry %s: %w: %s", entry.ID, domain.ErrUnknownProvider, entry.Provider)
	}
	backend, err := NewProvider(entry.Provider, vendorCfg)
	if err != nil {
		return nil, fmt.Errorf("roster entry %s: %w", entry.ID, err)
	}
	resilient := NewResilient(backend,
		WithAttemptTimeout(vendorCfg.Timeout()),
		WithRequestsPerMinute(vendorCfg.RequestsPerMinute),
		WithMaxAttempts(vendorCfg.MaxRetries),
	)
	return Bind(resilient, entry.Model), nil
}

// ChainFromRoster builds a FallbackProvider over the roster entries named by
// ids, tried in the given order.
func ChainFromRoster(vendors *config.ProvidersConfig, roster []config.RosterEntry, ids []string) (*FallbackProvider, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: provider chain is empty", domain.ErrInvalidInput)
	}
	byID := make(map[string]config.RosterEntry, len(roster))
	for _, e := range roster {
		byID[e.ID] = e
	}
	chain := make([]port.ModelProvider, 0, len(ids))
	for _, id := range ids {
		entry, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: provider chain names unknown roster id %q", domain.ErrInvalidInput, id)
		}
		bound, err := ForRosterEntry(vendors, entry)
		if err != nil {
			return nil, err
		}
		chain = append(chain, bound)
	}
	return NewFallbackProvider(chain...), nil
}
