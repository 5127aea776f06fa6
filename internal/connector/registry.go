package connector

import (
	"context"
	"sync"

	"github.com/dvloznov/bankfeed/internal/config"
	"github.com/dvloznov/bankfeed/internal/logger"
	"github.com/dvloznov/bankfeed/internal/storage"
)

// Registry holds the compiled-in providers. Providers are registered
// once at process start; a bad registration is logged and skipped so a
// single broken provider never prevents startup.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a provider registration. Invalid registrations (missing
// ID, nil factory, duplicate ID) are logged and skipped, never fatal.
func (r *Registry) Register(ctx context.Context, reg Registration) {
	log := logger.FromContext(ctx)

	if reg.ID == "" {
		log.Warn().Msg("Skipping provider registration with empty ID")
		return
	}
	if reg.Factory == nil {
		log.Warn().Str("provider", reg.ID).Msg("Skipping provider registration with no factory")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reg.ID]; exists {
		log.Warn().Str("provider", reg.ID).Msg("Skipping duplicate provider registration")
		return
	}

	r.order = append(r.order, reg.ID)
	r.factories[reg.ID] = reg.Factory
}

// All returns the valid registrations in registration order.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]Registration, 0, len(r.order))
	for _, id := range r.order {
		regs = append(regs, Registration{ID: id, Factory: r.factories[id]})
	}
	return regs
}

// Connectors builds one connector per configured account across all
// registered providers. Providers without a config section are skipped;
// a factory failure is a ConstructionError and aborts construction.
func (r *Registry) Connectors(ctx context.Context, cfg *config.Config, store storage.AccountStore) ([]Connector, error) {
	log := logger.FromContext(ctx)

	var connectors []Connector
	for _, reg := range r.All() {
		if !cfg.HasProvider(reg.ID) {
			log.Debug().Str("provider", reg.ID).Msg("Provider not configured, skipping")
			continue
		}

		built, err := reg.Factory(ctx, cfg, store)
		if err != nil {
			return nil, &ConstructionError{Provider: reg.ID, Err: err}
		}
		connectors = append(connectors, built...)
	}
	return connectors, nil
}
