package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/thalamus-ai/thalamus/pkg/config"
)

// Registry holds the constructed backends in a deterministic order.
// The order is the fallback order from configuration, followed by any
// additional configured backends sorted by name.
type Registry struct {
	order   []string
	clients map[string]Client
}

// NewRegistry builds a registry from already-constructed clients.
// preferred lists names in fallback order; names absent from clients are
// skipped, and clients not named are appended sorted.
func NewRegistry(clients map[string]Client, preferred []string) *Registry {
	copied := make(map[string]Client, len(clients))
	for name, c := range clients {
		copied[name] = c
	}

	order := make([]string, 0, len(copied))
	seen := make(map[string]bool, len(copied))
	for _, name := range preferred {
		if _, ok := copied[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range copied {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	return &Registry{order: order, clients: copied}
}

// BuildRegistry constructs a backend per configured provider and registers
// them in the defaults' fallback order. Backends that fail construction are
// logged and skipped; a missing cloud SDK credential is not a startup
// error, it is an unavailable backend.
func BuildRegistry(cfg *config.Config) (*Registry, error) {
	providers := cfg.LLMProviderRegistry.GetAll()
	clients := make(map[string]Client, len(providers))

	for name, providerCfg := range providers {
		backend, err := NewBackend(name, providerCfg)
		if err != nil {
			slog.Warn("Skipping LLM backend", "backend", name, "error", err)
			continue
		}
		clients[name] = backend
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("llm: no backends could be constructed")
	}

	return NewRegistry(clients, cfg.Defaults.FallbackOrder), nil
}

// Get returns the named client.
func (r *Registry) Get(name string) (Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Order returns the registry's backend names in fallback order.
func (r *Registry) Order() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	return len(r.clients)
}

// BackendStatus pairs a backend's status with its current availability.
type BackendStatus struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Available bool   `json:"available"`
}

// Statuses returns a snapshot of every backend's status and availability,
// in registry order.
func (r *Registry) Statuses(ctx context.Context) []BackendStatus {
	out := make([]BackendStatus, 0, len(r.order))
	for _, name := range r.order {
		c := r.clients[name]
		out = append(out, BackendStatus{
			Name:      name,
			Status:    c.Status(),
			Available: c.Available(ctx),
		})
	}
	return out
}
