package eld

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/types"
)

// Factory builds an adapter instance for one call lifecycle. The config
// and HTTP client are shared per provider; the credential bundle is
// supplied fresh for every instantiation and discarded with it.
type Factory func(cfg config.ProviderConfig, creds types.Credentials, client *http.Client, gate RateGate) ProviderAdapter

// Descriptor is the registry's public description of a provider, served
// to the back office for the provider picker and connection form.
type Descriptor struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	Description  string                     `json:"description"`
	Website      string                     `json:"website,omitempty"`
	Version      string                     `json:"version"`
	IsActive     bool                       `json:"isActive"`
	Capabilities types.ProviderCapabilities `json:"capabilities"`
	Endpoints    config.EndpointMap         `json:"endpoints"`
	Fields       config.FieldConfig         `json:"fields"`
}

type entry struct {
	cfg        config.ProviderConfig
	factory    Factory
	client     *http.Client
	descriptor Descriptor
}

// Registry maps provider ids to adapter factories and descriptors,
// replacing the scattered per-provider switches with a single dispatch
// point resolved at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	aliases map[string]string
	gate    RateGate
}

func NewRegistry(gate RateGate) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		aliases: make(map[string]string),
		gate:    gate,
	}
}

func (r *Registry) Register(id string, cfg config.ProviderConfig, factory Factory) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        maxConcurrent,
			MaxIdleConnsPerHost: maxConcurrent,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}

	fields := cfg.Fields
	if fields == (config.FieldConfig{}) {
		fields = config.DefaultFieldConfig()
	}

	// Capabilities are fixed per adapter class; probe them with an empty
	// credential bundle since Capabilities is pure.
	caps := factory(cfg, types.Credentials{}, client, nil).Capabilities()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &entry{
		cfg:     cfg,
		factory: factory,
		client:  client,
		descriptor: Descriptor{
			ID:           id,
			Name:         cfg.Name,
			Description:  cfg.Description,
			Website:      cfg.Website,
			Version:      "1.0",
			IsActive:     true,
			Capabilities: caps,
			Endpoints:    cfg.Endpoints,
			Fields:       fields,
		},
	}
}

// Alias maps a legacy provider id onto a registered one.
func (r *Registry) Alias(alias, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = id
}

func (r *Registry) resolve(id string) (*entry, bool) {
	if canonical, ok := r.aliases[id]; ok {
		id = canonical
	}
	e, ok := r.entries[id]
	return e, ok
}

// New instantiates an adapter for one call lifecycle. An unknown provider
// id is a caller programming error and is the only failure in this layer
// surfaced as a Go error.
func (r *Registry) New(id string, creds types.Credentials) (ProviderAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.resolve(id)
	if !ok {
		return nil, fmt.Errorf("unknown ELD provider: %s", id)
	}
	return e.factory(e.cfg, creds, e.client, r.gate), nil
}

// Replace swaps in the entries and aliases from a freshly built
// registry. Concurrent readers see either the old set or the new set,
// never a mix.
func (r *Registry) Replace(next *Registry) {
	next.mu.RLock()
	entries, aliases := next.entries, next.aliases
	next.mu.RUnlock()

	r.mu.Lock()
	r.entries = entries
	r.aliases = aliases
	r.mu.Unlock()
}

// Has reports whether a provider id (or alias) is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resolve(id)
	return ok
}

// Descriptors returns all registered providers sorted by id.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BuildFromConfig builds the provider registry from providers.yaml.
// Unknown provider types are skipped with a warning so a config typo
// cannot take the whole gateway down.
func BuildFromConfig(provCfg *config.ProvidersConfig, gate RateGate, logger *slog.Logger) *Registry {
	registry := NewRegistry(gate)
	for id, cfg := range provCfg.Providers {
		var factory Factory
		switch cfg.Type {
		case "samsara":
			factory = NewSamsara
		case "motive":
			factory = NewMotive
		case "geotab":
			factory = NewGeotab
		case "omnitracs":
			factory = NewOmnitracs
		default:
			logger.Warn("skipping provider with unknown type", "provider", id, "type", cfg.Type)
			continue
		}
		registry.Register(id, cfg, factory)
	}
	// Motive was formerly KeepTruckin; stored connections may still carry
	// the old id.
	if registry.Has("motive") {
		registry.Alias("keeptruckin", "motive")
	}
	return registry
}
