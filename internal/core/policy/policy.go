// Package policy is the action-generation and parameter-derivation core: it
// combines the dependency resolver and the lifecycle request builders behind
// a façade, and provides the generic dependency-path-walking template that
// concrete strategies plug into.
package policy

import (
	"github.com/conmap/conmap/internal/core/cmap"
	"github.com/conmap/conmap/internal/core/dep"
)

// =============================================================================
// Policy Façade
// =============================================================================

// Policy resolves container maps, client endpoints, and dependency paths for
// action generation. Maps are flattened (extends inheritance applied) once at
// construction and the dependency graphs built from them are treated as
// immutable thereafter.
type Policy struct {
	maps    map[string]*cmap.ContainerMap
	clients map[string]*ClientConfig
	builder BuilderConfig

	forward  *dep.Resolver
	backward *dep.Resolver
}

// New creates a Policy over the given container maps and client registry.
// Cyclic dependency declarations are rejected here.
func New(maps map[string]*cmap.ContainerMap, clients map[string]*ClientConfig, builder BuilderConfig) (*Policy, error) {
	p := &Policy{
		maps:     make(map[string]*cmap.ContainerMap, len(maps)),
		clients:  clients,
		builder:  builder,
		forward:  dep.NewResolver(),
		backward: dep.NewResolver(),
	}
	for name, m := range maps {
		ext, err := m.Extended()
		if err != nil {
			return nil, err
		}
		p.maps[name] = ext
	}
	for _, m := range p.maps {
		if err := p.forward.Update(m); err != nil {
			return nil, err
		}
		if err := p.backward.UpdateBackward(m); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Map returns the extended container map with the given name.
func (p *Policy) Map(name string) (*cmap.ContainerMap, error) {
	m, ok := p.maps[name]
	if !ok {
		return nil, cmap.NewLookupError("container map", name, "")
	}
	return m, nil
}

// Maps returns all extended container maps.
func (p *Policy) Maps() map[string]*cmap.ContainerMap { return p.maps }

// Builder returns the builder configuration (core/base images).
func (p *Policy) Builder() BuilderConfig { return p.builder }

// ClientEntry is one resolved engine endpoint for an action: its name, the
// cached client handle, and its configuration.
type ClientEntry struct {
	Name   string
	Client Engine
	Config *ClientConfig
}

// Clients returns the ordered engine endpoints to target for a configuration:
// the configuration-level client list wins over the map-level list, which
// wins over the single built-in default client.
func (p *Policy) Clients(cfg *cmap.ContainerConfiguration, m *cmap.ContainerMap) ([]ClientEntry, error) {
	names := cfg.Clients
	if len(names) == 0 {
		names = m.Clients
	}
	if len(names) == 0 {
		names = []string{DefaultClientName}
	}
	entries := make([]ClientEntry, 0, len(names))
	for _, name := range names {
		cc, ok := p.clients[name]
		if !ok {
			return nil, cmap.NewLookupError("client", name, "")
		}
		client, err := cc.Client()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ClientEntry{Name: name, Client: client, Config: cc})
	}
	return entries, nil
}

// Dependencies returns the dependency path of a configuration in execution
// order: the furthest dependency first, so sequential processing satisfies
// every dependency before its dependents.
func (p *Policy) Dependencies(mapName, config string) ([]dep.ContainerRef, error) {
	refs, err := p.forward.ContainerDependencies(mapName, config)
	if err != nil {
		return nil, err
	}
	return reverseRefs(refs), nil
}

// Dependents returns the dependent path of a configuration in teardown order:
// the furthest dependent first, so nothing is removed before everything that
// depends on it.
func (p *Policy) Dependents(mapName, config string) ([]dep.ContainerRef, error) {
	refs, err := p.backward.ContainerDependencies(mapName, config)
	if err != nil {
		return nil, err
	}
	return reverseRefs(refs), nil
}

func reverseRefs(refs []dep.ContainerRef) []dep.ContainerRef {
	out := make([]dep.ContainerRef, len(refs))
	for i, r := range refs {
		out[len(refs)-1-i] = r
	}
	return out
}
