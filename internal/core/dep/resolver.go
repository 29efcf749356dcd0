// Package dep builds and queries the dependency graph over container
// configurations. Edges are derived from a configuration's used volumes,
// links, and network references; the backward graph is the edge-transpose and
// answers teardown-order queries.
package dep

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conmap/conmap/internal/core/cmap"
)

// =============================================================================
// Graph Types
// =============================================================================

// ContainerRef identifies one container item: a configuration on a map,
// optionally narrowed to a single instance. An empty Instance means all
// instances of the configuration.
type ContainerRef struct {
	Map      string
	Config   string
	Instance string
}

func (r ContainerRef) String() string {
	if r.Instance != "" {
		return fmt.Sprintf("%s.%s.%s", r.Map, r.Config, r.Instance)
	}
	return fmt.Sprintf("%s.%s", r.Map, r.Config)
}

type nodeKey struct {
	Map    string
	Config string
}

// CycleError reports a circular dependency chain found while ingesting a map.
type CycleError struct {
	Chain []ContainerRef
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Chain))
	for i, r := range e.Chain {
		names[i] = r.String()
	}
	return "circular container dependency: " + strings.Join(names, " -> ")
}

// =============================================================================
// Resolver
// =============================================================================

// Resolver answers transitive dependency queries over ingested container
// maps. A Resolver updated with Update holds the forward graph ("what must
// exist before X"); one updated with UpdateBackward holds the transpose
// ("what depends on X"). Query results are cached; the graph is immutable
// once all maps are ingested.
type Resolver struct {
	edges map[nodeKey][]ContainerRef
	cache map[nodeKey][]ContainerRef
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		edges: map[nodeKey][]ContainerRef{},
		cache: map[nodeKey][]ContainerRef{},
	}
}

// Update ingests the forward dependency edges of a container map. Cycles are
// rejected here, at construction time, rather than lazily during path
// computation.
func (r *Resolver) Update(m *cmap.ContainerMap) error {
	for _, name := range sortedNames(m.Containers) {
		deps, err := configDependencies(m, name, m.Containers[name])
		if err != nil {
			return err
		}
		key := nodeKey{Map: m.Name, Config: name}
		r.edges[key] = append(r.edges[key], deps...)
	}
	r.cache = map[nodeKey][]ContainerRef{}
	return r.checkCycles()
}

// UpdateBackward ingests the transposed edges of a container map, so that
// queries return dependents instead of dependencies.
func (r *Resolver) UpdateBackward(m *cmap.ContainerMap) error {
	for _, name := range sortedNames(m.Containers) {
		deps, err := configDependencies(m, name, m.Containers[name])
		if err != nil {
			return err
		}
		source := ContainerRef{Map: m.Name, Config: name}
		for _, d := range deps {
			key := nodeKey{Map: d.Map, Config: d.Config}
			r.edges[key] = append(r.edges[key], source)
		}
	}
	r.cache = map[nodeKey][]ContainerRef{}
	return r.checkCycles()
}

// ContainerDependencies returns every transitive dependency (or dependent,
// for a backward resolver) of the given configuration. The sequence is
// ordered such that reversing it yields dependencies-first order: an item
// never precedes something it depends on once reversed.
func (r *Resolver) ContainerDependencies(mapName, config string) ([]ContainerRef, error) {
	key := nodeKey{Map: mapName, Config: config}
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}
	result := r.resolve(key)
	r.cache[key] = result
	return result, nil
}

// resolve concatenates, for every direct dependency, the dependency itself
// followed by its own transitive dependencies, then deduplicates keeping the
// last occurrence. Keeping the last occurrence pushes shared dependencies
// behind everything that needs them.
func (r *Resolver) resolve(key nodeKey) []ContainerRef {
	var ordered []ContainerRef
	for _, d := range r.edges[key] {
		ordered = append(ordered, d)
		ordered = append(ordered, r.resolve(nodeKey{Map: d.Map, Config: d.Config})...)
	}
	return dedupKeepLast(ordered)
}

// sortedNames keeps edge ingestion order independent of map iteration order,
// so dependency paths come out stable across runs.
func sortedNames(containers map[string]*cmap.ContainerConfiguration) []string {
	names := make([]string, 0, len(containers))
	for name := range containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func dedupKeepLast(refs []ContainerRef) []ContainerRef {
	last := make(map[ContainerRef]int, len(refs))
	for i, ref := range refs {
		last[ref] = i
	}
	out := make([]ContainerRef, 0, len(last))
	for i, ref := range refs {
		if last[ref] == i {
			out = append(out, ref)
		}
	}
	return out
}

func (r *Resolver) checkCycles() error {
	state := make(map[nodeKey]int, len(r.edges)) // 0 unseen, 1 visiting, 2 done
	var visit func(key nodeKey, chain []ContainerRef) error
	visit = func(key nodeKey, chain []ContainerRef) error {
		switch state[key] {
		case 1:
			chain = append(chain, ContainerRef{Map: key.Map, Config: key.Config})
			return &CycleError{Chain: chain}
		case 2:
			return nil
		}
		state[key] = 1
		chain = append(chain, ContainerRef{Map: key.Map, Config: key.Config})
		for _, d := range r.edges[key] {
			if err := visit(nodeKey{Map: d.Map, Config: d.Config}, chain); err != nil {
				return err
			}
		}
		state[key] = 2
		return nil
	}
	for key := range r.edges {
		if err := visit(key, nil); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Edge Derivation
// =============================================================================

// configDependencies derives the direct dependency references of one
// configuration: used volumes (resolved through attached aliases to their
// owning configuration), link targets, and a container network reference.
// The configuration's own attached volumes are not dependencies; they are
// leaves handled within the configuration's own lifecycle.
func configDependencies(m *cmap.ContainerMap, name string, cfg *cmap.ContainerConfiguration) ([]ContainerRef, error) {
	var deps []ContainerRef
	add := func(ref ContainerRef) {
		for _, d := range deps {
			if d == ref {
				return
			}
		}
		deps = append(deps, ref)
	}

	for _, u := range cfg.Uses {
		ref, err := resolveUsed(m, name, u.Name)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			add(*ref)
		}
	}
	for _, l := range cfg.Links {
		target, instance, _ := strings.Cut(l.Container, ".")
		if _, err := m.Get(target); err != nil {
			return nil, err
		}
		add(ContainerRef{Map: m.Name, Config: target, Instance: instance})
	}
	if cfg.Network.Container != "" {
		if _, err := m.Get(cfg.Network.Container); err != nil {
			return nil, err
		}
		add(ContainerRef{Map: m.Name, Config: cfg.Network.Container, Instance: cfg.Network.Instance})
	}
	return deps, nil
}

// resolveUsed maps a used volume name to the configuration providing it. The
// name is either "config", "config.instance", or an attached volume alias.
// Aliases attached by the using configuration itself resolve to nil.
func resolveUsed(m *cmap.ContainerMap, owner, name string) (*ContainerRef, error) {
	base, instance, _ := strings.Cut(name, ".")
	if _, ok := m.Containers[base]; ok {
		return &ContainerRef{Map: m.Name, Config: base, Instance: instance}, nil
	}
	if parent, ok := m.AttachedParent(name); ok {
		if parent == owner {
			return nil, nil
		}
		return &ContainerRef{Map: m.Name, Config: parent}, nil
	}
	return nil, cmap.NewLookupError("used volume", name, m.Name)
}
