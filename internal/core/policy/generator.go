package policy

import (
	"context"

	"github.com/conmap/conmap/internal/core/cmap"
	"github.com/conmap/conmap/internal/core/dep"
)

// =============================================================================
// Action Generator Template
// =============================================================================

// PathFunc computes the ordered path of items to handle before the
// explicitly requested configuration: dependencies for forward traversal,
// dependents for reverse traversal.
type PathFunc func(mapName, config string) ([]dep.ContainerRef, error)

// ItemFunc emits the actions for a single path item. dependency marks items
// that are implicit dependencies (or dependents) of the requested
// configuration, as opposed to the explicit target; a strategy may treat
// those more conservatively (e.g. ensure-running instead of force-recreate).
type ItemFunc func(ctx context.Context, m *cmap.ContainerMap, configName string,
	cfg *cmap.ContainerConfiguration, instances []string, dependency bool, kwargs Kwargs) ([]ClientResult, error)

// Generator walks a dependency path and emits per-item actions. The path
// strategy and the per-item action are pluggable; ordering and fail-fast
// semantics live here.
type Generator struct {
	policy *Policy
	path   PathFunc
	item   ItemFunc
}

// NewForwardGenerator creates a generator whose path is the dependencies of
// the requested configuration (creation/start order).
func NewForwardGenerator(p *Policy, item ItemFunc) *Generator {
	return &Generator{policy: p, path: p.Dependencies, item: item}
}

// NewReverseGenerator creates a generator whose path is the dependents of the
// requested configuration (stop/removal order).
func NewReverseGenerator(p *Policy, item ItemFunc) *Generator {
	return &Generator{policy: p, path: p.Dependents, item: item}
}

// Actions computes the dependency path for the requested configuration,
// executes the item action for every path element with the dependency flag
// set and no extra kwargs, then executes the item action for the target with
// the caller kwargs. Only the target invocation's results are returned;
// dependency invocations run for effect. Any item failure aborts the
// remaining path immediately.
func (g *Generator) Actions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error) {
	path, err := g.path(mapName, config)
	if err != nil {
		return nil, err
	}
	for _, ref := range path {
		var refInstances []string
		if ref.Instance != "" {
			refInstances = []string{ref.Instance}
		}
		if _, err := g.run(ctx, ref.Map, ref.Config, refInstances, true, nil); err != nil {
			return nil, err
		}
	}
	return g.run(ctx, mapName, config, instances, false, kwargs)
}

func (g *Generator) run(ctx context.Context, mapName, config string, instances []string, dependency bool, kwargs Kwargs) ([]ClientResult, error) {
	m, err := g.policy.Map(mapName)
	if err != nil {
		return nil, err
	}
	cfg, err := m.Get(config)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		instances = cfg.Instances
	}
	if len(instances) == 0 {
		instances = []string{""}
	}
	return g.item(ctx, m, config, cfg, instances, dependency, kwargs)
}
