// Package cmap provides the declarative container map model: named
// collections of container configurations plus the shared defaults, volume
// tables, and value records that parameter derivation consumes.
//
// The model is pure data. Maps and configurations are constructed once from
// static configuration and treated as read-only during action generation; the
// extended map (with Extends inheritance flattened) is computed once and
// cached by the policy for its lifetime.
package cmap

import (
	"fmt"
	"path"
	"strings"
)

// DefaultInstanceKey selects the fallback entry of a per-instance host path
// table when no instance name applies.
const DefaultInstanceKey = "default"

// =============================================================================
// Container Map
// =============================================================================

// ContainerMap is a named collection of container configurations together
// with map-level defaults and the volume alias tables shared by all of them.
type ContainerMap struct {
	Name string

	// Repository, if set, prefixes unqualified image names. May be a string
	// or a Lazy value.
	Repository any

	// DefaultDomain is the domain name applied when the client configuration
	// does not override it.
	DefaultDomain any

	// SetHostname opts the map into deriving container hostnames from the
	// resolved container name.
	SetHostname bool

	// UseAttachedParentName qualifies attached container names with their
	// parent configuration name.
	UseAttachedParentName bool

	// Clients is the map-level default client list.
	Clients []string

	Containers map[string]*ContainerConfiguration

	// Volumes maps volume aliases to container-side paths (string or Lazy).
	Volumes map[string]any

	Host HostVolumes
}

// HostVolumes stores the host-side paths of shared volumes. Paths values may
// be strings, Lazy values, or map[string]any tables keyed by instance name.
type HostVolumes struct {
	Root  any
	Paths map[string]any
}

// NewContainerMap creates an empty map with hostname derivation enabled,
// matching the default behavior expected by most configurations.
func NewContainerMap(name string) *ContainerMap {
	return &ContainerMap{
		Name:        name,
		SetHostname: true,
		Containers:  map[string]*ContainerConfiguration{},
		Volumes:     map[string]any{},
		Host:        HostVolumes{Paths: map[string]any{}},
	}
}

// Get returns the named container configuration, or a LookupError if the map
// does not contain it.
func (m *ContainerMap) Get(name string) (*ContainerConfiguration, error) {
	c, ok := m.Containers[name]
	if !ok {
		return nil, NewLookupError("container configuration", name, m.Name)
	}
	return c, nil
}

// VolumePath resolves a volume alias to its container-side path.
func (m *ContainerMap) VolumePath(alias string) (string, error) {
	v, ok := m.Volumes[alias]
	if !ok {
		return "", NewLookupError("volume alias", alias, m.Name)
	}
	p := ResolveString(v)
	if p == "" {
		return "", NewLookupError("volume alias", alias, m.Name)
	}
	return p, nil
}

// HostVolumePath resolves the host path of a volume alias for the given
// instance.
func (m *ContainerMap) HostVolumePath(alias, instance string) (string, error) {
	v, ok := m.Host.Paths[alias]
	if !ok {
		return "", NewLookupError("volume alias", alias, m.Name)
	}
	return HostPath(m.Host.Root, v, instance), nil
}

// AttachedParent returns the configuration name owning the given attached
// volume alias, if any configuration on this map attaches it.
func (m *ContainerMap) AttachedParent(alias string) (string, bool) {
	for name, cfg := range m.Containers {
		for _, a := range cfg.Attaches {
			if a == alias {
				return name, true
			}
		}
	}
	return "", false
}

// =============================================================================
// Host Path Resolution
// =============================================================================

// HostPath resolves the host path for a container volume. A map-typed path is
// a per-instance table; the entry for the instance (or DefaultInstanceKey) is
// used. Relative paths are joined onto root.
func HostPath(root, p any, instance string) string {
	r := Resolve(p)
	var resolved string
	if table, ok := r.(map[string]any); ok {
		key := instance
		if key == "" {
			key = DefaultInstanceKey
		}
		resolved = ResolveString(table[key])
	} else {
		resolved = ResolveString(r)
	}
	rootPath := ResolveString(root)
	if resolved != "" && rootPath != "" && !strings.HasPrefix(resolved, "/") {
		return path.Join(rootPath, resolved)
	}
	return resolved
}

// =============================================================================
// Extended Map
// =============================================================================

// Extended returns a copy of the map with Extends inheritance flattened:
// every configuration is merged over its (transitively extended) parents, and
// abstract configurations are removed. The result is what action generation
// operates on.
func (m *ContainerMap) Extended() (*ContainerMap, error) {
	ext := &ContainerMap{
		Name:                  m.Name,
		Repository:            m.Repository,
		DefaultDomain:         m.DefaultDomain,
		SetHostname:           m.SetHostname,
		UseAttachedParentName: m.UseAttachedParentName,
		Clients:               cloneSlice(m.Clients),
		Containers:            make(map[string]*ContainerConfiguration, len(m.Containers)),
		Volumes:               m.Volumes,
		Host:                  m.Host,
	}
	for name, cfg := range m.Containers {
		if cfg.Abstract {
			continue
		}
		flattened, err := m.flatten(name, cfg, nil)
		if err != nil {
			return nil, err
		}
		ext.Containers[name] = flattened
	}
	return ext, nil
}

func (m *ContainerMap) flatten(name string, cfg *ContainerConfiguration, chain []string) (*ContainerConfiguration, error) {
	for _, seen := range chain {
		if seen == name {
			return nil, fmt.Errorf("circular reference in extends chain of '%s' on map '%s'", name, m.Name)
		}
	}
	if len(cfg.Extends) == 0 {
		return cfg.Copy(), nil
	}
	base := &ContainerConfiguration{}
	for _, parentName := range cfg.Extends {
		parent, ok := m.Containers[parentName]
		if !ok {
			return nil, NewLookupError("container configuration", parentName, m.Name)
		}
		flatParent, err := m.flatten(parentName, parent, append(chain, name))
		if err != nil {
			return nil, err
		}
		base.MergeFrom(flatParent, false)
	}
	base.MergeFrom(cfg, false)
	base.Abstract = cfg.Abstract
	base.Extends = nil
	return base, nil
}
