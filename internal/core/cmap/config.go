package cmap

// =============================================================================
// Container Configuration
// =============================================================================

// ContainerConfiguration is one logical container definition within a map. A
// configuration may be instantiated multiple times through Instances, in which
// case every instance shares the definition but receives a distinct identity.
//
// Pointer-typed scalars distinguish "not set" from an explicit zero value;
// merge semantics depend on that distinction.
type ContainerConfiguration struct {
	// Abstract configurations only serve as templates for Extends and are
	// never instantiated themselves.
	Abstract bool
	Extends  []string

	// Image overrides the configuration name as the image to instantiate.
	Image     string
	Instances []string

	// Shares are raw mount points with no host binding. Entries may be
	// strings or Lazy values.
	Shares []any
	Binds  []HostBind
	Uses   []SharedVolume
	Links  []ContainerLink

	// Attaches names implicit volume-only containers created for this
	// configuration. Their volumes are shared with this container and
	// available to others through Uses.
	Attaches []string
	Exposes  []PortBinding

	// User may be an int (uid), a string ("user" or "user:group"), a
	// [2]string{user, group} pair, or a Lazy value.
	User any

	// Permissions holds chmod-style flags applied to attached volumes.
	Permissions string

	// Persistent containers exist only to share volumes; they are restarted
	// rather than removed during cleanup.
	Persistent *bool

	// Clients overrides the map-level client list for this configuration.
	Clients []string

	// CreateOptions and HostConfig carry free-form extra engine-call
	// arguments: either a map[string]any or a func() map[string]any thunk
	// evaluated when the arguments are built.
	CreateOptions any
	HostConfig    any

	// Environment is either a []string of KEY=VALUE entries or a
	// map[string]string.
	Environment any

	StopTimeout *int
	Network     NetworkSetting
}

// IsPersistent reports the persistent flag, defaulting to false when unset.
func (c *ContainerConfiguration) IsPersistent() bool {
	return c.Persistent != nil && *c.Persistent
}

// Copy returns a deep-enough copy for building extended configurations:
// slices are cloned, option maps are shallow-copied.
func (c *ContainerConfiguration) Copy() *ContainerConfiguration {
	n := *c
	n.Extends = cloneSlice(c.Extends)
	n.Instances = cloneSlice(c.Instances)
	n.Shares = cloneSlice(c.Shares)
	n.Binds = cloneSlice(c.Binds)
	n.Uses = cloneSlice(c.Uses)
	n.Links = cloneSlice(c.Links)
	n.Attaches = cloneSlice(c.Attaches)
	n.Exposes = cloneSlice(c.Exposes)
	n.Clients = cloneSlice(c.Clients)
	n.CreateOptions = copyOptions(c.CreateOptions)
	n.HostConfig = copyOptions(c.HostConfig)
	return &n
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func copyOptions(o any) any {
	m, ok := o.(map[string]any)
	if !ok {
		return o
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// =============================================================================
// Merge
// =============================================================================

// MergeFrom merges another configuration into this one. List fields are
// extended with unique new elements; the keyed lists (binds, uses, links,
// exposes) dedup by their first element, keeping the earliest occurrence.
// Unless listsOnly is set, scalar fields set on other overwrite this
// configuration and option maps are shallow-merged.
//
// Each field is handled explicitly by kind; there is no reflective dispatch.
func (c *ContainerConfiguration) MergeFrom(other *ContainerConfiguration, listsOnly bool) {
	c.Instances = mergeUnique(c.Instances, other.Instances)
	c.Shares = mergeUnique(c.Shares, other.Shares)
	c.Attaches = mergeUnique(c.Attaches, other.Attaches)
	c.Clients = mergeUnique(c.Clients, other.Clients)

	c.Binds = mergeKeyed(c.Binds, other.Binds, func(b HostBind) string {
		if b.Alias != "" {
			return b.Alias
		}
		return b.ContainerPath
	})
	c.Uses = mergeKeyed(c.Uses, other.Uses, func(u SharedVolume) string { return u.Name })
	c.Links = mergeKeyed(c.Links, other.Links, func(l ContainerLink) string { return l.Container })
	c.Exposes = mergeKeyed(c.Exposes, other.Exposes, func(p PortBinding) int { return p.ExposedPort })

	if listsOnly {
		return
	}
	if other.Image != "" {
		c.Image = other.Image
	}
	if other.User != nil {
		c.User = other.User
	}
	if other.Permissions != "" {
		c.Permissions = other.Permissions
	}
	if other.Persistent != nil {
		v := *other.Persistent
		c.Persistent = &v
	}
	if other.StopTimeout != nil {
		v := *other.StopTimeout
		c.StopTimeout = &v
	}
	if other.Network.IsSet() {
		c.Network = other.Network
	}
	if other.Environment != nil {
		c.Environment = other.Environment
	}
	c.CreateOptions = mergeOptions(c.CreateOptions, other.CreateOptions)
	c.HostConfig = mergeOptions(c.HostConfig, other.HostConfig)
}

func mergeUnique[T comparable](current, updates []T) []T {
	for _, u := range updates {
		found := false
		for _, e := range current {
			if e == u {
				found = true
				break
			}
		}
		if !found {
			current = append(current, u)
		}
	}
	return current
}

// mergeKeyed appends entries whose key is not yet present, keeping the
// earliest occurrence per key.
func mergeKeyed[T any, K comparable](current, updates []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(current))
	for _, e := range current {
		seen[key(e)] = struct{}{}
	}
	for _, u := range updates {
		if _, ok := seen[key(u)]; ok {
			continue
		}
		seen[key(u)] = struct{}{}
		current = append(current, u)
	}
	return current
}

func mergeOptions(current, update any) any {
	um, uok := update.(map[string]any)
	if !uok {
		if update != nil {
			return update
		}
		return current
	}
	cm, cok := current.(map[string]any)
	if !cok {
		return copyOptions(um)
	}
	for k, v := range um {
		cm[k] = v
	}
	return cm
}
