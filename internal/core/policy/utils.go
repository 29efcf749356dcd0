package policy

import (
	"fmt"
	"sort"

	"github.com/conmap/conmap/internal/core/cmap"
)

// =============================================================================
// Parameter Derivation Helpers
// =============================================================================

// SharedVolumePath resolves one host bind of a configuration to its container
// path and host path. Explicit path pairs must carry an absolute container
// path and a host path; alias binds resolve through the map's volume tables.
func SharedVolumePath(m *cmap.ContainerMap, bind cmap.HostBind, instance string) (containerPath, hostPath string, err error) {
	if bind.Alias == "" {
		cPath := cmap.ResolveString(bind.ContainerPath)
		if !cmap.IsPath(cPath) || bind.HostPath == nil {
			return "", "", cmap.NewValidationError("binds",
				"host-container binding must be described by two paths or one alias name", bind)
		}
		return cPath, cmap.HostPath(m.Host.Root, bind.HostPath, instance), nil
	}
	cPath, err := m.VolumePath(bind.Alias)
	if err != nil {
		return "", "", err
	}
	hPath, err := m.HostVolumePath(bind.Alias, instance)
	if err != nil {
		return "", "", err
	}
	return cPath, hPath, nil
}

// Volumes generates the shared volume mount points for container creation:
// the configuration's raw shares followed by the container paths of its host
// binds.
func Volumes(m *cmap.ContainerMap, cfg *cmap.ContainerConfiguration) ([]string, error) {
	volumes := make([]string, 0, len(cfg.Shares)+len(cfg.Binds))
	for _, s := range cfg.Shares {
		volumes = append(volumes, cmap.ResolveString(s))
	}
	for _, b := range cfg.Binds {
		if b.Alias == "" {
			cPath := cmap.ResolveString(b.ContainerPath)
			if !cmap.IsPath(cPath) {
				return nil, cmap.NewValidationError("binds",
					"host-container binding must be described by two paths or one alias name", b)
			}
			volumes = append(volumes, cPath)
			continue
		}
		cPath, err := m.VolumePath(b.Alias)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, cPath)
	}
	return volumes, nil
}

// HostBinds generates the bind entries of the host configuration, keyed by
// host path. A per-instance path table on the map supplies different host
// paths per instance name.
func HostBinds(m *cmap.ContainerMap, cfg *cmap.ContainerConfiguration, instance string) (Kwargs, error) {
	binds := Kwargs{}
	for _, b := range cfg.Binds {
		cPath, hPath, err := SharedVolumePath(m, b, instance)
		if err != nil {
			return nil, err
		}
		binds[hPath] = Kwargs{"bind": cPath, "ro": b.ReadOnly}
	}
	return binds, nil
}

// PortBindings generates the published-port mapping. A host port without an
// interface binds to all addresses; an interface name is resolved through the
// client's interface table and must be present there; entries without a host
// port stay unpublished and are omitted.
func PortBindings(cfg *cmap.ContainerConfiguration, clientConfig *ClientConfig) (map[int]any, error) {
	bindings := map[int]any{}
	for _, p := range cfg.Exposes {
		if p.ExposedPort == 0 {
			continue
		}
		hostPort := cmap.Resolve(p.HostPort)
		if hostPort == nil {
			continue
		}
		if p.Interface != "" {
			addr, ok := clientConfig.Interface(p.Interface)
			if !ok {
				return nil, cmap.NewValidationError("exposes",
					fmt.Sprintf("address for interface '%s' not found in client configuration", p.Interface), p.Interface)
			}
			bindings[p.ExposedPort] = []any{addr, hostPort}
		} else {
			bindings[p.ExposedPort] = hostPort
		}
	}
	return bindings, nil
}

// Environment renders the environment variable list. A map source is rendered
// as KEY=VALUE entries in sorted key order (map order carries no meaning); a
// list source passes through unchanged.
func Environment(cfg *cmap.ContainerConfiguration) []string {
	switch env := cfg.Environment.(type) {
	case map[string]string:
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = fmt.Sprintf("%s=%s", k, env[k])
		}
		return out
	case []string:
		return env
	}
	return []string{}
}
