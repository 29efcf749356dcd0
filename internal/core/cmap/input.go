package cmap

import (
	"strings"
)

// =============================================================================
// Normalized Value Records
// =============================================================================

// SharedVolume references a volume of another container configuration (or an
// attached volume alias) for use with volumes-from. Name may carry an instance
// qualifier in the form "config.instance". Equality is structural.
type SharedVolume struct {
	Name     string
	ReadOnly bool
}

// HostBind describes one host-volume binding of a container. Either Alias
// refers to an entry in the map's volume and host-volume tables, or
// ContainerPath/HostPath spell out an explicit path pair. HostPath may be a
// string, a Lazy value, or a map of instance name to path.
type HostBind struct {
	Alias         string
	ContainerPath string
	HostPath      any
	ReadOnly      bool
}

// ContainerLink links a container to another configuration under an alias.
// Container may carry an instance qualifier ("config.instance").
type ContainerLink struct {
	Container string
	Alias     string
}

// PortBinding declares a network port of a container. ExposedPort is the
// container-side port; a zero value means the entry does not expose anything.
// HostPort may be nil (not published), an int, or a Lazy value. Interface
// names a virtual interface resolved through the client configuration at call
// time.
type PortBinding struct {
	ExposedPort int
	HostPort    any
	Interface   string
}

// NetworkModeDisabled is the sentinel network mode that turns off networking
// for a container entirely.
const NetworkModeDisabled = "disabled"

// NetworkSetting describes the network mode of a container: either a literal
// engine mode name (bridge, host, disabled, ...) or a reference to another
// container configuration, optionally with an instance qualifier.
type NetworkSetting struct {
	Mode      string
	Container string
	Instance  string
}

// IsSet reports whether any network setting was configured.
func (n NetworkSetting) IsSet() bool {
	return n.Mode != "" || n.Container != ""
}

// Disabled reports whether networking is turned off.
func (n NetworkSetting) Disabled() bool {
	return n.Mode == NetworkModeDisabled
}

// =============================================================================
// Input Parsing
// =============================================================================

// ParseSharedVolume converts the string form "name" or "name:ro" into a
// SharedVolume record.
func ParseSharedVolume(s string) SharedVolume {
	if name, ok := strings.CutSuffix(s, ":ro"); ok {
		return SharedVolume{Name: name, ReadOnly: true}
	}
	return SharedVolume{Name: s}
}

// ParseLink converts the string form "container" or "container:alias" into a
// ContainerLink. Without an explicit alias the link target name doubles as the
// alias, minus any map qualifier.
func ParseLink(s string) ContainerLink {
	container, alias, ok := strings.Cut(s, ":")
	if !ok {
		alias = container
	}
	return ContainerLink{Container: container, Alias: alias}
}

// ParseNetworkSetting converts a network mode string into a NetworkSetting. A
// value prefixed with "/" names a container configuration directly, as does
// any value that is not one of the engine's built-in modes.
func ParseNetworkSetting(s string) NetworkSetting {
	if s == "" {
		return NetworkSetting{}
	}
	switch s {
	case "bridge", "host", "none", NetworkModeDisabled:
		return NetworkSetting{Mode: s}
	}
	ref := strings.TrimPrefix(s, "/")
	container, instance, _ := strings.Cut(ref, ".")
	return NetworkSetting{Container: container, Instance: instance}
}

// IsPath reports whether the value looks like an absolute container path.
func IsPath(s string) bool {
	return strings.HasPrefix(s, "/")
}
