package policy

import (
	"context"
	"sync"

	"github.com/conmap/conmap/internal/core/cmap"
)

// =============================================================================
// Engine Capability
// =============================================================================

// Engine is the container-engine client capability consumed by action
// execution. The wire protocol behind it is out of scope; implementations
// translate the request-argument mappings into engine API calls.
type Engine interface {
	// CreateContainer creates a container and returns its id.
	CreateContainer(ctx context.Context, kwargs Kwargs) (string, error)
	// StartContainer starts the container named by the "container" argument;
	// on legacy API versions the remaining arguments carry the host
	// configuration.
	StartContainer(ctx context.Context, kwargs Kwargs) error
	StopContainer(ctx context.Context, kwargs Kwargs) error
	RestartContainer(ctx context.Context, kwargs Kwargs) error
	RemoveContainer(ctx context.Context, kwargs Kwargs) error
	// WaitContainer blocks until the container exits and returns its exit
	// status. A nil timeout applies the engine default.
	WaitContainer(ctx context.Context, container string, timeout *int) (int64, error)
	// APIVersion returns the negotiated engine API version, used to decide
	// whether host configuration is embedded at create time.
	APIVersion() string
}

// =============================================================================
// Client Configuration
// =============================================================================

// ClientConfig carries the per-endpoint settings that parameter derivation
// needs, plus a factory for the engine client handle. The handle is created
// lazily on first use and cached for the lifetime of the configuration;
// creation is guarded so concurrent first uses construct it exactly once.
type ClientConfig struct {
	// DomainName overrides the map's default domain (string or Lazy).
	DomainName any

	// StopTimeout is the endpoint default applied when a configuration does
	// not set its own stop timeout. Nil leaves the engine default in force.
	StopTimeout *int

	// WaitTimeout bounds waits on just-created attached volume containers.
	WaitTimeout *int

	// Interfaces maps virtual interface names to bind addresses (string or
	// Lazy values).
	Interfaces map[string]any

	// Factory constructs the engine client handle.
	Factory func() (Engine, error)

	once   sync.Once
	client Engine
	err    error
}

// Client returns the cached engine client handle, constructing it on first
// use.
func (c *ClientConfig) Client() (Engine, error) {
	c.once.Do(func() {
		if c.Factory == nil {
			c.err = cmap.NewValidationError("client configuration", "no client factory configured", nil)
			return
		}
		c.client, c.err = c.Factory()
	})
	return c.client, c.err
}

// Interface resolves a virtual interface name to its bind address.
func (c *ClientConfig) Interface(name string) (string, bool) {
	v, ok := c.Interfaces[name]
	if !ok {
		return "", false
	}
	addr := cmap.ResolveString(v)
	return addr, addr != ""
}
