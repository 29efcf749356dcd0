package docker

import (
	"github.com/conmap/conmap/internal/core/policy"
)

// =============================================================================
// Client Registry
// =============================================================================

// ClientSettings is the static configuration of one engine endpoint.
type ClientSettings struct {
	// Host is the daemon address, e.g. "unix:///var/run/docker.sock" or
	// "tcp://10.0.0.5:2375". Empty picks up the environment defaults.
	Host string `mapstructure:"host"`

	// DomainName overrides the map-level default domain for containers
	// created through this client.
	DomainName string `mapstructure:"domain_name"`

	// StopTimeout is the default stop/restart timeout in seconds; zero
	// leaves the engine default in place.
	StopTimeout int `mapstructure:"stop_timeout"`

	// WaitTimeout bounds waits on attached containers, in seconds.
	WaitTimeout int `mapstructure:"wait_timeout"`

	// Interfaces maps virtual interface aliases to host addresses for port
	// publishing.
	Interfaces map[string]string `mapstructure:"interfaces"`
}

// BuildRegistry turns client settings into the lazy client registry consumed
// by the policy. Each entry connects on first use and is cached afterwards.
// An empty settings map yields a single default client using the environment
// configuration.
func BuildRegistry(settings map[string]ClientSettings) map[string]*policy.ClientConfig {
	if len(settings) == 0 {
		settings = map[string]ClientSettings{
			policy.DefaultClientName: {},
		}
	}
	registry := make(map[string]*policy.ClientConfig, len(settings))
	for name, s := range settings {
		registry[name] = newClientConfig(s)
	}
	return registry
}

func newClientConfig(s ClientSettings) *policy.ClientConfig {
	cc := &policy.ClientConfig{
		Factory: func() (policy.Engine, error) {
			return NewClient(s.Host)
		},
	}
	if s.DomainName != "" {
		cc.DomainName = s.DomainName
	}
	if s.StopTimeout > 0 {
		timeout := s.StopTimeout
		cc.StopTimeout = &timeout
	}
	if s.WaitTimeout > 0 {
		timeout := s.WaitTimeout
		cc.WaitTimeout = &timeout
	}
	if len(s.Interfaces) > 0 {
		cc.Interfaces = make(map[string]any, len(s.Interfaces))
		for alias, addr := range s.Interfaces {
			cc.Interfaces[alias] = addr
		}
	}
	return cc
}
