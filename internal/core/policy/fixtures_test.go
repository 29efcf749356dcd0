package policy

import (
	"github.com/conmap/conmap/internal/core/cmap"
)

// sampleMap builds the container map used across the builder and policy
// tests: an nginx web server in front of two app server instances, with an
// attached socket volume and shared log volumes.
func sampleMap() *cmap.ContainerMap {
	m := cmap.NewContainerMap("main")
	m.Repository = "registry.example.com"
	m.Host.Root = "/var/lib/site"
	m.Volumes = map[string]any{
		"web_config":        "/etc/nginx",
		"web_log":           "/var/log/nginx",
		"app_config":        "/var/lib/app/config",
		"app_data":          "/var/lib/app/data",
		"app_log":           "/var/lib/app/log",
		"app_server_socket": "/var/lib/app/socket",
	}
	m.Host.Paths = map[string]any{
		"web_config": "config/nginx",
		"app_config": map[string]any{
			"instance1": "config/app1",
			"instance2": "config/app2",
		},
		"app_data": map[string]any{
			"instance1": "data/app1",
			"instance2": "data/app2",
		},
	}
	m.Containers["web_server"] = &cmap.ContainerConfiguration{
		Image: "nginx",
		Binds: []cmap.HostBind{
			{Alias: "web_config", ReadOnly: true},
		},
		Uses:     []cmap.SharedVolume{{Name: "app_server_socket"}},
		Attaches: []string{"web_log"},
		Links: []cmap.ContainerLink{
			{Container: "app_server.instance1", Alias: "app_server.instance1"},
			{Container: "app_server.instance2", Alias: "app_server.instance2"},
		},
		Exposes: []cmap.PortBinding{
			{ExposedPort: 80, HostPort: 80},
			{ExposedPort: 443, HostPort: 443},
		},
	}
	m.Containers["app_server"] = &cmap.ContainerConfiguration{
		Image:     "app",
		Instances: []string{"instance1", "instance2"},
		Binds: []cmap.HostBind{
			{Alias: "app_config", ReadOnly: true},
			{Alias: "app_data"},
		},
		Attaches:    []string{"app_log", "app_server_socket"},
		User:        2000,
		Permissions: "u=rwX,g=rX,o=",
		Exposes: []cmap.PortBinding{
			{ExposedPort: 8880},
		},
	}
	m.Containers["app_extra"] = &cmap.ContainerConfiguration{
		Network: cmap.NetworkSetting{Container: "app_server", Instance: "instance1"},
	}
	return m
}

func sampleClientConfig() *ClientConfig {
	timeout := 5
	return &ClientConfig{
		StopTimeout: &timeout,
		Interfaces: map[string]any{
			"private": "10.0.0.11",
		},
	}
}
