package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmap/conmap/internal/core/cmap"
	"github.com/conmap/conmap/internal/core/dep"
)

func newTestResolver(t *testing.T, m *cmap.ContainerMap) *dep.Resolver {
	t.Helper()
	r := dep.NewResolver()
	require.NoError(t, r.Update(m))
	return r
}

const sampleCompose = `
services:
  web:
    image: nginx:1.25
    ports:
      - "80:80"
    volumes:
      - ./site.conf:/etc/nginx/conf.d/site.conf:ro
      - app_socket:/var/lib/app/socket
    depends_on:
      - app
    command: nginx -g "daemon off;"
  app:
    image: registry.example.com/app:2.0
    environment:
      APP_ENV: production
    volumes:
      - app_socket:/var/lib/app/socket
    user: "2000"
    restart: always
`

func TestImportProject_Services(t *testing.T) {
	m, err := ImportProject("site", sampleCompose)
	require.NoError(t, err)
	assert.Equal(t, "site", m.Name)
	require.Len(t, m.Containers, 2)

	web, err := m.Get("web")
	require.NoError(t, err)
	assert.Equal(t, "/nginx:1.25", web.Image, "import keeps compose images fully qualified")
	assert.Equal(t, []cmap.PortBinding{{ExposedPort: 80, HostPort: 80}}, web.Exposes)
	assert.Equal(t, []cmap.ContainerLink{{Container: "app", Alias: "app"}}, web.Links)

	app, err := m.Get("app")
	require.NoError(t, err)
	assert.Equal(t, "/registry.example.com/app:2.0", app.Image)
	assert.Equal(t, "2000", app.User)
	assert.Equal(t, map[string]string{"APP_ENV": "production"}, app.Environment)
	assert.Equal(t, map[string]any{"restart_policy": map[string]any{"Name": "always"}}, app.HostConfig)
}

func TestImportProject_Volumes(t *testing.T) {
	m, err := ImportProject("site", sampleCompose)
	require.NoError(t, err)

	web, err := m.Get("web")
	require.NoError(t, err)
	require.Len(t, web.Binds, 2)
	assert.Equal(t, "/etc/nginx/conf.d/site.conf", web.Binds[0].ContainerPath)
	assert.True(t, web.Binds[0].ReadOnly)
	assert.Equal(t, cmap.HostBind{Alias: "app_socket"}, web.Binds[1])

	// The named volume is registered once, host side under the map root.
	assert.Equal(t, "/var/lib/app/socket", m.Volumes["app_socket"])
	assert.Equal(t, "app_socket", m.Host.Paths["app_socket"])
}

func TestImportProject_DependencyOrdering(t *testing.T) {
	m, err := ImportProject("site", sampleCompose)
	require.NoError(t, err)

	r := newTestResolver(t, m)
	deps, err := r.ContainerDependencies("site", "web")
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "app", deps[0].Config)
}

func TestImportProject_Command(t *testing.T) {
	m, err := ImportProject("site", sampleCompose)
	require.NoError(t, err)
	web, err := m.Get("web")
	require.NoError(t, err)
	opts := web.CreateOptions.(map[string]any)
	assert.Equal(t, []any{"nginx", "-g", "daemon off;"}, opts["command"])
}

func TestImportProject_NetworkMode(t *testing.T) {
	doc := `
services:
  app:
    image: app
  sidecar:
    image: busybox
    network_mode: "service:app"
  offline:
    image: busybox
    network_mode: none
`
	m, err := ImportProject("site", doc)
	require.NoError(t, err)
	sidecar, _ := m.Get("sidecar")
	offline, _ := m.Get("offline")
	assert.Equal(t, cmap.NetworkSetting{Container: "app"}, sidecar.Network)
	assert.True(t, offline.Network.Disabled())
}

func TestImportProject_Errors(t *testing.T) {
	_, err := ImportProject("site", "  ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = ImportProject("site", "{unclosed")
	assert.ErrorIs(t, err, ErrInvalidYAML)

	_, err = ImportProject("site", "services:\n  web:\n    build: .\n")
	assert.ErrorIs(t, err, ErrUnsupportedFeature)

	_, err = ImportProject("site", "services:\n  web:\n    image: nginx\nsecrets:\n  token:\n    environment: TOKEN\n")
	assert.ErrorIs(t, err, ErrUnsupportedFeature)
}
