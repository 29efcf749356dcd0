package dep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmap/conmap/internal/core/cmap"
)

func chainMap() *cmap.ContainerMap {
	// web -> app -> db
	m := cmap.NewContainerMap("main")
	m.Containers["db"] = &cmap.ContainerConfiguration{Image: "postgres"}
	m.Containers["app"] = &cmap.ContainerConfiguration{
		Links: []cmap.ContainerLink{{Container: "db", Alias: "db"}},
	}
	m.Containers["web"] = &cmap.ContainerConfiguration{
		Links: []cmap.ContainerLink{{Container: "app", Alias: "app"}},
	}
	return m
}

// =============================================================================
// Forward Resolution
// =============================================================================

func TestContainerDependencies_Chain(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.Update(chainMap()))

	deps, err := r.ContainerDependencies("main", "web")
	require.NoError(t, err)
	assert.Equal(t, []ContainerRef{
		{Map: "main", Config: "app"},
		{Map: "main", Config: "db"},
	}, deps, "closest dependency first, so the reversal runs dependencies first")

	deps, err = r.ContainerDependencies("main", "db")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestContainerDependencies_SharedDependencyKeptLast(t *testing.T) {
	// web links both app and db; app also links db. The shared db must come
	// after everything that needs it, so it starts first after reversal.
	m := chainMap()
	m.Containers["web"].Links = append(m.Containers["web"].Links,
		cmap.ContainerLink{Container: "db", Alias: "db"})

	r := NewResolver()
	require.NoError(t, r.Update(m))

	deps, err := r.ContainerDependencies("main", "web")
	require.NoError(t, err)
	assert.Equal(t, []ContainerRef{
		{Map: "main", Config: "app"},
		{Map: "main", Config: "db"},
	}, deps)
}

func TestContainerDependencies_UsedVolumes(t *testing.T) {
	m := cmap.NewContainerMap("main")
	m.Containers["app_server"] = &cmap.ContainerConfiguration{
		Attaches: []string{"app_server_socket"},
	}
	m.Containers["web_server"] = &cmap.ContainerConfiguration{
		Uses: []cmap.SharedVolume{{Name: "app_server_socket"}},
	}

	r := NewResolver()
	require.NoError(t, r.Update(m))

	deps, err := r.ContainerDependencies("main", "web_server")
	require.NoError(t, err)
	assert.Equal(t, []ContainerRef{{Map: "main", Config: "app_server"}}, deps)

	// Attaching a volume never makes the owner depend on itself.
	deps, err = r.ContainerDependencies("main", "app_server")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestContainerDependencies_InstanceQualifiedLink(t *testing.T) {
	m := cmap.NewContainerMap("main")
	m.Containers["app_server"] = &cmap.ContainerConfiguration{Instances: []string{"instance1", "instance2"}}
	m.Containers["web_server"] = &cmap.ContainerConfiguration{
		Links: []cmap.ContainerLink{{Container: "app_server.instance1", Alias: "app"}},
	}

	r := NewResolver()
	require.NoError(t, r.Update(m))

	deps, err := r.ContainerDependencies("main", "web_server")
	require.NoError(t, err)
	assert.Equal(t, []ContainerRef{{Map: "main", Config: "app_server", Instance: "instance1"}}, deps)
}

func TestContainerDependencies_NetworkContainer(t *testing.T) {
	m := cmap.NewContainerMap("main")
	m.Containers["app_server"] = &cmap.ContainerConfiguration{}
	m.Containers["sidecar"] = &cmap.ContainerConfiguration{
		Network: cmap.NetworkSetting{Container: "app_server", Instance: "instance1"},
	}

	r := NewResolver()
	require.NoError(t, r.Update(m))

	deps, err := r.ContainerDependencies("main", "sidecar")
	require.NoError(t, err)
	assert.Equal(t, []ContainerRef{{Map: "main", Config: "app_server", Instance: "instance1"}}, deps)
}

// =============================================================================
// Backward Resolution
// =============================================================================

func TestUpdateBackward_Dependents(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.UpdateBackward(chainMap()))

	dependents, err := r.ContainerDependencies("main", "db")
	require.NoError(t, err)
	assert.Equal(t, []ContainerRef{
		{Map: "main", Config: "app"},
		{Map: "main", Config: "web"},
	}, dependents, "reversal stops the furthest dependent first")

	dependents, err = r.ContainerDependencies("main", "web")
	require.NoError(t, err)
	assert.Empty(t, dependents)
}

// =============================================================================
// Error Cases
// =============================================================================

func TestUpdate_CycleRejected(t *testing.T) {
	m := cmap.NewContainerMap("main")
	m.Containers["a"] = &cmap.ContainerConfiguration{
		Links: []cmap.ContainerLink{{Container: "b", Alias: "b"}},
	}
	m.Containers["b"] = &cmap.ContainerConfiguration{
		Links: []cmap.ContainerLink{{Container: "a", Alias: "a"}},
	}

	r := NewResolver()
	err := r.Update(m)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, err.Error(), "circular container dependency")
}

func TestUpdate_UnknownLinkTarget(t *testing.T) {
	m := cmap.NewContainerMap("main")
	m.Containers["web"] = &cmap.ContainerConfiguration{
		Links: []cmap.ContainerLink{{Container: "missing", Alias: "m"}},
	}

	var lookupErr *cmap.LookupError
	assert.ErrorAs(t, NewResolver().Update(m), &lookupErr)
}

func TestUpdate_UnknownUsedVolume(t *testing.T) {
	m := cmap.NewContainerMap("main")
	m.Containers["web"] = &cmap.ContainerConfiguration{
		Uses: []cmap.SharedVolume{{Name: "no_such_volume"}},
	}

	var lookupErr *cmap.LookupError
	assert.ErrorAs(t, NewResolver().Update(m), &lookupErr)
}

func TestContainerRef_String(t *testing.T) {
	assert.Equal(t, "main.web", ContainerRef{Map: "main", Config: "web"}.String())
	assert.Equal(t, "main.app.i1", ContainerRef{Map: "main", Config: "app", Instance: "i1"}.String())
}
