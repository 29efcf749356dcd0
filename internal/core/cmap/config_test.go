package cmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeFrom_ListsExtendUnique(t *testing.T) {
	a := &ContainerConfiguration{
		Instances: []string{"i1"},
		Shares:    []any{"/var/run/a"},
		Attaches:  []string{"log"},
	}
	b := &ContainerConfiguration{
		Instances: []string{"i1", "i2"},
		Shares:    []any{"/var/run/a", "/var/run/b"},
		Attaches:  []string{"socket"},
	}
	a.MergeFrom(b, true)
	assert.Equal(t, []string{"i1", "i2"}, a.Instances)
	assert.Equal(t, []any{"/var/run/a", "/var/run/b"}, a.Shares)
	assert.Equal(t, []string{"log", "socket"}, a.Attaches)
}

func TestMergeFrom_KeyedListsKeepEarliest(t *testing.T) {
	a := &ContainerConfiguration{
		Binds: []HostBind{{Alias: "config", ReadOnly: true}},
		Uses:  []SharedVolume{{Name: "socket"}},
	}
	b := &ContainerConfiguration{
		Binds: []HostBind{{Alias: "config", ReadOnly: false}, {Alias: "data"}},
		Uses:  []SharedVolume{{Name: "socket", ReadOnly: true}, {Name: "log"}},
	}
	a.MergeFrom(b, true)
	assert.Equal(t, []HostBind{{Alias: "config", ReadOnly: true}, {Alias: "data"}}, a.Binds)
	assert.Equal(t, []SharedVolume{{Name: "socket"}, {Name: "log"}}, a.Uses)
}

func TestMergeFrom_ListsOnlySkipsScalars(t *testing.T) {
	a := &ContainerConfiguration{Image: "nginx", User: 1000}
	b := &ContainerConfiguration{Image: "apache", User: 2000}
	a.MergeFrom(b, true)
	assert.Equal(t, "nginx", a.Image)
	assert.Equal(t, 1000, a.User)
}

func TestMergeFrom_ScalarsOverwriteWhenSet(t *testing.T) {
	five, yes := 5, true
	a := &ContainerConfiguration{Image: "nginx", User: 1000, Permissions: "u=rwX"}
	b := &ContainerConfiguration{User: 2000, Persistent: &yes, StopTimeout: &five}
	a.MergeFrom(b, false)
	assert.Equal(t, "nginx", a.Image, "unset fields on the source leave the target alone")
	assert.Equal(t, 2000, a.User)
	assert.Equal(t, "u=rwX", a.Permissions)
	assert.True(t, a.IsPersistent())
	assert.Equal(t, 5, *a.StopTimeout)
}

func TestMergeFrom_OptionsShallowMerge(t *testing.T) {
	a := &ContainerConfiguration{CreateOptions: map[string]any{"mem_limit": "1g", "tty": true}}
	b := &ContainerConfiguration{CreateOptions: map[string]any{"mem_limit": "2g"}}
	a.MergeFrom(b, false)
	assert.Equal(t, map[string]any{"mem_limit": "2g", "tty": true}, a.CreateOptions)
}

func TestCopy_Isolated(t *testing.T) {
	a := &ContainerConfiguration{
		Instances:     []string{"i1"},
		CreateOptions: map[string]any{"tty": true},
	}
	c := a.Copy()
	c.Instances[0] = "changed"
	c.CreateOptions.(map[string]any)["tty"] = false
	assert.Equal(t, []string{"i1"}, a.Instances)
	assert.Equal(t, map[string]any{"tty": true}, a.CreateOptions)
}

func TestIsPersistent_Default(t *testing.T) {
	c := &ContainerConfiguration{}
	assert.False(t, c.IsPersistent())
}
