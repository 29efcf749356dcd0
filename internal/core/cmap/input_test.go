package cmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSharedVolume(t *testing.T) {
	assert.Equal(t, SharedVolume{Name: "socket"}, ParseSharedVolume("socket"))
	assert.Equal(t, SharedVolume{Name: "socket", ReadOnly: true}, ParseSharedVolume("socket:ro"))
}

func TestParseLink(t *testing.T) {
	assert.Equal(t, ContainerLink{Container: "db", Alias: "db"}, ParseLink("db"))
	assert.Equal(t, ContainerLink{Container: "db.instance1", Alias: "primary"}, ParseLink("db.instance1:primary"))
}

func TestParseNetworkSetting(t *testing.T) {
	assert.Equal(t, NetworkSetting{}, ParseNetworkSetting(""))
	assert.Equal(t, NetworkSetting{Mode: "bridge"}, ParseNetworkSetting("bridge"))
	assert.Equal(t, NetworkSetting{Mode: "disabled"}, ParseNetworkSetting("disabled"))
	assert.Equal(t, NetworkSetting{Container: "app_server"}, ParseNetworkSetting("/app_server"))
	assert.Equal(t, NetworkSetting{Container: "app_server", Instance: "instance1"}, ParseNetworkSetting("app_server.instance1"))
}

func TestNetworkSetting_Flags(t *testing.T) {
	assert.False(t, NetworkSetting{}.IsSet())
	assert.True(t, NetworkSetting{Mode: "host"}.IsSet())
	assert.True(t, NetworkSetting{Container: "db"}.IsSet())
	assert.True(t, NetworkSetting{Mode: NetworkModeDisabled}.Disabled())
	assert.False(t, NetworkSetting{Mode: "bridge"}.Disabled())
}

func TestLazy_RecursiveResolve(t *testing.T) {
	inner := LazyFunc(func() any { return "/var/data" })
	outer := LazyFunc(func() any { return inner })
	assert.Equal(t, "/var/data", Resolve(outer))
	assert.Equal(t, "/var/data", ResolveString(outer))
	assert.Equal(t, "plain", Resolve("plain"))
	assert.Nil(t, Resolve(nil))
}
