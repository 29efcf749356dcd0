package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conmap/conmap/internal/core/cmap"
)

// =============================================================================
// Naming Functions
// =============================================================================

// DefaultClientName is the built-in client name used when neither the
// container configuration nor the map declares a client list.
const DefaultClientName = "__default__"

// ContainerName generates the fully-qualified name of a container instance.
// Pattern: {map}.{config} or {map}.{config}.{instance}.
//
// Example:
//
//	ContainerName("main", "web_server", "")          // "main.web_server"
//	ContainerName("main", "app_server", "instance1") // "main.app_server.instance1"
func ContainerName(mapName, config, instance string) string {
	if instance != "" {
		return fmt.Sprintf("%s.%s.%s", mapName, config, instance)
	}
	return fmt.Sprintf("%s.%s", mapName, config)
}

// AttachedName generates the name of an attached volume container.
// Pattern: {map}.{alias}, or {map}.{parent}.{alias} when the map qualifies
// attached names with the parent configuration.
func AttachedName(mapName, parent, alias string) string {
	if parent != "" {
		return fmt.Sprintf("%s.%s.%s", mapName, parent, alias)
	}
	return fmt.Sprintf("%s.%s", mapName, alias)
}

// ResolveContainerName is the reverse of ContainerName: it splits a container
// name into map name, configuration name, and instance. With includesMap set
// to false (for references within one map) only configuration and instance
// are parsed.
func ResolveContainerName(name string, includesMap bool) (mapName, config, instance string, err error) {
	if includesMap {
		mapName, rest, ok := strings.Cut(name, ".")
		if !ok || rest == "" {
			return "", "", "", cmap.NewValidationError("container name", "expected map-qualified name", name)
		}
		config, instance, _ := strings.Cut(rest, ".")
		return mapName, config, instance, nil
	}
	config, instance, _ = strings.Cut(name, ".")
	return "", config, instance, nil
}

// ImageName generates the full image name for creating a container:
//
//   - a leading "/" is stripped and the remainder used verbatim;
//   - a "/" anywhere else marks the name as repository-qualified already;
//   - otherwise the map's repository prefix is applied, if set.
//
// Tags pass through untouched; the engine defaults to "latest".
func ImageName(m *cmap.ContainerMap, image string) string {
	if strings.Contains(image, "/") {
		return strings.TrimPrefix(image, "/")
	}
	if repository := cmap.ResolveString(m.Repository); repository != "" {
		return fmt.Sprintf("%s/%s", repository, image)
	}
	return image
}

// Hostname derives a container hostname from the resolved container name;
// non-default clients are suffixed to keep hostnames distinct across engines.
func Hostname(clientName, containerName string) string {
	if clientName == DefaultClientName {
		return containerName
	}
	return fmt.Sprintf("%s-%s", containerName, clientName)
}

// =============================================================================
// User Extraction
// =============================================================================

// ExtractUser extracts the user for running a container from an int uid, a
// "user" or "user:group" string, or a [2]string{user, group} pair. It returns
// nil only when the value is truly absent; a literal zero uid yields "0".
func ExtractUser(userValue any) any {
	user := cmap.Resolve(userValue)
	switch u := user.(type) {
	case nil:
		return nil
	case int:
		return strconv.Itoa(u)
	case [2]string:
		return u[0]
	case string:
		if u == "" {
			return nil
		}
		name, _, _ := strings.Cut(u, ":")
		return name
	}
	return nil
}

// UserGroup renders a chown-style "user:group" argument. A plain user name or
// uid doubles as its own group.
func UserGroup(userValue any) string {
	user := cmap.Resolve(userValue)
	switch u := user.(type) {
	case int:
		return fmt.Sprintf("%d:%d", u, u)
	case [2]string:
		return fmt.Sprintf("%s:%s", u[0], u[1])
	case string:
		if strings.Contains(u, ":") {
			return u
		}
		return fmt.Sprintf("%s:%s", u, u)
	}
	return ""
}

// =============================================================================
// Engine API Version
// =============================================================================

// hostConfigAPIVersion is the engine API version from which the host
// configuration is embedded in the create call instead of being supplied to
// start.
const hostConfigAPIVersion = "1.15"

// UseHostConfig reports whether the engine at the given API version expects
// the host configuration embedded at create time.
func UseHostConfig(apiVersion string) bool {
	if apiVersion == "" {
		return true
	}
	return compareVersions(apiVersion, hostConfigAPIVersion) >= 0
}

func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}
