package policy

import (
	"fmt"
	"strings"

	"github.com/conmap/conmap/internal/core/cmap"
)

// =============================================================================
// Lifecycle Request Builders
// =============================================================================
//
// One pure function per lifecycle verb. Each derives the exact engine-call
// arguments from the layered configuration sources (container configuration,
// map defaults, client bindings) and applies caller overrides last via
// Update.

// BuilderConfig carries the images used for implicitly-created containers.
// Attached volume containers are created from BaseImage (a no-op volume
// holder); attached-volume preparation runs CoreImage.
type BuilderConfig struct {
	CoreImage string
	BaseImage string
}

// DefaultBuilderConfig returns the stock images for attached container
// handling.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		CoreImage: "busybox:latest",
		BaseImage: "busybox:latest",
	}
}

// DomainName provides the domain for a container: the client configuration
// override if present, else the map default.
func DomainName(m *cmap.ContainerMap, clientConfig *ClientConfig) any {
	if d := cmap.Resolve(clientConfig.DomainName); d != nil {
		return d
	}
	return cmap.Resolve(m.DefaultDomain)
}

// CreateKwargs generates the arguments for creating a container. When
// includeHostConfig is set (engine API embeds host configuration at create
// time) the host-config builder's output is nested under "host_config";
// otherwise the host configuration is produced by a separate HostConfigKwargs
// call before start. A "host_config" entry in the caller kwargs is routed to
// the nested builder as its override set.
func CreateKwargs(m *cmap.ContainerMap, configName string, cfg *cmap.ContainerConfiguration,
	clientName string, clientConfig *ClientConfig, containerName, instance string,
	includeHostConfig bool, kwargs Kwargs) (Kwargs, error) {

	volumes, err := Volumes(m, cfg)
	if err != nil {
		return nil, err
	}
	ports := make([]int, 0, len(cfg.Exposes))
	for _, p := range cfg.Exposes {
		if p.ExposedPort != 0 {
			ports = append(ports, p.ExposedPort)
		}
	}
	var hostname any
	if m.SetHostname {
		hostname = Hostname(clientName, containerName)
	}
	image := cfg.Image
	if image == "" {
		image = configName
	}
	c := Kwargs{
		"name":        containerName,
		"image":       ImageName(m, image),
		"volumes":     volumes,
		"user":        ExtractUser(cfg.User),
		"ports":       ports,
		"hostname":    hostname,
		"domainname":  DomainName(m, clientConfig),
		"environment": Environment(cfg),
	}
	if cfg.Network.Disabled() {
		c["network_disabled"] = true
	}
	hcExtra := popHostConfig(kwargs)
	if includeHostConfig {
		hc, err := HostConfigKwargs(m, configName, cfg, clientName, clientConfig, "", instance, hcExtra)
		if err != nil {
			return nil, err
		}
		if len(hc) > 0 {
			c["host_config"] = hc
		}
	}
	return Update(c, initOptions(cfg.CreateOptions), kwargs), nil
}

// HostConfigKwargs generates the host configuration of a container: links,
// host binds, volumes-from (used volumes plus this configuration's attached
// containers), published ports, and the network mode. containerName may be
// empty when the result is embedded at create time.
func HostConfigKwargs(m *cmap.ContainerMap, configName string, cfg *cmap.ContainerConfiguration,
	clientName string, clientConfig *ClientConfig, containerName, instance string,
	kwargs Kwargs) (Kwargs, error) {

	volumesFrom := make([]string, 0, len(cfg.Uses)+len(cfg.Attaches))
	for _, u := range cfg.Uses {
		name := ContainerName(m.Name, u.Name, "")
		if u.ReadOnly {
			name += ":ro"
		}
		volumesFrom = append(volumesFrom, name)
	}
	for _, attached := range cfg.Attaches {
		if m.UseAttachedParentName {
			volumesFrom = append(volumesFrom, AttachedName(m.Name, configName, attached))
		} else {
			volumesFrom = append(volumesFrom, AttachedName(m.Name, "", attached))
		}
	}

	links := Kwargs{}
	for _, l := range cfg.Links {
		links[ContainerName(m.Name, l.Container, "")] = l.Alias
	}
	binds, err := HostBinds(m, cfg, instance)
	if err != nil {
		return nil, err
	}
	portBindings, err := PortBindings(cfg, clientConfig)
	if err != nil {
		return nil, err
	}

	c := Kwargs{
		"links":         links,
		"binds":         binds,
		"volumes_from":  volumesFrom,
		"port_bindings": portBindings,
	}
	switch {
	case cfg.Network.Container != "":
		c["network_mode"] = ContainerName(m.Name, cfg.Network.Container, cfg.Network.Instance)
	case cfg.Network.Mode != "" && !cfg.Network.Disabled():
		c["network_mode"] = cfg.Network.Mode
	}
	if containerName != "" {
		c["container"] = containerName
	}
	return Update(c, initOptions(cfg.HostConfig), kwargs), nil
}

// AttachedCreateKwargs generates the minimal request for an attached volume
// container: the base image, the volume alias's container path as the sole
// mount point, the parent configuration's user, and networking disabled.
func AttachedCreateKwargs(bc BuilderConfig, m *cmap.ContainerMap, configName string,
	cfg *cmap.ContainerConfiguration, clientName string, clientConfig *ClientConfig,
	containerName, alias string, includeHostConfig bool, kwargs Kwargs) (Kwargs, error) {

	path, err := m.VolumePath(alias)
	if err != nil {
		return nil, err
	}
	c := Kwargs{
		"name":             containerName,
		"image":            bc.BaseImage,
		"volumes":          []string{path},
		"user":             ExtractUser(cfg.User),
		"network_disabled": true,
	}
	hcExtra := popHostConfig(kwargs)
	if includeHostConfig {
		hc := AttachedHostConfigKwargs("", hcExtra)
		if len(hc) > 0 {
			c["host_config"] = hc
		}
	}
	return Update(c, kwargs), nil
}

// AttachedHostConfigKwargs generates the host configuration for starting an
// attached container, which carries nothing beyond the container identity.
func AttachedHostConfigKwargs(containerName string, kwargs Kwargs) Kwargs {
	c := Kwargs{}
	if containerName != "" {
		c["container"] = containerName
	}
	return Update(c, kwargs)
}

// AttachedPreparationCreateKwargs generates the request for the short-lived
// container that adjusts owner and permissions on an attached volume. The
// generated shell command chowns the volume path to the configuration's
// user:group and chmods it to the configured permission flags, joined with
// "&&"; with neither set the command is empty.
func AttachedPreparationCreateKwargs(bc BuilderConfig, m *cmap.ContainerMap, configName string,
	cfg *cmap.ContainerConfiguration, clientName string, clientConfig *ClientConfig,
	containerName, alias, volumeContainer string, includeHostConfig bool, kwargs Kwargs) (Kwargs, error) {

	path, err := m.VolumePath(alias)
	if err != nil {
		return nil, err
	}
	c := Kwargs{
		"image":            bc.CoreImage,
		"command":          preparationCommand(cfg, path),
		"user":             "root",
		"network_disabled": true,
	}
	if containerName != "" {
		c["name"] = containerName
	}
	hcExtra := popHostConfig(kwargs)
	if includeHostConfig {
		hc := AttachedPreparationHostConfigKwargs("", volumeContainer, hcExtra)
		if len(hc) > 0 {
			c["host_config"] = hc
		}
	}
	return Update(c, kwargs), nil
}

// AttachedPreparationHostConfigKwargs generates the host configuration of the
// preparation container, mounting the attached container via volumes-from.
func AttachedPreparationHostConfigKwargs(containerName, volumeContainer string, kwargs Kwargs) Kwargs {
	c := Kwargs{
		"volumes_from": []string{volumeContainer},
	}
	if containerName != "" {
		c["container"] = containerName
	}
	return Update(c, kwargs)
}

func preparationCommand(cfg *cmap.ContainerConfiguration, path string) string {
	var cmds []string
	if user := cmap.Resolve(cfg.User); user != nil && UserGroup(user) != "" {
		cmds = append(cmds, fmt.Sprintf("chown -R %s %s", UserGroup(user), shellArg(path)))
	}
	if cfg.Permissions != "" {
		cmds = append(cmds, fmt.Sprintf("chmod -R %s %s", cfg.Permissions, shellArg(path)))
	}
	return strings.Join(cmds, " && ")
}

func shellArg(s string) string {
	if strings.ContainsAny(s, " \t'\"") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// RestartKwargs generates the arguments for restarting a container. The
// configuration-level stop timeout wins over the client default; with
// neither set the timeout is omitted and the engine default applies.
func RestartKwargs(cfg *cmap.ContainerConfiguration, clientConfig *ClientConfig,
	containerName string, kwargs Kwargs) Kwargs {
	return stopLikeKwargs(cfg, clientConfig, containerName, kwargs)
}

// StopKwargs generates the arguments for stopping a container, with the same
// timeout resolution as RestartKwargs.
func StopKwargs(cfg *cmap.ContainerConfiguration, clientConfig *ClientConfig,
	containerName string, kwargs Kwargs) Kwargs {
	return stopLikeKwargs(cfg, clientConfig, containerName, kwargs)
}

func stopLikeKwargs(cfg *cmap.ContainerConfiguration, clientConfig *ClientConfig,
	containerName string, kwargs Kwargs) Kwargs {
	c := Kwargs{"container": containerName}
	if cfg.StopTimeout != nil {
		c["timeout"] = *cfg.StopTimeout
	} else if clientConfig.StopTimeout != nil {
		c["timeout"] = *clientConfig.StopTimeout
	}
	return Update(c, kwargs)
}

// RemoveKwargs generates the arguments for removing a container.
func RemoveKwargs(containerName string, kwargs Kwargs) Kwargs {
	return Update(Kwargs{"container": containerName}, kwargs)
}

// popHostConfig removes and returns a nested "host_config" override set from
// the caller kwargs, so it can be routed to the host-config builder.
func popHostConfig(kwargs Kwargs) Kwargs {
	if kwargs == nil {
		return nil
	}
	hc, ok := kwargs["host_config"]
	if !ok {
		return nil
	}
	delete(kwargs, "host_config")
	switch v := hc.(type) {
	case Kwargs:
		return v
	case map[string]any:
		return Kwargs(v)
	}
	return nil
}
