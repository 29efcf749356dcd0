package compose

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/conmap/conmap/internal/core/cmap"
)

// =============================================================================
// Import
// =============================================================================

// ImportProject converts a Docker Compose document into a container map of
// the given name. Services become container configurations, bind mounts
// become explicit host binds, named volumes become aliased binds stored under
// the map's host root, and depends_on entries become links so that dependency
// ordering carries over.
func ImportProject(name, yamlContent string) (*cmap.ContainerMap, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}
	project, err := loadProject(name, yamlContent)
	if err != nil {
		return nil, err
	}
	if err := checkUnsupportedFeatures(project); err != nil {
		return nil, err
	}
	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	m := cmap.NewContainerMap(name)
	for _, svcName := range sortedServiceNames(project) {
		cfg, err := convertService(m, project.Services[svcName])
		if err != nil {
			return nil, err
		}
		m.Containers[svcName] = cfg
	}
	return m, nil
}

func loadProject(name, yamlContent string) (*types.Project, error) {
	var dict map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil || dict == nil {
		return nil, NewImportError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(name, false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// In-memory import: nothing to resolve on disk.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, NewImportError("", err.Error(), ErrInvalidYAML)
	}
	return project, nil
}

func checkUnsupportedFeatures(project *types.Project) error {
	if len(project.Secrets) > 0 {
		return NewImportError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}
	if len(project.Configs) > 0 {
		return NewImportError("configs", "configs are not supported", ErrUnsupportedFeature)
	}
	for _, svc := range project.Services {
		if svc.Build != nil {
			return NewImportError("services."+svc.Name+".build", "image builds are not supported", ErrUnsupportedFeature)
		}
		if svc.Extends != nil && svc.Extends.File != "" {
			return NewImportError("services."+svc.Name+".extends", "external extends are not supported", ErrUnsupportedFeature)
		}
	}
	return nil
}

func sortedServiceNames(project *types.Project) []string {
	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Service Conversion
// =============================================================================

func convertService(m *cmap.ContainerMap, svc types.ServiceConfig) (*cmap.ContainerConfiguration, error) {
	if svc.Image == "" {
		return nil, NewImportError("services."+svc.Name, "service must have an image", ErrServiceNoImage)
	}
	cfg := &cmap.ContainerConfiguration{
		// Leading "/" keeps fully qualified compose images out of the
		// map-level repository prefix.
		Image: "/" + svc.Image,
	}
	if svc.User != "" {
		cfg.User = svc.User
	}

	for i, p := range svc.Ports {
		port, err := convertPort(p)
		if err != nil {
			return nil, NewImportError(
				"services."+svc.Name+".ports["+strconv.Itoa(i)+"]", err.Error(), ErrInvalidPort)
		}
		cfg.Exposes = append(cfg.Exposes, port)
	}

	env := make(map[string]string, len(svc.Environment))
	for k, v := range svc.Environment {
		if v != nil {
			env[k] = *v
		}
	}
	if len(env) > 0 {
		cfg.Environment = env
	}

	for _, v := range svc.Volumes {
		convertVolume(m, cfg, v)
	}

	for _, depName := range sortedDependsOn(svc) {
		cfg.Links = append(cfg.Links, cmap.ContainerLink{Container: depName, Alias: depName})
	}

	cfg.Network = convertNetworkMode(svc.NetworkMode)

	if svc.StopGracePeriod != nil {
		seconds := int(time.Duration(*svc.StopGracePeriod).Seconds())
		cfg.StopTimeout = &seconds
	}

	opts := convertCreateOptions(svc)
	if len(opts) > 0 {
		cfg.CreateOptions = opts
	}
	hostOpts := convertHostOptions(svc)
	if len(hostOpts) > 0 {
		cfg.HostConfig = hostOpts
	}
	return cfg, nil
}

func convertPort(p types.ServicePortConfig) (cmap.PortBinding, error) {
	port := cmap.PortBinding{ExposedPort: int(p.Target)}
	if p.Published != "" {
		published, err := strconv.Atoi(p.Published)
		if err != nil {
			return cmap.PortBinding{}, NewImportError("", "published port ranges are not supported", ErrInvalidPort)
		}
		port.HostPort = published
	}
	return port, nil
}

// convertVolume maps one compose mount onto the cmap model: binds stay
// explicit path pairs, named volumes become aliases whose host side lives
// under the map's host root, and tmpfs mounts degrade to plain shares.
func convertVolume(m *cmap.ContainerMap, cfg *cmap.ContainerConfiguration, v types.ServiceVolumeConfig) {
	isBind := v.Type == "bind" ||
		(v.Type != "volume" && v.Type != "tmpfs" &&
			(strings.HasPrefix(v.Source, "/") || strings.HasPrefix(v.Source, "./") || strings.HasPrefix(v.Source, "~")))
	switch {
	case v.Type == "tmpfs" || v.Source == "":
		cfg.Shares = append(cfg.Shares, v.Target)
	case isBind:
		cfg.Binds = append(cfg.Binds, cmap.HostBind{
			ContainerPath: v.Target,
			HostPath:      v.Source,
			ReadOnly:      v.ReadOnly,
		})
	default:
		if _, ok := m.Volumes[v.Source]; !ok {
			m.Volumes[v.Source] = v.Target
			m.Host.Paths[v.Source] = v.Source
		}
		cfg.Binds = append(cfg.Binds, cmap.HostBind{Alias: v.Source, ReadOnly: v.ReadOnly})
	}
}

func sortedDependsOn(svc types.ServiceConfig) []string {
	names := make([]string, 0, len(svc.DependsOn))
	for name := range svc.DependsOn {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func convertNetworkMode(mode string) cmap.NetworkSetting {
	switch {
	case mode == "":
		return cmap.NetworkSetting{}
	case strings.HasPrefix(mode, "service:"):
		return cmap.ParseNetworkSetting(strings.TrimPrefix(mode, "service:"))
	case mode == "none":
		return cmap.NetworkSetting{Mode: cmap.NetworkModeDisabled}
	default:
		return cmap.NetworkSetting{Mode: mode}
	}
}

func convertCreateOptions(svc types.ServiceConfig) map[string]any {
	opts := map[string]any{}
	if len(svc.Command) > 0 {
		opts["command"] = toAnySlice(svc.Command)
	}
	if len(svc.Entrypoint) > 0 {
		opts["entrypoint"] = toAnySlice(svc.Entrypoint)
	}
	if svc.WorkingDir != "" {
		opts["working_dir"] = svc.WorkingDir
	}
	if len(svc.Labels) > 0 {
		labels := make(map[string]any, len(svc.Labels))
		for k, v := range svc.Labels {
			labels[k] = v
		}
		opts["labels"] = labels
	}
	return opts
}

func convertHostOptions(svc types.ServiceConfig) map[string]any {
	opts := map[string]any{}
	if svc.Restart != "" {
		opts["restart_policy"] = map[string]any{"Name": svc.Restart}
	}
	if svc.Privileged {
		opts["privileged"] = true
	}
	return opts
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
