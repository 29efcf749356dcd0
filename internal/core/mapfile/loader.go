package mapfile

import (
	"fmt"
	"strconv"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"

	"github.com/conmap/conmap/internal/core/cmap"
)

// =============================================================================
// Document Schema
// =============================================================================

type document struct {
	Name                  string                  `yaml:"name"`
	Repository            string                  `yaml:"repository"`
	DefaultDomain         string                  `yaml:"default_domain"`
	SetHostname           *bool                   `yaml:"set_hostname"`
	UseAttachedParentName bool                    `yaml:"use_attached_parent_name"`
	Clients               []string                `yaml:"clients"`
	HostRoot              string                  `yaml:"host_root"`
	Volumes               map[string]string       `yaml:"volumes"`
	Host                  map[string]any          `yaml:"host"`
	Containers            map[string]containerDoc `yaml:"containers"`
}

type containerDoc struct {
	Abstract      bool           `yaml:"abstract"`
	Extends       []string       `yaml:"extends"`
	Image         string         `yaml:"image"`
	Instances     []string       `yaml:"instances"`
	Shares        []string       `yaml:"shares"`
	Binds         []any          `yaml:"binds"`
	Uses          []string       `yaml:"uses"`
	Links         []string       `yaml:"links"`
	Attaches      []string       `yaml:"attaches"`
	Exposes       []any          `yaml:"exposes"`
	User          any            `yaml:"user"`
	Permissions   string         `yaml:"permissions"`
	Persistent    *bool          `yaml:"persistent"`
	Clients       []string       `yaml:"clients"`
	CreateOptions map[string]any `yaml:"create_options"`
	HostConfig    map[string]any `yaml:"host_config"`
	Environment   any            `yaml:"environment"`
	StopTimeout   *int           `yaml:"stop_timeout"`
	Network       string         `yaml:"network"`
}

// =============================================================================
// Parsing
// =============================================================================

// Parse parses one YAML container map document. The document's own name field
// wins over the name argument when both are given.
func Parse(name string, content []byte) (*cmap.ContainerMap, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyInput
	}
	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}
	if doc.Name != "" {
		name = doc.Name
	}
	if len(doc.Containers) == 0 {
		return nil, ErrNoContainers
	}

	m := cmap.NewContainerMap(name)
	if doc.Repository != "" {
		m.Repository = doc.Repository
	}
	if doc.DefaultDomain != "" {
		m.DefaultDomain = doc.DefaultDomain
	}
	if doc.SetHostname != nil {
		m.SetHostname = *doc.SetHostname
	}
	m.UseAttachedParentName = doc.UseAttachedParentName
	m.Clients = doc.Clients
	m.Host.Root = doc.HostRoot
	for alias, p := range doc.Volumes {
		m.Volumes[alias] = p
	}
	for alias, p := range doc.Host {
		hp, err := parseHostPath(alias, p)
		if err != nil {
			return nil, err
		}
		m.Host.Paths[alias] = hp
	}
	for cName, cDoc := range doc.Containers {
		cfg, err := parseContainer(cName, cDoc)
		if err != nil {
			return nil, err
		}
		m.Containers[cName] = cfg
	}
	return m, nil
}

// parseHostPath accepts a plain path string or a per-instance table.
func parseHostPath(alias string, v any) (any, error) {
	switch p := v.(type) {
	case string:
		return p, nil
	case map[string]any:
		table := make(map[string]any, len(p))
		for instance, entry := range p {
			s, ok := entry.(string)
			if !ok {
				return nil, NewParseError(fmt.Sprintf("host.%s.%s", alias, instance),
					"host path must be a string", ErrInvalidYAML)
			}
			table[instance] = s
		}
		return table, nil
	default:
		return nil, NewParseError("host."+alias, "host path must be a string or instance table", ErrInvalidYAML)
	}
}

func parseContainer(name string, doc containerDoc) (*cmap.ContainerConfiguration, error) {
	field := func(sub string) string { return fmt.Sprintf("containers.%s.%s", name, sub) }

	cfg := &cmap.ContainerConfiguration{
		Abstract:    doc.Abstract,
		Extends:     doc.Extends,
		Image:       doc.Image,
		Instances:   doc.Instances,
		Attaches:    doc.Attaches,
		User:        normalizeUser(doc.User),
		Permissions: doc.Permissions,
		Persistent:  doc.Persistent,
		Clients:     doc.Clients,
		Environment: normalizeEnvironment(doc.Environment),
		StopTimeout: doc.StopTimeout,
		Network:     cmap.ParseNetworkSetting(doc.Network),
	}
	for _, s := range doc.Shares {
		cfg.Shares = append(cfg.Shares, s)
	}
	for i, b := range doc.Binds {
		bind, err := parseBind(b)
		if err != nil {
			return nil, NewParseError(fmt.Sprintf("%s[%d]", field("binds"), i), err.Error(), ErrInvalidBind)
		}
		cfg.Binds = append(cfg.Binds, bind)
	}
	for _, u := range doc.Uses {
		cfg.Uses = append(cfg.Uses, cmap.ParseSharedVolume(u))
	}
	for _, l := range doc.Links {
		cfg.Links = append(cfg.Links, cmap.ParseLink(l))
	}
	for i, e := range doc.Exposes {
		port, err := parseExpose(e)
		if err != nil {
			return nil, NewParseError(fmt.Sprintf("%s[%d]", field("exposes"), i), err.Error(), ErrInvalidPort)
		}
		cfg.Exposes = append(cfg.Exposes, port)
	}

	var err error
	if cfg.CreateOptions, err = parseOptions(doc.CreateOptions, field("create_options")); err != nil {
		return nil, err
	}
	if cfg.HostConfig, err = parseOptions(doc.HostConfig, field("host_config")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseBind accepts the string forms "alias" and "alias:ro", and the mapping
// forms {alias: ..., readonly: ...} and {container: ..., host: ..., readonly: ...}.
func parseBind(v any) (cmap.HostBind, error) {
	switch b := v.(type) {
	case string:
		if alias, ok := strings.CutSuffix(b, ":ro"); ok {
			return cmap.HostBind{Alias: alias, ReadOnly: true}, nil
		}
		return cmap.HostBind{Alias: b}, nil
	case map[string]any:
		bind := cmap.HostBind{}
		if alias, ok := b["alias"].(string); ok {
			bind.Alias = alias
		}
		if cPath, ok := b["container"].(string); ok {
			bind.ContainerPath = cPath
		}
		if hPath, ok := b["host"]; ok {
			bind.HostPath = hPath
		}
		if ro, ok := b["readonly"].(bool); ok {
			bind.ReadOnly = ro
		}
		if bind.Alias == "" && bind.ContainerPath == "" {
			return cmap.HostBind{}, fmt.Errorf("bind needs an alias or a container path")
		}
		return bind, nil
	default:
		return cmap.HostBind{}, fmt.Errorf("bind must be a string or mapping, got %T", v)
	}
}

// parseExpose accepts a bare port number (exposed but not published),
// "exposed:host", and "exposed:host:interface".
func parseExpose(v any) (cmap.PortBinding, error) {
	switch e := v.(type) {
	case int:
		return cmap.PortBinding{ExposedPort: e}, nil
	case string:
		parts := strings.Split(e, ":")
		if len(parts) > 3 {
			return cmap.PortBinding{}, fmt.Errorf("too many segments in %q", e)
		}
		exposed, err := strconv.Atoi(parts[0])
		if err != nil {
			return cmap.PortBinding{}, fmt.Errorf("exposed port %q is not a number", parts[0])
		}
		port := cmap.PortBinding{ExposedPort: exposed}
		if len(parts) > 1 {
			host, err := strconv.Atoi(parts[1])
			if err != nil {
				return cmap.PortBinding{}, fmt.Errorf("host port %q is not a number", parts[1])
			}
			port.HostPort = host
		}
		if len(parts) > 2 {
			port.Interface = parts[2]
		}
		return port, nil
	default:
		return cmap.PortBinding{}, fmt.Errorf("port must be a number or string, got %T", v)
	}
}

// parseOptions passes extra engine-call options through, splitting string
// command lines into argument lists.
func parseOptions(opts map[string]any, field string) (any, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	for _, key := range []string{"command", "entrypoint"} {
		line, ok := out[key].(string)
		if !ok {
			continue
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			return nil, NewParseError(field+"."+key, err.Error(), ErrInvalidCommand)
		}
		split := make([]any, len(args))
		for i, a := range args {
			split[i] = a
		}
		out[key] = split
	}
	return out, nil
}

func normalizeUser(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}

// normalizeEnvironment accepts a KEY: value mapping or a list of KEY=VALUE
// strings and returns the corresponding cmap representation.
func normalizeEnvironment(v any) any {
	switch env := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]string, len(env))
		for k, val := range env {
			out[k] = fmt.Sprint(val)
		}
		return out
	case []any:
		out := make([]string, 0, len(env))
		for _, e := range env {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return v
	}
}
