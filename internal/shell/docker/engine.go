package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/conmap/conmap/internal/core/policy"
)

// =============================================================================
// Engine Adapter
// =============================================================================

// Client implements the policy engine contract on top of the Docker SDK. It
// translates the generic engine-call arguments produced by the parameter
// builders into typed SDK requests.
type Client struct {
	cli *client.Client
}

// NewClient connects to a Docker daemon. An empty host uses the environment
// defaults; API version negotiation keeps the client compatible with older
// daemons.
func NewClient(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewEngineError("NewClient", "", "failed to create client", ErrConnectionFailed)
	}
	return &Client{cli: cli}, nil
}

// Ping checks if the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return NewEngineError("Ping", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// APIVersion returns the negotiated daemon API version.
func (c *Client) APIVersion() string {
	return c.cli.ClientVersion()
}

// CreateContainer creates a container from generic engine-call arguments and
// returns its id.
func (c *Client) CreateContainer(ctx context.Context, kwargs policy.Kwargs) (string, error) {
	name, _ := kwargs["name"].(string)
	image, ok := kwargs["image"].(string)
	if !ok || image == "" {
		return "", NewEngineError("CreateContainer", name, "image is required", ErrMissingArgument)
	}

	config := &container.Config{
		Image:      image,
		Cmd:        stringList(kwargs["command"]),
		Entrypoint: stringList(kwargs["entrypoint"]),
		User:       stringValue(kwargs["user"]),
		Hostname:   stringValue(kwargs["hostname"]),
		Domainname: stringValue(kwargs["domainname"]),
		WorkingDir: stringValue(kwargs["working_dir"]),
		Env:        stringList(kwargs["environment"]),
		Labels:     stringMap(kwargs["labels"]),
	}
	if disabled, ok := kwargs["network_disabled"].(bool); ok {
		config.NetworkDisabled = disabled
	}
	for _, p := range intList(kwargs["ports"]) {
		if config.ExposedPorts == nil {
			config.ExposedPorts = nat.PortSet{}
		}
		config.ExposedPorts[nat.Port(fmt.Sprintf("%d/tcp", p))] = struct{}{}
	}
	if volumes := stringList(kwargs["volumes"]); len(volumes) > 0 {
		config.Volumes = make(map[string]struct{}, len(volumes))
		for _, v := range volumes {
			config.Volumes[v] = struct{}{}
		}
	}

	hostConfig, err := hostConfigFromKwargs(asKwargs(kwargs["host_config"]))
	if err != nil {
		return "", NewEngineError("CreateContainer", name, err.Error(), ErrInvalidArgument)
	}

	var networkConfig *network.NetworkingConfig
	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, name)
	if err != nil {
		return "", NewEngineError("CreateContainer", name, err.Error(), err)
	}
	return resp.ID, nil
}

// StartContainer starts the container named by the arguments.
func (c *Client) StartContainer(ctx context.Context, kwargs policy.Kwargs) error {
	name, err := containerArg("StartContainer", kwargs)
	if err != nil {
		return err
	}
	if err := c.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return NewEngineError("StartContainer", name, "container not found", ErrContainerNotFound)
		}
		return NewEngineError("StartContainer", name, err.Error(), err)
	}
	return nil
}

// StopContainer stops the container named by the arguments, honoring an
// optional timeout in seconds.
func (c *Client) StopContainer(ctx context.Context, kwargs policy.Kwargs) error {
	name, err := containerArg("StopContainer", kwargs)
	if err != nil {
		return err
	}
	opts := container.StopOptions{}
	if timeout, ok := kwargs["timeout"].(int); ok {
		opts.Timeout = &timeout
	}
	if err := c.cli.ContainerStop(ctx, name, opts); err != nil {
		if client.IsErrNotFound(err) {
			return NewEngineError("StopContainer", name, "container not found", ErrContainerNotFound)
		}
		return NewEngineError("StopContainer", name, err.Error(), err)
	}
	return nil
}

// RestartContainer restarts the container named by the arguments.
func (c *Client) RestartContainer(ctx context.Context, kwargs policy.Kwargs) error {
	name, err := containerArg("RestartContainer", kwargs)
	if err != nil {
		return err
	}
	opts := container.StopOptions{}
	if timeout, ok := kwargs["timeout"].(int); ok {
		opts.Timeout = &timeout
	}
	if err := c.cli.ContainerRestart(ctx, name, opts); err != nil {
		if client.IsErrNotFound(err) {
			return NewEngineError("RestartContainer", name, "container not found", ErrContainerNotFound)
		}
		return NewEngineError("RestartContainer", name, err.Error(), err)
	}
	return nil
}

// RemoveContainer removes the container named by the arguments.
func (c *Client) RemoveContainer(ctx context.Context, kwargs policy.Kwargs) error {
	name, err := containerArg("RemoveContainer", kwargs)
	if err != nil {
		return err
	}
	opts := container.RemoveOptions{}
	if force, ok := kwargs["force"].(bool); ok {
		opts.Force = force
	}
	if volumes, ok := kwargs["v"].(bool); ok {
		opts.RemoveVolumes = volumes
	}
	if err := c.cli.ContainerRemove(ctx, name, opts); err != nil {
		if client.IsErrNotFound(err) {
			return NewEngineError("RemoveContainer", name, "container not found", ErrContainerNotFound)
		}
		return NewEngineError("RemoveContainer", name, err.Error(), err)
	}
	return nil
}

// WaitContainer blocks until the container exits and returns its exit code.
func (c *Client) WaitContainer(ctx context.Context, name string, timeout *int) (int64, error) {
	if timeout != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*timeout)*time.Second)
		defer cancel()
	}
	statusCh, errCh := c.cli.ContainerWait(ctx, name, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, NewEngineError("WaitContainer", name, err.Error(), err)
	case status := <-statusCh:
		return status.StatusCode, nil
	}
}

// ContainerLogs returns the collected output of a container.
func (c *Client) ContainerLogs(ctx context.Context, name string) (string, error) {
	reader, err := c.cli.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", NewEngineError("ContainerLogs", name, err.Error(), err)
	}
	defer reader.Close()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, readErr := reader.Read(buf)
		sb.Write(buf[:n])
		if readErr != nil {
			break
		}
	}
	return sb.String(), nil
}

// =============================================================================
// Argument Translation
// =============================================================================

func hostConfigFromKwargs(kwargs policy.Kwargs) (*container.HostConfig, error) {
	hc := &container.HostConfig{}
	if len(kwargs) == 0 {
		return hc, nil
	}

	hc.Binds = bindList(kwargs["binds"])
	hc.VolumesFrom = stringList(kwargs["volumes_from"])
	for name, alias := range asKwargs(kwargs["links"]) {
		hc.Links = append(hc.Links, fmt.Sprintf("%s:%s", name, stringValue(alias)))
	}
	sort.Strings(hc.Links)

	if mode := stringValue(kwargs["network_mode"]); mode != "" {
		hc.NetworkMode = container.NetworkMode(mode)
	}
	if privileged, ok := kwargs["privileged"].(bool); ok {
		hc.Privileged = privileged
	}
	if rp := asKwargs(kwargs["restart_policy"]); rp != nil {
		hc.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(stringValue(rp["Name"])),
		}
		if retries, ok := rp["MaximumRetryCount"].(int); ok {
			hc.RestartPolicy.MaximumRetryCount = retries
		}
	}

	bindings, err := portMap(kwargs["port_bindings"])
	if err != nil {
		return nil, err
	}
	hc.PortBindings = bindings
	return hc, nil
}

// bindList converts the nested bind representation (host path to bind point
// and read-only flag) into the SDK's "host:container:mode" strings.
func bindList(v any) []string {
	bindKwargs := asKwargs(v)
	if len(bindKwargs) == 0 {
		return nil
	}
	out := make([]string, 0, len(bindKwargs))
	for hostPath, entry := range bindKwargs {
		e := asKwargs(entry)
		mode := "rw"
		if ro, ok := e["ro"].(bool); ok && ro {
			mode = "ro"
		}
		out = append(out, fmt.Sprintf("%s:%s:%s", hostPath, stringValue(e["bind"]), mode))
	}
	sort.Strings(out)
	return out
}

func portMap(v any) (nat.PortMap, error) {
	bindings, ok := v.(map[int]any)
	if !ok || len(bindings) == 0 {
		return nil, nil
	}
	out := nat.PortMap{}
	for exposed, hostSide := range bindings {
		port := nat.Port(fmt.Sprintf("%d/tcp", exposed))
		switch h := hostSide.(type) {
		case int:
			out[port] = []nat.PortBinding{{HostPort: fmt.Sprintf("%d", h)}}
		case []any:
			if len(h) != 2 {
				return nil, fmt.Errorf("port binding for %d must be a (address, port) pair", exposed)
			}
			out[port] = []nat.PortBinding{{
				HostIP:   stringValue(h[0]),
				HostPort: fmt.Sprintf("%v", h[1]),
			}}
		default:
			return nil, fmt.Errorf("unsupported port binding for %d: %T", exposed, hostSide)
		}
	}
	return out, nil
}

func containerArg(op string, kwargs policy.Kwargs) (string, error) {
	name, ok := kwargs["container"].(string)
	if !ok || name == "" {
		return "", NewEngineError(op, "", "container is required", ErrMissingArgument)
	}
	return name, nil
}

func asKwargs(v any) policy.Kwargs {
	switch m := v.(type) {
	case policy.Kwargs:
		return m
	case map[string]any:
		return policy.Kwargs(m)
	default:
		return nil
	}
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func stringList(v any) []string {
	switch list := v.(type) {
	case nil:
		return nil
	case []string:
		return list
	case []any:
		out := make([]string, len(list))
		for i, e := range list {
			out[i] = stringValue(e)
		}
		return out
	case string:
		return []string{list}
	default:
		return nil
	}
}

func intList(v any) []int {
	switch list := v.(type) {
	case []int:
		return list
	case []any:
		out := make([]int, 0, len(list))
		for _, e := range list {
			if n, ok := e.(int); ok {
				out = append(out, n)
			}
		}
		return out
	default:
		return nil
	}
}

func stringMap(v any) map[string]string {
	m := asKwargs(v)
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = stringValue(val)
	}
	return out
}
