package docker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/conmap/conmap/internal/core/cmap"
	"github.com/conmap/conmap/internal/core/policy"
)

// =============================================================================
// Action Journal Contract
// =============================================================================

// ActionRecord describes one executed engine action.
type ActionRecord struct {
	Client    string
	Map       string
	Config    string
	Instance  string
	Verb      string
	Container string
	Error     string
}

// Recorder persists executed actions. Recording failures must not fail the
// action itself.
type Recorder interface {
	Record(ctx context.Context, rec ActionRecord) error
}

// =============================================================================
// Runner
// =============================================================================

// Runner is the concrete action strategy: it walks dependency paths through
// the policy's generators and executes the resulting engine calls, including
// the implicit lifecycle of attached volume containers.
type Runner struct {
	policy   *policy.Policy
	log      *slog.Logger
	recorder Recorder
}

// NewRunner creates a runner over the given policy. recorder may be nil, in
// which case actions are not journaled.
func NewRunner(p *policy.Policy, log *slog.Logger, recorder Recorder) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{policy: p, log: log, recorder: recorder}
}

var _ policy.ActionRunner = (*Runner)(nil)
var _ policy.CapabilityRunner = (*Runner)(nil)
var _ policy.ScriptRunner = (*Runner)(nil)

// =============================================================================
// Required Verbs
// =============================================================================

// CreateActions creates the requested containers and everything on their
// dependency path, attached volume containers included.
func (r *Runner) CreateActions(ctx context.Context, mapName, config string, instances []string, kwargs policy.Kwargs) ([]policy.ClientResult, error) {
	return policy.NewForwardGenerator(r.policy, r.createItem).Actions(ctx, mapName, config, instances, kwargs)
}

// StartActions starts the requested containers dependencies-first. On engine
// APIs without create-time host configuration the host configuration is
// supplied here.
func (r *Runner) StartActions(ctx context.Context, mapName, config string, instances []string, kwargs policy.Kwargs) ([]policy.ClientResult, error) {
	return policy.NewForwardGenerator(r.policy, r.startItem).Actions(ctx, mapName, config, instances, kwargs)
}

// StopActions stops the requested containers dependents-first.
func (r *Runner) StopActions(ctx context.Context, mapName, config string, instances []string, kwargs policy.Kwargs) ([]policy.ClientResult, error) {
	return policy.NewReverseGenerator(r.policy, r.stopItem).Actions(ctx, mapName, config, instances, kwargs)
}

// RemoveActions removes the requested containers dependents-first. Persistent
// configurations on the dependency path are left in place; only an explicit
// request removes them.
func (r *Runner) RemoveActions(ctx context.Context, mapName, config string, instances []string, kwargs policy.Kwargs) ([]policy.ClientResult, error) {
	return policy.NewReverseGenerator(r.policy, r.removeItem).Actions(ctx, mapName, config, instances, kwargs)
}

// =============================================================================
// Composite Verbs
// =============================================================================

// StartupActions creates and starts the requested containers and their
// dependency path.
func (r *Runner) StartupActions(ctx context.Context, mapName, config string, instances []string, kwargs policy.Kwargs) ([]policy.ClientResult, error) {
	if _, err := r.CreateActions(ctx, mapName, config, instances, kwargs); err != nil {
		return nil, err
	}
	return r.StartActions(ctx, mapName, config, instances, nil)
}

// ShutdownActions stops and removes the requested containers and their
// dependents.
func (r *Runner) ShutdownActions(ctx context.Context, mapName, config string, instances []string, kwargs policy.Kwargs) ([]policy.ClientResult, error) {
	if _, err := r.StopActions(ctx, mapName, config, instances, kwargs); err != nil {
		return nil, err
	}
	return r.RemoveActions(ctx, mapName, config, instances, nil)
}

// RestartActions restarts only the requested containers; the dependency path
// is left running.
func (r *Runner) RestartActions(ctx context.Context, mapName, config string, instances []string, kwargs policy.Kwargs) ([]policy.ClientResult, error) {
	m, cfg, instances, err := r.resolve(mapName, config, instances)
	if err != nil {
		return nil, err
	}
	clients, err := r.policy.Clients(cfg, m)
	if err != nil {
		return nil, err
	}
	var results []policy.ClientResult
	for _, entry := range clients {
		for _, instance := range instances {
			cName := policy.ContainerName(mapName, config, instance)
			rk := policy.RestartKwargs(cfg, entry.Config, cName, kwargs)
			err := entry.Client.RestartContainer(ctx, rk)
			r.record(ctx, entry.Name, mapName, config, instance, "restart", cName, err)
			if err != nil {
				return nil, err
			}
			results = append(results, policy.ClientResult{Client: entry.Name, Value: cName})
		}
	}
	return results, nil
}

// UpdateActions recreates the requested containers: shutdown of the current
// state followed by a fresh startup.
func (r *Runner) UpdateActions(ctx context.Context, mapName, config string, instances []string, kwargs policy.Kwargs) ([]policy.ClientResult, error) {
	if _, err := r.ShutdownActions(ctx, mapName, config, instances, nil); err != nil {
		return nil, err
	}
	return r.StartupActions(ctx, mapName, config, instances, kwargs)
}

// =============================================================================
// Script Execution
// =============================================================================

// logReader is implemented by engines that can return container output.
type logReader interface {
	ContainerLogs(ctx context.Context, name string) (string, error)
}

// RunScript runs a one-off command in a temporary container of the given
// configuration and collects its output per client. The container is removed
// afterwards regardless of outcome.
func (r *Runner) RunScript(ctx context.Context, mapName, config, instance string, kwargs policy.Kwargs) (map[string]policy.ScriptResult, error) {
	m, cfg, _, err := r.resolve(mapName, config, nil)
	if err != nil {
		return nil, err
	}
	clients, err := r.policy.Clients(cfg, m)
	if err != nil {
		return nil, err
	}
	results := make(map[string]policy.ScriptResult, len(clients))
	for _, entry := range clients {
		result, err := r.runScriptOn(ctx, entry, m, config, cfg, instance, kwargs)
		if err != nil {
			return nil, err
		}
		results[entry.Name] = result
	}
	return results, nil
}

func (r *Runner) runScriptOn(ctx context.Context, entry policy.ClientEntry, m *cmap.ContainerMap,
	config string, cfg *cmap.ContainerConfiguration, instance string, kwargs policy.Kwargs) (policy.ScriptResult, error) {

	includeHC := policy.UseHostConfig(entry.Client.APIVersion())
	scriptName := fmt.Sprintf("%s-script-%s", policy.ContainerName(m.Name, config, instance), uuid.NewString())
	ck, err := policy.CreateKwargs(m, config, cfg, entry.Name, entry.Config, scriptName, instance, includeHC, kwargs)
	if err != nil {
		return policy.ScriptResult{}, err
	}
	if _, err := entry.Client.CreateContainer(ctx, ck); err != nil {
		return policy.ScriptResult{}, err
	}
	defer func() {
		rk := policy.RemoveKwargs(scriptName, policy.Kwargs{"force": true, "v": true})
		if err := entry.Client.RemoveContainer(ctx, rk); err != nil {
			r.log.Warn("failed to remove script container", "container", scriptName, "error", err)
		}
	}()

	if err := entry.Client.StartContainer(ctx, policy.Kwargs{"container": scriptName}); err != nil {
		return policy.ScriptResult{}, err
	}
	exitCode, err := entry.Client.WaitContainer(ctx, scriptName, entry.Config.WaitTimeout)
	if err != nil {
		return policy.ScriptResult{}, err
	}
	result := policy.ScriptResult{ExitCode: exitCode}
	if lr, ok := entry.Client.(logReader); ok {
		if log, err := lr.ContainerLogs(ctx, scriptName); err == nil {
			result.Log = log
		}
	}
	return result, nil
}

// =============================================================================
// Item Strategies
// =============================================================================

func (r *Runner) createItem(ctx context.Context, m *cmap.ContainerMap, configName string,
	cfg *cmap.ContainerConfiguration, instances []string, dependency bool, kwargs policy.Kwargs) ([]policy.ClientResult, error) {

	clients, err := r.policy.Clients(cfg, m)
	if err != nil {
		return nil, err
	}
	var results []policy.ClientResult
	for _, entry := range clients {
		includeHC := policy.UseHostConfig(entry.Client.APIVersion())
		for _, alias := range cfg.Attaches {
			if err := r.createAttached(ctx, entry, m, configName, cfg, alias, includeHC); err != nil {
				return nil, err
			}
		}
		for _, instance := range instances {
			cName := policy.ContainerName(m.Name, configName, instance)
			ck, err := policy.CreateKwargs(m, configName, cfg, entry.Name, entry.Config, cName, instance, includeHC, kwargs)
			if err != nil {
				return nil, err
			}
			id, err := entry.Client.CreateContainer(ctx, ck)
			r.record(ctx, entry.Name, m.Name, configName, instance, "create", cName, err)
			if err != nil {
				return nil, err
			}
			r.log.Info("created container", "container", cName, "client", entry.Name, "id", id)
			results = append(results, policy.ClientResult{Client: entry.Name, Value: id})
		}
	}
	return results, nil
}

func (r *Runner) startItem(ctx context.Context, m *cmap.ContainerMap, configName string,
	cfg *cmap.ContainerConfiguration, instances []string, dependency bool, kwargs policy.Kwargs) ([]policy.ClientResult, error) {

	clients, err := r.policy.Clients(cfg, m)
	if err != nil {
		return nil, err
	}
	var results []policy.ClientResult
	for _, entry := range clients {
		includeHC := policy.UseHostConfig(entry.Client.APIVersion())
		for _, instance := range instances {
			cName := policy.ContainerName(m.Name, configName, instance)
			sk := policy.Kwargs{"container": cName}
			if !includeHC {
				sk, err = policy.HostConfigKwargs(m, configName, cfg, entry.Name, entry.Config, cName, instance, kwargs)
				if err != nil {
					return nil, err
				}
			}
			err := entry.Client.StartContainer(ctx, sk)
			r.record(ctx, entry.Name, m.Name, configName, instance, "start", cName, err)
			if err != nil {
				return nil, err
			}
			r.log.Info("started container", "container", cName, "client", entry.Name)
			results = append(results, policy.ClientResult{Client: entry.Name, Value: cName})
		}
	}
	return results, nil
}

func (r *Runner) stopItem(ctx context.Context, m *cmap.ContainerMap, configName string,
	cfg *cmap.ContainerConfiguration, instances []string, dependency bool, kwargs policy.Kwargs) ([]policy.ClientResult, error) {

	clients, err := r.policy.Clients(cfg, m)
	if err != nil {
		return nil, err
	}
	var results []policy.ClientResult
	for _, entry := range clients {
		for _, instance := range instances {
			cName := policy.ContainerName(m.Name, configName, instance)
			sk := policy.StopKwargs(cfg, entry.Config, cName, kwargs)
			err := entry.Client.StopContainer(ctx, sk)
			r.record(ctx, entry.Name, m.Name, configName, instance, "stop", cName, err)
			if err != nil {
				return nil, err
			}
			r.log.Info("stopped container", "container", cName, "client", entry.Name)
			results = append(results, policy.ClientResult{Client: entry.Name, Value: cName})
		}
	}
	return results, nil
}

func (r *Runner) removeItem(ctx context.Context, m *cmap.ContainerMap, configName string,
	cfg *cmap.ContainerConfiguration, instances []string, dependency bool, kwargs policy.Kwargs) ([]policy.ClientResult, error) {

	if dependency && cfg.IsPersistent() {
		r.log.Debug("keeping persistent container", "config", configName)
		return nil, nil
	}
	clients, err := r.policy.Clients(cfg, m)
	if err != nil {
		return nil, err
	}
	var results []policy.ClientResult
	for _, entry := range clients {
		for _, instance := range instances {
			cName := policy.ContainerName(m.Name, configName, instance)
			rk := policy.RemoveKwargs(cName, kwargs)
			err := entry.Client.RemoveContainer(ctx, rk)
			r.record(ctx, entry.Name, m.Name, configName, instance, "remove", cName, err)
			if err != nil {
				return nil, err
			}
			r.log.Info("removed container", "container", cName, "client", entry.Name)
			results = append(results, policy.ClientResult{Client: entry.Name, Value: cName})
		}
		for _, alias := range cfg.Attaches {
			aName := r.attachedName(m, configName, alias)
			rk := policy.RemoveKwargs(aName, nil)
			err := entry.Client.RemoveContainer(ctx, rk)
			r.record(ctx, entry.Name, m.Name, configName, "", "remove", aName, err)
			if err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// =============================================================================
// Attached Containers
// =============================================================================

// createAttached creates and starts one attached volume container, then runs
// the preparation step that adjusts ownership and permissions on its volume.
func (r *Runner) createAttached(ctx context.Context, entry policy.ClientEntry, m *cmap.ContainerMap,
	configName string, cfg *cmap.ContainerConfiguration, alias string, includeHC bool) error {

	aName := r.attachedName(m, configName, alias)
	ck, err := policy.AttachedCreateKwargs(r.policy.Builder(), m, configName, cfg, entry.Name, entry.Config, aName, alias, includeHC, nil)
	if err != nil {
		return err
	}
	id, err := entry.Client.CreateContainer(ctx, ck)
	r.record(ctx, entry.Name, m.Name, configName, "", "create", aName, err)
	if err != nil {
		return err
	}
	r.log.Info("created attached container", "container", aName, "client", entry.Name, "id", id)

	sk := policy.AttachedHostConfigKwargs(aName, nil)
	if err := entry.Client.StartContainer(ctx, sk); err != nil {
		return err
	}
	return r.prepareAttached(ctx, entry, m, configName, cfg, alias, aName, includeHC)
}

// prepareAttached waits for the attached container to settle, then runs a
// short-lived preparation container sharing its volume. The preparation
// container is removed whether or not the command succeeds.
func (r *Runner) prepareAttached(ctx context.Context, entry policy.ClientEntry, m *cmap.ContainerMap,
	configName string, cfg *cmap.ContainerConfiguration, alias, attachedName string, includeHC bool) error {

	if _, err := entry.Client.WaitContainer(ctx, attachedName, entry.Config.WaitTimeout); err != nil {
		return err
	}
	tempName := "prep-" + uuid.NewString()
	pk, err := policy.AttachedPreparationCreateKwargs(r.policy.Builder(), m, configName, cfg,
		entry.Name, entry.Config, tempName, alias, attachedName, includeHC, nil)
	if err != nil {
		return err
	}
	if cmd, _ := pk["command"].(string); cmd == "" {
		return nil
	}
	if _, err := entry.Client.CreateContainer(ctx, pk); err != nil {
		return err
	}
	defer func() {
		rk := policy.RemoveKwargs(tempName, policy.Kwargs{"force": true})
		if err := entry.Client.RemoveContainer(ctx, rk); err != nil {
			r.log.Warn("failed to remove preparation container", "container", tempName, "error", err)
		}
	}()

	var sk policy.Kwargs
	if includeHC {
		sk = policy.Kwargs{"container": tempName}
	} else {
		sk = policy.AttachedPreparationHostConfigKwargs(tempName, attachedName, nil)
	}
	if err := entry.Client.StartContainer(ctx, sk); err != nil {
		return err
	}
	exitCode, err := entry.Client.WaitContainer(ctx, tempName, entry.Config.WaitTimeout)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return NewEngineError("PrepareAttached", attachedName,
			fmt.Sprintf("preparation exited with code %d", exitCode), ErrPreparationFailed)
	}
	return nil
}

func (r *Runner) attachedName(m *cmap.ContainerMap, configName, alias string) string {
	if m.UseAttachedParentName {
		return policy.AttachedName(m.Name, configName, alias)
	}
	return policy.AttachedName(m.Name, "", alias)
}

// =============================================================================
// Helpers
// =============================================================================

func (r *Runner) resolve(mapName, config string, instances []string) (*cmap.ContainerMap, *cmap.ContainerConfiguration, []string, error) {
	m, err := r.policy.Map(mapName)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := m.Get(config)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(instances) == 0 {
		instances = cfg.Instances
	}
	if len(instances) == 0 {
		instances = []string{""}
	}
	return m, cfg, instances, nil
}

func (r *Runner) record(ctx context.Context, client, mapName, config, instance, verb, container string, actionErr error) {
	if r.recorder == nil {
		return
	}
	rec := ActionRecord{
		Client:    client,
		Map:       mapName,
		Config:    config,
		Instance:  instance,
		Verb:      verb,
		Container: container,
	}
	if actionErr != nil {
		rec.Error = actionErr.Error()
	}
	if err := r.recorder.Record(ctx, rec); err != nil {
		r.log.Warn("failed to journal action", "verb", verb, "container", container, "error", err)
	}
}
