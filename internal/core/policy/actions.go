package policy

import (
	"context"
	"errors"
)

// =============================================================================
// Strategy Contracts
// =============================================================================

// ErrNotSupported is returned when an optional lifecycle verb is invoked on a
// strategy that does not implement it. It is distinct from a verb failing at
// runtime so callers can tell "unsupported operation" from "operation
// failed".
var ErrNotSupported = errors.New("operation not supported by this policy")

// ClientResult pairs the name of the engine endpoint an action ran against
// with the call's result value (e.g. the created container id).
type ClientResult struct {
	Client string
	Value  any
}

// ScriptResult carries the output of a script run on one client.
type ScriptResult struct {
	Log      string
	ExitCode int64
}

// ActionRunner is the required contract of a concrete action strategy: the
// four core lifecycle verbs. Each generates and executes actions for the
// named configuration and its dependency path, returning the ordered results
// of the target invocation.
type ActionRunner interface {
	CreateActions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error)
	StartActions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error)
	StopActions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error)
	RemoveActions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error)
}

// CapabilityRunner is the optional contract: composite verbs a strategy may
// additionally support. Absence of this interface on a strategy surfaces as
// ErrNotSupported, never as a silent no-op.
type CapabilityRunner interface {
	StartupActions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error)
	ShutdownActions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error)
	RestartActions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error)
	UpdateActions(ctx context.Context, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error)
}

// ScriptRunner is the optional contract for running a single script or
// command in a container.
type ScriptRunner interface {
	RunScript(ctx context.Context, mapName, config, instance string, kwargs Kwargs) (map[string]ScriptResult, error)
}

// Verb names a lifecycle operation, for dispatch surfaces (CLI, HTTP).
type Verb string

const (
	VerbCreate   Verb = "create"
	VerbStart    Verb = "start"
	VerbStop     Verb = "stop"
	VerbRemove   Verb = "remove"
	VerbStartup  Verb = "startup"
	VerbShutdown Verb = "shutdown"
	VerbRestart  Verb = "restart"
	VerbUpdate   Verb = "update"
)

// RunVerb dispatches a verb against a strategy. Required verbs go through
// ActionRunner; optional verbs require the strategy to implement
// CapabilityRunner and return ErrNotSupported otherwise. Unknown verb names
// also return ErrNotSupported.
func RunVerb(ctx context.Context, r ActionRunner, verb Verb, mapName, config string, instances []string, kwargs Kwargs) ([]ClientResult, error) {
	switch verb {
	case VerbCreate:
		return r.CreateActions(ctx, mapName, config, instances, kwargs)
	case VerbStart:
		return r.StartActions(ctx, mapName, config, instances, kwargs)
	case VerbStop:
		return r.StopActions(ctx, mapName, config, instances, kwargs)
	case VerbRemove:
		return r.RemoveActions(ctx, mapName, config, instances, kwargs)
	}
	cap, ok := r.(CapabilityRunner)
	if !ok {
		return nil, ErrNotSupported
	}
	switch verb {
	case VerbStartup:
		return cap.StartupActions(ctx, mapName, config, instances, kwargs)
	case VerbShutdown:
		return cap.ShutdownActions(ctx, mapName, config, instances, kwargs)
	case VerbRestart:
		return cap.RestartActions(ctx, mapName, config, instances, kwargs)
	case VerbUpdate:
		return cap.UpdateActions(ctx, mapName, config, instances, kwargs)
	}
	return nil, ErrNotSupported
}
