package docker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmap/conmap/internal/core/cmap"
	"github.com/conmap/conmap/internal/core/policy"
)

// =============================================================================
// Fake Engine
// =============================================================================

type engineCall struct {
	Op        string
	Container string
	Kwargs    policy.Kwargs
}

type fakeEngine struct {
	mu         sync.Mutex
	calls      []engineCall
	apiVersion string
	waitCode   int64
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{apiVersion: "1.24"}
}

func (e *fakeEngine) append(op, container string, kwargs policy.Kwargs) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, engineCall{Op: op, Container: container, Kwargs: kwargs})
}

func (e *fakeEngine) CreateContainer(ctx context.Context, kwargs policy.Kwargs) (string, error) {
	name, _ := kwargs["name"].(string)
	e.append("create", name, kwargs)
	return "id-" + name, nil
}

func (e *fakeEngine) StartContainer(ctx context.Context, kwargs policy.Kwargs) error {
	name, _ := kwargs["container"].(string)
	e.append("start", name, kwargs)
	return nil
}

func (e *fakeEngine) StopContainer(ctx context.Context, kwargs policy.Kwargs) error {
	name, _ := kwargs["container"].(string)
	e.append("stop", name, kwargs)
	return nil
}

func (e *fakeEngine) RestartContainer(ctx context.Context, kwargs policy.Kwargs) error {
	name, _ := kwargs["container"].(string)
	e.append("restart", name, kwargs)
	return nil
}

func (e *fakeEngine) RemoveContainer(ctx context.Context, kwargs policy.Kwargs) error {
	name, _ := kwargs["container"].(string)
	e.append("remove", name, kwargs)
	return nil
}

func (e *fakeEngine) WaitContainer(ctx context.Context, container string, timeout *int) (int64, error) {
	e.append("wait", container, nil)
	return e.waitCode, nil
}

func (e *fakeEngine) APIVersion() string { return e.apiVersion }

func (e *fakeEngine) ops() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.Op + " " + c.Container
	}
	return out
}

func (e *fakeEngine) callsFor(op string) []engineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []engineCall
	for _, c := range e.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// Fixture
// =============================================================================

func runnerFixture(t *testing.T, engine *fakeEngine) *Runner {
	t.Helper()
	m := cmap.NewContainerMap("main")
	m.Volumes["app_socket"] = "/var/lib/app/socket"
	m.Containers["app"] = &cmap.ContainerConfiguration{
		Image:       "app",
		Attaches:    []string{"app_socket"},
		User:        2000,
		Permissions: "u=rwX,g=rX,o=",
	}
	m.Containers["web"] = &cmap.ContainerConfiguration{
		Image: "nginx",
		Uses:  []cmap.SharedVolume{{Name: "app_socket"}},
		Links: []cmap.ContainerLink{{Container: "app", Alias: "app"}},
	}

	p, err := policy.New(
		map[string]*cmap.ContainerMap{"main": m},
		map[string]*policy.ClientConfig{
			policy.DefaultClientName: {
				Factory: func() (policy.Engine, error) { return engine, nil },
			},
		},
		policy.DefaultBuilderConfig(),
	)
	require.NoError(t, err)
	return NewRunner(p, nil, nil)
}

// =============================================================================
// Tests
// =============================================================================

func TestCreateActions_DependenciesAndAttached(t *testing.T) {
	engine := newFakeEngine()
	r := runnerFixture(t, engine)

	results, err := r.CreateActions(context.Background(), "main", "web", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []policy.ClientResult{
		{Client: policy.DefaultClientName, Value: "id-main.web"},
	}, results, "only the requested configuration's results surface")

	ops := engine.ops()
	// The attached volume container goes through create, start, wait,
	// preparation (create/start/wait/remove) before the parent container.
	require.GreaterOrEqual(t, len(ops), 9)
	assert.Equal(t, "create main.app_socket", ops[0])
	assert.Equal(t, "start main.app_socket", ops[1])
	assert.Equal(t, "wait main.app_socket", ops[2])
	assert.Equal(t, "create main.app", ops[len(ops)-2])
	assert.Equal(t, "create main.web", ops[len(ops)-1])

	creates := engine.callsFor("create")
	prep := creates[1]
	assert.Contains(t, prep.Kwargs["command"],
		"chown -R 2000:2000 /var/lib/app/socket && chmod -R u=rwX,g=rX,o= /var/lib/app/socket")
	assert.Equal(t, "root", prep.Kwargs["user"])

	removes := engine.callsFor("remove")
	require.Len(t, removes, 1, "the preparation container is removed afterwards")
	assert.Equal(t, prep.Kwargs["name"], removes[0].Container)
}

func TestCreateActions_NoPreparationWithoutUserOrPermissions(t *testing.T) {
	engine2 := newFakeEngine()
	m := cmap.NewContainerMap("solo")
	m.Volumes["scratch"] = "/scratch"
	m.Containers["svc"] = &cmap.ContainerConfiguration{Image: "svc", Attaches: []string{"scratch"}}
	p, err := policy.New(
		map[string]*cmap.ContainerMap{"solo": m},
		map[string]*policy.ClientConfig{
			policy.DefaultClientName: {Factory: func() (policy.Engine, error) { return engine2, nil }},
		},
		policy.DefaultBuilderConfig(),
	)
	require.NoError(t, err)

	_, err = NewRunner(p, nil, nil).CreateActions(context.Background(), "solo", "svc", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"create solo.scratch",
		"start solo.scratch",
		"wait solo.scratch",
		"create solo.svc",
	}, engine2.ops(), "no owner or permission flags means no preparation container")
}

func TestStartActions_LegacyAPIPassesHostConfig(t *testing.T) {
	engine := newFakeEngine()
	engine.apiVersion = "1.14"
	r := runnerFixture(t, engine)

	_, err := r.StartActions(context.Background(), "main", "web", nil, nil)
	require.NoError(t, err)

	starts := engine.callsFor("start")
	target := starts[len(starts)-1]
	assert.Equal(t, "main.web", target.Container)
	assert.Equal(t, []string{"main.app_socket"}, target.Kwargs["volumes_from"])
	assert.Equal(t, policy.Kwargs{"main.app": "app"}, target.Kwargs["links"])
}

func TestStartActions_ModernAPIStartsByName(t *testing.T) {
	engine := newFakeEngine()
	r := runnerFixture(t, engine)

	_, err := r.StartActions(context.Background(), "main", "web", nil, nil)
	require.NoError(t, err)

	starts := engine.callsFor("start")
	target := starts[len(starts)-1]
	assert.Equal(t, policy.Kwargs{"container": "main.web"}, target.Kwargs)
}

func TestStopActions_DependentsFirst(t *testing.T) {
	engine := newFakeEngine()
	r := runnerFixture(t, engine)

	_, err := r.StopActions(context.Background(), "main", "app", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"stop main.web", "stop main.app"}, engine.ops())
}

func TestRemoveActions_PersistentDependentKept(t *testing.T) {
	engine := newFakeEngine()
	yes := true
	m := cmap.NewContainerMap("main")
	m.Volumes["app_socket"] = "/var/lib/app/socket"
	m.Containers["app"] = &cmap.ContainerConfiguration{Image: "app", Attaches: []string{"app_socket"}}
	m.Containers["web"] = &cmap.ContainerConfiguration{
		Image:      "nginx",
		Uses:       []cmap.SharedVolume{{Name: "app_socket"}},
		Persistent: &yes,
	}
	p, err := policy.New(
		map[string]*cmap.ContainerMap{"main": m},
		map[string]*policy.ClientConfig{
			policy.DefaultClientName: {Factory: func() (policy.Engine, error) { return engine, nil }},
		},
		policy.DefaultBuilderConfig(),
	)
	require.NoError(t, err)

	_, err = NewRunner(p, nil, nil).RemoveActions(context.Background(), "main", "app", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"remove main.app",
		"remove main.app_socket",
	}, engine.ops(), "the persistent dependent stays; attached containers go with their parent")
}

func TestRestartActions_TargetOnly(t *testing.T) {
	engine := newFakeEngine()
	r := runnerFixture(t, engine)

	results, err := r.RestartActions(context.Background(), "main", "web", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"restart main.web"}, engine.ops())
	assert.Equal(t, "main.web", results[0].Value)
}

func TestStartupActions_CreateThenStart(t *testing.T) {
	engine := newFakeEngine()
	r := runnerFixture(t, engine)

	results, err := r.StartupActions(context.Background(), "main", "web", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []policy.ClientResult{
		{Client: policy.DefaultClientName, Value: "main.web"},
	}, results)

	ops := engine.ops()
	assert.Contains(t, ops, "create main.web")
	assert.Equal(t, "start main.web", ops[len(ops)-1])
}

func TestCreateActions_PreparationFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.waitCode = 2
	r := runnerFixture(t, engine)

	_, err := r.CreateActions(context.Background(), "main", "app", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreparationFailed)

	removes := engine.callsFor("remove")
	require.Len(t, removes, 1, "the preparation container is removed on failure too")
}

type memoryRecorder struct {
	records []ActionRecord
}

func (r *memoryRecorder) Record(ctx context.Context, rec ActionRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func TestRunner_RecordsActions(t *testing.T) {
	engine := newFakeEngine()
	rec := &memoryRecorder{}
	m := cmap.NewContainerMap("main")
	m.Containers["svc"] = &cmap.ContainerConfiguration{Image: "svc"}
	p, err := policy.New(
		map[string]*cmap.ContainerMap{"main": m},
		map[string]*policy.ClientConfig{
			policy.DefaultClientName: {Factory: func() (policy.Engine, error) { return engine, nil }},
		},
		policy.DefaultBuilderConfig(),
	)
	require.NoError(t, err)

	_, err = NewRunner(p, nil, rec).CreateActions(context.Background(), "main", "svc", nil, nil)
	require.NoError(t, err)
	require.Len(t, rec.records, 1)
	assert.Equal(t, ActionRecord{
		Client:    policy.DefaultClientName,
		Map:       "main",
		Config:    "svc",
		Verb:      "create",
		Container: "main.svc",
	}, rec.records[0])
}
