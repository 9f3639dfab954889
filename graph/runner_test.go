package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckpointer struct {
	mu     sync.Mutex
	latest map[string]Checkpoint
	saves  int
}

func newFakeCheckpointer() *fakeCheckpointer {
	return &fakeCheckpointer{latest: make(map[string]Checkpoint)}
}

func (f *fakeCheckpointer) Save(_ context.Context, cp Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.latest[cp.SessionID] = cp
	return nil
}

func (f *fakeCheckpointer) LoadLatest(_ context.Context, sessionID string) (Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp, ok := f.latest[sessionID]
	if !ok {
		return Checkpoint{}, NotFoundError(sessionID)
	}
	return cp, nil
}

func (f *fakeCheckpointer) ListSessions(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.latest))
	for k := range f.latest {
		out = append(out, k)
	}
	return out, nil
}

var _ Checkpointer = (*fakeCheckpointer)(nil)

func appendingNode(content string) Node {
	return NodeFunc(func(_ context.Context, _ Snapshot, _ NodeContext) (NodePartial, error) {
		return NodePartial{Messages: []Message{NewMessage(RoleAssistant, content)}}, nil
	})
}

func simpleLinearApp(t *testing.T) *App {
	t.Helper()
	app, err := NewGraphBuilder().
		AddNode(Custom("a"), appendingNode("from-a")).
		AddEdge(Start, Custom("a")).
		AddEdge(Custom("a"), End).
		Compile()
	require.NoError(t, err)
	return app
}

func TestCreateSession_FreshSeedsStartFrontierAndCheckpoints(t *testing.T) {
	app := simpleLinearApp(t)
	cps := newFakeCheckpointer()
	runner := NewSessionRunner(app, cps, nil)

	init, err := runner.CreateSession(context.Background(), "sess-1", NewVersionedState())
	require.NoError(t, err)
	assert.Equal(t, SessionFresh, init.Kind)
	assert.Equal(t, 1, cps.saves)

	cp, err := cps.LoadLatest(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []NodeKind{Start}, cp.Frontier)
}

func TestCreateSession_ResumesFromExistingCheckpoint(t *testing.T) {
	app := simpleLinearApp(t)
	cps := newFakeCheckpointer()

	seedState := NewVersionedState()
	seedSession := SessionState{
		State:          seedState,
		Step:           2,
		Frontier:       []NodeKind{Custom("a")},
		Scheduler:      NewScheduler(app.RuntimeConfig.ConcurrencyLimit),
		SchedulerState: NewSchedulerState(),
	}
	require.NoError(t, cps.Save(context.Background(), FromSession("sess-1", seedSession)))

	runner := NewSessionRunner(app, cps, nil)
	init, err := runner.CreateSession(context.Background(), "sess-1", NewVersionedState())
	require.NoError(t, err)
	assert.Equal(t, SessionResumed, init.Kind)
	assert.Equal(t, uint64(2), init.CheckpointStep)
}

func TestRunStep_DrivesSingleNodeToCompletion(t *testing.T) {
	app := simpleLinearApp(t)
	cps := newFakeCheckpointer()
	runner := NewSessionRunner(app, cps, nil)
	ctx := context.Background()

	_, err := runner.CreateSession(ctx, "sess-1", NewVersionedState())
	require.NoError(t, err)

	first, err := runner.RunStep(ctx, "sess-1", StepOptions{})
	require.NoError(t, err)
	require.NotNil(t, first.Report)
	assert.Equal(t, []NodeKind{Custom("a")}, first.Report.NextFrontier)
	assert.False(t, first.Report.Completed)

	second, err := runner.RunStep(ctx, "sess-1", StepOptions{})
	require.NoError(t, err)
	require.NotNil(t, second.Report)
	assert.Equal(t, []NodeKind{End}, second.Report.NextFrontier)
	assert.True(t, second.Report.Completed)
	assert.Contains(t, second.Report.RanNodes, Custom("a"))
}

func TestRunStep_UnknownSessionErrors(t *testing.T) {
	app := simpleLinearApp(t)
	runner := NewSessionRunner(app, newFakeCheckpointer(), nil)

	_, err := runner.RunStep(context.Background(), "ghost", StepOptions{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRunStep_InterruptBeforeIgnoresVirtualStart(t *testing.T) {
	app := simpleLinearApp(t)
	runner := NewSessionRunner(app, newFakeCheckpointer(), nil)
	ctx := context.Background()
	_, err := runner.CreateSession(ctx, "sess-1", NewVersionedState())
	require.NoError(t, err)

	result, err := runner.RunStep(ctx, "sess-1", StepOptions{InterruptBefore: []NodeKind{Start}})
	require.NoError(t, err)
	assert.Nil(t, result.Paused)
	require.NotNil(t, result.Report)
}

func TestRunStep_InterruptBeforeMatchingCustomNodePauses(t *testing.T) {
	app := simpleLinearApp(t)
	runner := NewSessionRunner(app, newFakeCheckpointer(), nil)
	ctx := context.Background()
	_, err := runner.CreateSession(ctx, "sess-1", NewVersionedState())
	require.NoError(t, err)

	_, err = runner.RunStep(ctx, "sess-1", StepOptions{})
	require.NoError(t, err)

	result, err := runner.RunStep(ctx, "sess-1", StepOptions{InterruptBefore: []NodeKind{Custom("a")}})
	require.NoError(t, err)
	require.NotNil(t, result.Paused)
	assert.Equal(t, PausedBeforeNode, result.Paused.Reason.Kind)
	assert.Equal(t, Custom("a"), result.Paused.Reason.Node)
}

func TestRunStep_InterruptAfterPausesPostCheckpoint(t *testing.T) {
	app := simpleLinearApp(t)
	cps := newFakeCheckpointer()
	runner := NewSessionRunner(app, cps, nil)
	ctx := context.Background()
	_, err := runner.CreateSession(ctx, "sess-1", NewVersionedState())
	require.NoError(t, err)
	_, err = runner.RunStep(ctx, "sess-1", StepOptions{})
	require.NoError(t, err)

	savesBefore := cps.saves
	result, err := runner.RunStep(ctx, "sess-1", StepOptions{InterruptAfter: []NodeKind{Custom("a")}})
	require.NoError(t, err)
	require.NotNil(t, result.Paused)
	assert.Equal(t, PausedAfterNode, result.Paused.Reason.Kind)
	assert.Greater(t, cps.saves, savesBefore)
}

func TestRunStep_InterruptEachStepPausesEveryStep(t *testing.T) {
	app := simpleLinearApp(t)
	runner := NewSessionRunner(app, newFakeCheckpointer(), nil)
	ctx := context.Background()
	_, err := runner.CreateSession(ctx, "sess-1", NewVersionedState())
	require.NoError(t, err)

	result, err := runner.RunStep(ctx, "sess-1", StepOptions{InterruptEachStep: true})
	require.NoError(t, err)
	require.NotNil(t, result.Paused)
	assert.Equal(t, PausedAfterStep, result.Paused.Reason.Kind)
	assert.Equal(t, uint64(1), result.Paused.Reason.Step)
}

func TestRunUntilComplete_RunsToCompletion(t *testing.T) {
	app := simpleLinearApp(t)
	runner := NewSessionRunner(app, newFakeCheckpointer(), nil)
	ctx := context.Background()
	_, err := runner.CreateSession(ctx, "sess-1", NewVersionedState())
	require.NoError(t, err)

	result, err := runner.RunUntilComplete(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.True(t, result.Report.Completed)
	assert.Equal(t, []NodeKind{End}, result.Report.NextFrontier)
}


func fixtureRunner(app *App) *SessionRunner {
	return &SessionRunner{app: app}
}

func TestComputeNextFrontier_ReplaceOverridesStaticEdges(t *testing.T) {
	app := &App{
		Nodes: map[NodeKind]Node{Custom("a"): appendingNode("a"), Custom("b"): appendingNode("b")},
		Edges: map[NodeKind][]NodeKind{Custom("a"): {End}},
	}
	runner := fixtureRunner(app)
	outcome := SchedulerOutcome{Outputs: []nodeOutput{
		{node: Custom("a"), partial: NodePartial{Frontier: []FrontierCommand{Replace(NodeRoute{Kind: Custom("b")})}}},
	}}

	next := runner.computeNextFrontier([]NodeKind{Custom("a")}, outcome, Snapshot{})
	assert.Equal(t, []NodeKind{Custom("b")}, next)
}

func TestComputeNextFrontier_AppendLayersOntoStaticEdges(t *testing.T) {
	app := &App{
		Nodes: map[NodeKind]Node{Custom("a"): appendingNode("a"), Custom("b"): appendingNode("b")},
		Edges: map[NodeKind][]NodeKind{Custom("a"): {End}},
	}
	runner := fixtureRunner(app)
	outcome := SchedulerOutcome{Outputs: []nodeOutput{
		{node: Custom("a"), partial: NodePartial{Frontier: []FrontierCommand{Append(NodeRoute{Kind: Custom("b")})}}},
	}}

	next := runner.computeNextFrontier([]NodeKind{Custom("a")}, outcome, Snapshot{})
	assert.ElementsMatch(t, []NodeKind{End, Custom("b")}, next)
}

func TestComputeNextFrontier_FiltersUnknownCustomTargets(t *testing.T) {
	app := &App{
		Nodes: map[NodeKind]Node{Custom("a"): appendingNode("a")},
		Edges: map[NodeKind][]NodeKind{},
	}
	runner := fixtureRunner(app)
	outcome := SchedulerOutcome{Outputs: []nodeOutput{
		{node: Custom("a"), partial: NodePartial{Frontier: []FrontierCommand{Replace(NodeRoute{Kind: Custom("ghost")})}}},
	}}

	next := runner.computeNextFrontier([]NodeKind{Custom("a")}, outcome, Snapshot{})
	assert.Empty(t, next)
}

func TestComputeNextFrontier_DropsLiteralStartRoute(t *testing.T) {
	app := &App{
		Nodes: map[NodeKind]Node{Custom("a"): appendingNode("a")},
		Edges: map[NodeKind][]NodeKind{},
	}
	runner := fixtureRunner(app)
	outcome := SchedulerOutcome{Outputs: []nodeOutput{
		{node: Custom("a"), partial: NodePartial{Frontier: []FrontierCommand{Replace(NodeRoute{Kind: Start})}}},
	}}

	next := runner.computeNextFrontier([]NodeKind{Custom("a")}, outcome, Snapshot{})
	assert.Empty(t, next)
}

func TestComputeNextFrontier_DedupsAcrossOutputs(t *testing.T) {
	app := &App{
		Nodes: map[NodeKind]Node{Custom("a"): appendingNode("a"), Custom("b"): appendingNode("b")},
		Edges: map[NodeKind][]NodeKind{Custom("a"): {End}, Custom("b"): {End}},
	}
	runner := fixtureRunner(app)
	outcome := SchedulerOutcome{Outputs: []nodeOutput{
		{node: Custom("a"), partial: NodePartial{}},
		{node: Custom("b"), partial: NodePartial{}},
	}}

	next := runner.computeNextFrontier([]NodeKind{Custom("a"), Custom("b")}, outcome, Snapshot{})
	assert.Equal(t, []NodeKind{End}, next)
}

func TestComputeNextFrontier_BootstrapsFromStart(t *testing.T) {
	app := &App{
		Nodes: map[NodeKind]Node{Custom("a"): appendingNode("a")},
		Edges: map[NodeKind][]NodeKind{Start: {Custom("a")}},
	}
	runner := fixtureRunner(app)

	next := runner.computeNextFrontier([]NodeKind{Start}, SchedulerOutcome{}, Snapshot{})
	assert.Equal(t, []NodeKind{Custom("a")}, next)
}

func TestComputeNextFrontier_ConditionalEdgeContributesRoutes(t *testing.T) {
	app := &App{
		Nodes: map[NodeKind]Node{Custom("a"): appendingNode("a"), Custom("b"): appendingNode("b")},
		Edges: map[NodeKind][]NodeKind{},
		ConditionalEdges: []ConditionalEdge{
			{From: Custom("a"), Predicate: func(Snapshot) []string { return []string{"Custom:b"} }},
		},
	}
	runner := fixtureRunner(app)
	outcome := SchedulerOutcome{Outputs: []nodeOutput{{node: Custom("a"), partial: NodePartial{}}}}

	next := runner.computeNextFrontier([]NodeKind{Custom("a")}, outcome, Snapshot{})
	assert.Equal(t, []NodeKind{Custom("b")}, next)
}

func TestIsComplete(t *testing.T) {
	assert.True(t, isComplete(nil))
	assert.True(t, isComplete([]NodeKind{End}))
	assert.False(t, isComplete([]NodeKind{End, Custom("a")}))
	assert.False(t, isComplete([]NodeKind{Custom("a")}))
}

func TestNonVirtual_FiltersStartAndEnd(t *testing.T) {
	out := nonVirtual([]NodeKind{Start, Custom("a"), End})
	assert.Equal(t, []NodeKind{Custom("a")}, out)
}

func TestMatchingNode_ReturnsFirstCandidateMatch(t *testing.T) {
	found := matchingNode([]NodeKind{Custom("b"), Custom("a")}, []NodeKind{Custom("a"), Custom("b")})
	require.NotNil(t, found)
	assert.Equal(t, Custom("a"), *found)

	assert.Nil(t, matchingNode([]NodeKind{Custom("z")}, []NodeKind{Custom("a")}))
}
