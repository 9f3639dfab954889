package graph

import (
	"context"
	"fmt"
	"sync"
)

// SessionState is everything that must be persisted across steps to
// resume a session: the versioned state, current step, execution
// frontier, scheduler configuration, and scheduler gating state.
type SessionState struct {
	State          VersionedState
	Step           uint64
	Frontier       []NodeKind
	Scheduler      Scheduler
	SchedulerState SchedulerState
}

// SessionInitKind reports whether CreateSession built a fresh session or
// resumed one from a checkpoint.
type SessionInitKind uint8

const (
	SessionFresh SessionInitKind = iota
	SessionResumed
)

// SessionInit is returned by CreateSession.
type SessionInit struct {
	Kind           SessionInitKind
	CheckpointStep uint64 // meaningful only when Kind == SessionResumed
}

// StepReport summarizes one completed superstep.
type StepReport struct {
	Step            uint64
	RanNodes        []NodeKind
	SkippedNodes    []NodeKind
	UpdatedChannels []string
	NextFrontier    []NodeKind
	MessagesVer     uint32
	ExtrasVer       uint32
	ErrorsVer       uint32
	Completed       bool
}

// StepOptions controls interrupt behavior for a single RunStep call,
// enabling human-in-the-loop and single-step debugging patterns.
type StepOptions struct {
	InterruptBefore   []NodeKind
	InterruptAfter    []NodeKind
	InterruptEachStep bool
}

// PausedReasonKind discriminates why a step paused instead of completing.
type PausedReasonKind uint8

const (
	PausedBeforeNode PausedReasonKind = iota
	PausedAfterNode
	PausedAfterStep
)

// PausedReason names why execution paused, carrying the relevant node or
// step number.
type PausedReason struct {
	Kind PausedReasonKind
	Node NodeKind // meaningful for PausedBeforeNode / PausedAfterNode
	Step uint64   // meaningful for PausedAfterStep
}

// PausedReport carries the full session state at the point execution
// paused, so a caller can inspect, modify, or resume it.
type PausedReport struct {
	SessionState SessionState
	Reason       PausedReason
}

// StepResult is either a completed StepReport or a PausedReport.
type StepResult struct {
	Report *StepReport
	Paused *PausedReport
}

// SessionRunner drives sessions against a single compiled App, owning
// each session's state exclusively and persisting it through a
// Checkpointer after every step.
type SessionRunner struct {
	app          *App
	checkpointer Checkpointer
	emit         func(scope ErrorScope, message string) error
	metrics      *Metrics

	mu       sync.Mutex
	sessions map[string]*SessionState
}

// NewSessionRunner builds a runner for app, persisting through
// checkpointer and routing node event emissions through emit (which may
// be nil, in which case emissions are dropped).
func NewSessionRunner(app *App, checkpointer Checkpointer, emit func(scope ErrorScope, message string) error) *SessionRunner {
	if emit == nil {
		emit = func(ErrorScope, string) error { return nil }
	}
	return &SessionRunner{
		app:          app,
		checkpointer: checkpointer,
		emit:         emit,
		sessions:     make(map[string]*SessionState),
	}
}

// WithMetrics attaches a metrics collector; every session's scheduler
// reports through it and checkpoint operations are counted by outcome.
func (r *SessionRunner) WithMetrics(m *Metrics) *SessionRunner {
	r.metrics = m
	return r
}

// CreateSession resolves a session by id: if the checkpointer has a
// checkpoint for id, the session is resumed from it; otherwise a fresh
// session is built, seeded with initialState, and checkpointed at step 0.
func (r *SessionRunner) CreateSession(ctx context.Context, id string, initialState VersionedState) (SessionInit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cp, err := r.checkpointer.LoadLatest(ctx, id); err == nil {
		r.metrics.IncrementCheckpointOp("load_latest", "ok")
		session := RestoreSessionState(cp)
		session.Scheduler = session.Scheduler.WithMetrics(r.metrics)
		r.sessions[id] = &session
		return SessionInit{Kind: SessionResumed, CheckpointStep: cp.Step}, nil
	}

	session := &SessionState{
		State:          initialState,
		Step:           0,
		Frontier:       []NodeKind{Start},
		Scheduler:      NewScheduler(r.app.RuntimeConfig.ConcurrencyLimit).WithMetrics(r.metrics),
		SchedulerState: NewSchedulerState(),
	}
	r.sessions[id] = session

	cp := FromSession(id, *session)
	if err := r.checkpointer.Save(ctx, cp); err != nil {
		r.metrics.IncrementCheckpointOp("save", "error")
		return SessionInit{}, err
	}
	r.metrics.IncrementCheckpointOp("save", "ok")
	return SessionInit{Kind: SessionFresh}, nil
}

// RunStep executes a single superstep for session id, honoring opts'
// interrupt configuration.
func (r *SessionRunner) RunStep(ctx context.Context, id string, opts StepOptions) (StepResult, error) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return StepResult{}, ErrSessionNotFound
	}
	if isComplete(session.Frontier) {
		return StepResult{}, ErrStepUnderflow
	}

	if before := matchingNode(opts.InterruptBefore, nonVirtual(session.Frontier)); before != nil {
		return StepResult{Paused: &PausedReport{
			SessionState: cloneSessionState(*session),
			Reason:       PausedReason{Kind: PausedBeforeNode, Node: *before},
		}}, nil
	}

	snapshot := session.State.Snapshot()
	nextStep := session.Step + 1

	outcome, err := session.Scheduler.Superstep(ctx, id, r.app.Nodes, session.Frontier, session.SchedulerState, snapshot, nextStep, r.emit)
	if err != nil {
		if ctx.Err() != nil {
			return StepResult{}, fmt.Errorf("%w: %w", ErrSessionCancelled, err)
		}
		return StepResult{}, err
	}

	partials := make([]NodePartial, len(outcome.Outputs))
	for i, o := range outcome.Outputs {
		partials[i] = o.partial
	}

	updatedChannels, err := ApplyBarrier(r.app.Reducers, &session.State, outcome.RanNodes, partials, id, r.metrics)
	if err != nil {
		return StepResult{}, err
	}

	postSnapshot := session.State.Snapshot()
	nextFrontier := r.computeNextFrontier(session.Frontier, outcome, postSnapshot)

	session.Step = nextStep
	session.Frontier = nextFrontier

	report := StepReport{
		Step:            nextStep,
		RanNodes:        outcome.RanNodes,
		SkippedNodes:    outcome.SkippedNodes,
		UpdatedChannels: updatedChannels,
		NextFrontier:    nextFrontier,
		MessagesVer:     postSnapshot.MessagesVer,
		ExtrasVer:       postSnapshot.ExtrasVer,
		ErrorsVer:       postSnapshot.ErrorsVer,
		Completed:       isComplete(nextFrontier),
	}

	cp := FromStepReport(id, *session, report)
	if err := r.checkpointer.Save(ctx, cp); err != nil {
		r.metrics.IncrementCheckpointOp("save", "error")
		return StepResult{}, err
	}
	r.metrics.IncrementCheckpointOp("save", "ok")

	if after := matchingNode(opts.InterruptAfter, outcome.RanNodes); after != nil {
		return StepResult{Paused: &PausedReport{
			SessionState: cloneSessionState(*session),
			Reason:       PausedReason{Kind: PausedAfterNode, Node: *after},
		}}, nil
	}
	if opts.InterruptEachStep {
		return StepResult{Paused: &PausedReport{
			SessionState: cloneSessionState(*session),
			Reason:       PausedReason{Kind: PausedAfterStep, Step: nextStep},
		}}, nil
	}

	return StepResult{Report: &report}, nil
}

// RunUntilComplete repeatedly calls RunStep with empty StepOptions until
// the session completes or a Paused result surfaces, returning the final
// StepResult either way.
func (r *SessionRunner) RunUntilComplete(ctx context.Context, id string) (StepResult, error) {
	for {
		result, err := r.RunStep(ctx, id, StepOptions{})
		if err != nil {
			return StepResult{}, err
		}
		if result.Paused != nil {
			return result, nil
		}
		if result.Report.Completed {
			return result, nil
		}
	}
}

// computeNextFrontier implements the step-6 frontier computation:
// for each ran node, Replace wins over the static edges (last Replace
// wins if multiple are present in a partial); otherwise the static
// edges plus decoded conditional-edge targets apply, with Append
// commands layered on top. Start's own static/conditional edges are
// folded in on the bootstrap step (when Start was part of this step's
// frontier). Unknown custom targets are dropped; duplicates are removed
// preserving first occurrence.
func (r *SessionRunner) computeNextFrontier(frontier []NodeKind, outcome SchedulerOutcome, postSnapshot Snapshot) []NodeKind {
	var next []NodeKind
	seen := make(map[NodeKind]bool)
	add := func(n NodeKind) {
		if seen[n] {
			return
		}
		if n.IsEnd() {
			seen[n] = true
			next = append(next, n)
			return
		}
		if n.IsStart() {
			return
		}
		if n.IsCustom() {
			if _, ok := r.app.Nodes[n]; !ok {
				return
			}
		}
		seen[n] = true
		next = append(next, n)
	}

	for _, o := range outcome.Outputs {
		n := o.node
		var replace []NodeKind
		hasReplace := false
		for _, cmd := range o.partial.Frontier {
			if cmd.Kind == FrontierReplace {
				replace = decodeRoutes(cmd.Routes)
				hasReplace = true
			}
		}
		if hasReplace {
			for _, t := range replace {
				add(t)
			}
			continue
		}

		for _, t := range r.defaultRoutesFor(n, postSnapshot) {
			add(t)
		}
		for _, cmd := range o.partial.Frontier {
			if cmd.Kind == FrontierAppend {
				for _, t := range decodeRoutes(cmd.Routes) {
					add(t)
				}
			}
		}
	}

	for _, n := range frontier {
		if n.IsStart() {
			for _, t := range r.defaultRoutesFor(Start, postSnapshot) {
				add(t)
			}
		}
	}

	return next
}

func decodeRoutes(routes []NodeRoute) []NodeKind {
	out := make([]NodeKind, len(routes))
	for i, r := range routes {
		out[i] = r.Kind
	}
	return out
}

// defaultRoutesFor returns a node's static edges union the decoded
// results of every conditional edge originating at it, evaluated
// against snapshot.
func (r *SessionRunner) defaultRoutesFor(n NodeKind, snapshot Snapshot) []NodeKind {
	out := append([]NodeKind(nil), r.app.Edges[n]...)
	for _, ce := range r.app.ConditionalEdges {
		if ce.From == n {
			out = append(out, ce.evaluate(snapshot)...)
		}
	}
	return out
}

// isComplete reports whether frontier signals session completion: it is
// empty, or it contains only End.
func isComplete(frontier []NodeKind) bool {
	if len(frontier) == 0 {
		return true
	}
	for _, n := range frontier {
		if !n.IsEnd() {
			return false
		}
	}
	return true
}

func nonVirtual(nodes []NodeKind) []NodeKind {
	out := make([]NodeKind, 0, len(nodes))
	for _, n := range nodes {
		if !n.IsVirtual() {
			out = append(out, n)
		}
	}
	return out
}

func matchingNode(set []NodeKind, candidates []NodeKind) *NodeKind {
	for _, c := range candidates {
		for _, s := range set {
			if c == s {
				found := c
				return &found
			}
		}
	}
	return nil
}

func cloneSessionState(s SessionState) SessionState {
	return SessionState{
		State:          s.State.Clone(),
		Step:           s.Step,
		Frontier:       append([]NodeKind(nil), s.Frontier...),
		Scheduler:      s.Scheduler,
		SchedulerState: SchedulerState{VersionsSeen: cloneVersionsSeen(s.SchedulerState.VersionsSeen)},
	}
}
