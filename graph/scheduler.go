package graph

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SchedulerState is the per-session bookkeeping the scheduler needs
// across supersteps: the last channel versions each node observed the
// last time it ran.
type SchedulerState struct {
	VersionsSeen map[string]map[ChannelKind]uint32
}

// NewSchedulerState returns an empty SchedulerState, the state a fresh
// session starts with.
func NewSchedulerState() SchedulerState {
	return SchedulerState{VersionsSeen: make(map[string]map[ChannelKind]uint32)}
}

// ShouldRun reports whether node should run given snapshot, per the
// gating rule: a node runs if any of its observed channel versions is
// below the snapshot's corresponding version, or it has never run.
func (s SchedulerState) ShouldRun(nodeID string, snapshot Snapshot) bool {
	seen, ok := s.VersionsSeen[nodeID]
	if !ok {
		return true
	}
	for _, c := range AllChannelKinds {
		if snapshot.VersionOf(c) > seen[c] {
			return true
		}
	}
	return false
}

// RecordSeen overwrites the versions recorded for node with the
// snapshot's current versions.
func (s SchedulerState) RecordSeen(nodeID string, snapshot Snapshot) {
	s.VersionsSeen[nodeID] = map[ChannelKind]uint32{
		ChannelMessages: snapshot.MessagesVer,
		ChannelExtras:   snapshot.ExtrasVer,
		ChannelErrors:   snapshot.ErrorsVer,
	}
}

// Scheduler launches a single superstep's runnable nodes with bounded
// concurrency.
type Scheduler struct {
	ConcurrencyLimit int
	Metrics          *Metrics
}

// NewScheduler returns a Scheduler with the given concurrency cap,
// falling back to DefaultConcurrencyLimit if limit is non-positive.
func NewScheduler(limit int) Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrencyLimit
	}
	return Scheduler{ConcurrencyLimit: limit}
}

// WithMetrics attaches a metrics collector, returning the scheduler for
// chaining.
func (s Scheduler) WithMetrics(m *Metrics) Scheduler {
	s.Metrics = m
	return s
}

// nodeOutput pairs a ran node with the delta its Run call produced.
type nodeOutput struct {
	node    NodeKind
	partial NodePartial
}

// SchedulerOutcome is the result of one superstep: which nodes ran, in
// launch order, which were skipped, and the collected outputs keyed by
// launch order.
type SchedulerOutcome struct {
	RanNodes     []NodeKind
	SkippedNodes []NodeKind
	Outputs      []nodeOutput
}

// Superstep filters the frontier to a runnable set, launches each
// runnable node concurrently (capped by s.ConcurrencyLimit), and
// collects their outputs. ran_nodes is reported in launch (frontier)
// order regardless of completion order. If any node returns an error,
// Superstep waits for every launched node to finish, then returns the
// first error in launch order and records no versions as seen.
func (s Scheduler) Superstep(
	ctx context.Context,
	sessionID string,
	nodes map[NodeKind]Node,
	frontier []NodeKind,
	state SchedulerState,
	snapshot Snapshot,
	step uint64,
	emit func(scope ErrorScope, message string) error,
) (SchedulerOutcome, error) {
	runnable := make([]NodeKind, 0, len(frontier))
	skipped := make([]NodeKind, 0)
	seen := make(map[NodeKind]bool)

	for _, n := range frontier {
		if seen[n] {
			continue
		}
		seen[n] = true
		if n.IsVirtual() {
			skipped = append(skipped, n)
			continue
		}
		if !state.ShouldRun(n.Encode(), snapshot) {
			skipped = append(skipped, n)
			continue
		}
		runnable = append(runnable, n)
	}

	outcome := SchedulerOutcome{RanNodes: runnable, SkippedNodes: skipped}
	s.Metrics.SetFrontierDepth(len(frontier))
	if len(runnable) == 0 {
		return outcome, nil
	}

	type result struct {
		index   int
		partial NodePartial
		err     error
	}

	sem := make(chan struct{}, s.ConcurrencyLimit)
	results := make(chan result, len(runnable))
	var wg sync.WaitGroup
	var inflight atomic.Int32

	for i, n := range runnable {
		wg.Add(1)
		go func(index int, nodeKind NodeKind) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- result{index: index, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			node, ok := nodes[nodeKind]
			if !ok {
				results <- result{index: index, err: ValidationFailed("no implementation registered for " + nodeKind.Encode())}
				return
			}
			s.Metrics.SetInflightNodes(int(inflight.Add(1)))
			nc := NodeContext{NodeID: nodeKind, Step: step, Emit: emit}
			start := time.Now()
			partial, err := node.Run(ctx, snapshot, nc)
			status := "success"
			if err != nil {
				status = "error"
			}
			s.Metrics.RecordNodeRun(sessionID, nodeKind, time.Since(start), status)
			s.Metrics.SetInflightNodes(int(inflight.Add(-1)))
			results <- result{index: index, partial: partial, err: err}
		}(i, n)
	}

	wg.Wait()
	close(results)

	ordered := make([]result, len(runnable))
	for r := range results {
		ordered[r.index] = r
	}

	for _, r := range ordered {
		if r.err != nil {
			return outcome, &NodeRunError{Node: runnable[r.index], Step: step, Err: r.err}
		}
	}

	outcome.Outputs = make([]nodeOutput, len(ordered))
	for i, r := range ordered {
		outcome.Outputs[i] = nodeOutput{node: runnable[i], partial: r.partial}
		state.RecordSeen(runnable[i].Encode(), snapshot)
	}

	return outcome, nil
}
