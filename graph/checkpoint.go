package graph

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Checkpoint is a durable snapshot of session execution state at a
// barrier boundary: enough to fully resume a session, plus the
// execution metadata of the step that produced it.
type Checkpoint struct {
	SessionID        string
	Step             uint64
	State            VersionedState
	Frontier         []NodeKind
	VersionsSeen     map[string]map[ChannelKind]uint32
	ConcurrencyLimit int
	CreatedAt        time.Time
	RanNodes         []NodeKind
	SkippedNodes     []NodeKind
	UpdatedChannels  []string
	IdempotencyKey   string
	// Label optionally names a manually requested checkpoint, distinct
	// from the automatic per-step checkpoints.
	Label string
}

// FromSession builds a Checkpoint from a session's current state, with
// no step-execution metadata (used for the initial, step-0 checkpoint).
func FromSession(sessionID string, session SessionState) Checkpoint {
	cp := Checkpoint{
		SessionID:        sessionID,
		Step:             session.Step,
		State:            session.State.Clone(),
		Frontier:         append([]NodeKind(nil), session.Frontier...),
		VersionsSeen:     cloneVersionsSeen(session.SchedulerState.VersionsSeen),
		ConcurrencyLimit: session.Scheduler.ConcurrencyLimit,
		CreatedAt:        time.Now().UTC(),
	}
	cp.IdempotencyKey = computeIdempotencyKey(sessionID, session.Step, cp.Frontier, cp.State)
	return cp
}

// FromStepReport builds a Checkpoint from a session's post-step state
// and the report of what that step did.
func FromStepReport(sessionID string, session SessionState, report StepReport) Checkpoint {
	cp := Checkpoint{
		SessionID:        sessionID,
		Step:             session.Step,
		State:            session.State.Clone(),
		Frontier:         append([]NodeKind(nil), session.Frontier...),
		VersionsSeen:     cloneVersionsSeen(session.SchedulerState.VersionsSeen),
		ConcurrencyLimit: session.Scheduler.ConcurrencyLimit,
		CreatedAt:        time.Now().UTC(),
		RanNodes:         report.RanNodes,
		SkippedNodes:     report.SkippedNodes,
		UpdatedChannels:  report.UpdatedChannels,
	}
	cp.IdempotencyKey = computeIdempotencyKey(sessionID, session.Step, cp.Frontier, cp.State)
	return cp
}

func cloneVersionsSeen(in map[string]map[ChannelKind]uint32) map[string]map[ChannelKind]uint32 {
	out := make(map[string]map[ChannelKind]uint32, len(in))
	for k, v := range in {
		inner := make(map[ChannelKind]uint32, len(v))
		for ck, cv := range v {
			inner[ck] = cv
		}
		out[k] = inner
	}
	return out
}

// computeIdempotencyKey hashes (session id, step, sorted frontier,
// state) into a stable, collision-resistant identifier for a checkpoint
// write. The durable backends store it with each row; they do not compare
// it on write, and their optimistic-concurrency check uses the step number.
func computeIdempotencyKey(sessionID string, step uint64, frontier []NodeKind, state VersionedState) string {
	h := sha256.New()
	h.Write([]byte(sessionID))

	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, step)
	h.Write(stepBytes)

	sorted := make([]NodeKind, len(frontier))
	copy(sorted, frontier)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Encode() < sorted[j].Encode() })
	for _, n := range sorted {
		h.Write([]byte(n.Encode()))
	}

	if stateBytes, err := json.Marshal(state); err == nil {
		h.Write(stateBytes)
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Checkpointer persists and restores session checkpoints. Every
// implementation must be safe for concurrent use; operations are
// idempotent.
type Checkpointer interface {
	// Save replaces or inserts the latest checkpoint for
	// checkpoint.SessionID. Implementations may additionally retain
	// step history.
	Save(ctx context.Context, checkpoint Checkpoint) error
	// LoadLatest returns the highest-step checkpoint for sessionID, or
	// a CheckpointError wrapping CheckpointNotFound if none exists.
	LoadLatest(ctx context.Context, sessionID string) (Checkpoint, error)
	// ListSessions enumerates known session ids.
	ListSessions(ctx context.Context) ([]string, error)
}

// ConcurrencyCheckpointer is implemented by durable backends that
// support optimistic-concurrency writes.
type ConcurrencyCheckpointer interface {
	Checkpointer
	// SaveWithConcurrencyCheck saves checkpoint only if the backend's
	// current max step for the session equals expectedLastStep,
	// failing otherwise. Out-of-order writes are recorded in history
	// but never regress the latest pointer.
	SaveWithConcurrencyCheck(ctx context.Context, checkpoint Checkpoint, expectedLastStep uint64) error
}

// RestoreSessionState rebuilds a SessionState from a checkpoint with no
// further I/O.
func RestoreSessionState(cp Checkpoint) SessionState {
	return SessionState{
		State:          cp.State.Clone(),
		Step:           cp.Step,
		Frontier:       append([]NodeKind(nil), cp.Frontier...),
		Scheduler:      NewScheduler(cp.ConcurrencyLimit),
		SchedulerState: SchedulerState{VersionsSeen: cloneVersionsSeen(cp.VersionsSeen)},
	}
}
