// Package store provides Checkpointer implementations for persisting and
// resuming session state.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/weave-run/weavegraph-go/graph"
)

// MemoryCheckpointer keeps the latest checkpoint for each session in
// memory. Data does not survive process restart; intended for testing,
// development, and short-lived sessions.
type MemoryCheckpointer struct {
	mu      sync.RWMutex
	latest  map[string]graph.Checkpoint
	history map[string][]graph.Checkpoint
}

// NewMemoryCheckpointer returns an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{
		latest:  make(map[string]graph.Checkpoint),
		history: make(map[string][]graph.Checkpoint),
	}
}

// Save stores checkpoint as the session's latest, appending to history.
// Out-of-order writes (a lower step than the current latest) are kept in
// history but never regress the latest pointer.
func (m *MemoryCheckpointer) Save(_ context.Context, checkpoint graph.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[checkpoint.SessionID] = append(m.history[checkpoint.SessionID], checkpoint)

	current, ok := m.latest[checkpoint.SessionID]
	if !ok || checkpoint.Step >= current.Step {
		m.latest[checkpoint.SessionID] = checkpoint
	}
	return nil
}

// SaveWithConcurrencyCheck saves checkpoint only if the session's current
// latest step equals expectedLastStep.
func (m *MemoryCheckpointer) SaveWithConcurrencyCheck(_ context.Context, checkpoint graph.Checkpoint, expectedLastStep uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.latest[checkpoint.SessionID]
	if ok && current.Step != expectedLastStep {
		return graph.BackendError("concurrent write detected", nil)
	}
	if !ok && expectedLastStep != 0 {
		return graph.BackendError("concurrent write detected", nil)
	}

	m.history[checkpoint.SessionID] = append(m.history[checkpoint.SessionID], checkpoint)
	if !ok || checkpoint.Step >= current.Step {
		m.latest[checkpoint.SessionID] = checkpoint
	}
	return nil
}

// LoadLatest returns the highest-step checkpoint saved for sessionID.
func (m *MemoryCheckpointer) LoadLatest(_ context.Context, sessionID string) (graph.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.latest[sessionID]
	if !ok {
		return graph.Checkpoint{}, graph.NotFoundError(sessionID)
	}
	return cp, nil
}

// ListSessions returns every session id with at least one saved checkpoint,
// sorted for deterministic output.
func (m *MemoryCheckpointer) ListSessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.latest))
	for id := range m.latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var (
	_ graph.Checkpointer            = (*MemoryCheckpointer)(nil)
	_ graph.ConcurrencyCheckpointer = (*MemoryCheckpointer)(nil)
)
