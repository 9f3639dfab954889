package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleSessionState() SessionState {
	state := NewVersionedState()
	state.Messages.Payload = append(state.Messages.Payload, NewMessage(RoleUser, "hi"))
	return SessionState{
		State:          state,
		Step:           3,
		Frontier:       []NodeKind{Custom("a"), End},
		Scheduler:      NewScheduler(4),
		SchedulerState: NewSchedulerState(),
	}
}

func TestFromSession_PopulatesIdempotencyKeyAndClonesState(t *testing.T) {
	session := sampleSessionState()
	cp := FromSession("sess-1", session)

	assert.Equal(t, "sess-1", cp.SessionID)
	assert.Equal(t, uint64(3), cp.Step)
	assert.Equal(t, 4, cp.ConcurrencyLimit)
	assert.NotEmpty(t, cp.IdempotencyKey)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, cp.IdempotencyKey)

	cp.State.Messages.Payload[0].Content = "mutated"
	assert.Equal(t, "hi", session.State.Messages.Payload[0].Content)
}

func TestFromStepReport_CarriesReportFields(t *testing.T) {
	session := sampleSessionState()
	report := StepReport{
		Step:            4,
		RanNodes:        []NodeKind{Custom("a")},
		SkippedNodes:    []NodeKind{},
		UpdatedChannels: []string{ChannelMessages.String()},
	}

	cp := FromStepReport("sess-1", session, report)

	assert.Equal(t, []NodeKind{Custom("a")}, cp.RanNodes)
	assert.Equal(t, []string{ChannelMessages.String()}, cp.UpdatedChannels)
}

func TestComputeIdempotencyKey_StableForSameInputs(t *testing.T) {
	session := sampleSessionState()
	cp1 := FromSession("sess-1", session)
	cp2 := FromSession("sess-1", session)
	assert.Equal(t, cp1.IdempotencyKey, cp2.IdempotencyKey)
}

func TestComputeIdempotencyKey_IgnoresFrontierOrder(t *testing.T) {
	a := sampleSessionState()
	a.Frontier = []NodeKind{Custom("a"), End}
	b := sampleSessionState()
	b.Frontier = []NodeKind{End, Custom("a")}

	cpA := FromSession("sess-1", a)
	cpB := FromSession("sess-1", b)
	assert.Equal(t, cpA.IdempotencyKey, cpB.IdempotencyKey)
}

func TestComputeIdempotencyKey_DiffersOnStateChange(t *testing.T) {
	a := sampleSessionState()
	b := sampleSessionState()
	b.State.Messages.Payload = append(b.State.Messages.Payload, NewMessage(RoleUser, "more"))

	cpA := FromSession("sess-1", a)
	cpB := FromSession("sess-1", b)
	assert.NotEqual(t, cpA.IdempotencyKey, cpB.IdempotencyKey)
}

func TestRestoreSessionState_RebuildsFromCheckpoint(t *testing.T) {
	session := sampleSessionState()
	session.SchedulerState.VersionsSeen["Custom:a"] = map[ChannelKind]uint32{ChannelMessages: 2}
	cp := FromSession("sess-1", session)

	restored := RestoreSessionState(cp)

	assert.Equal(t, session.Step, restored.Step)
	assert.Equal(t, session.Frontier, restored.Frontier)
	assert.Equal(t, 4, restored.Scheduler.ConcurrencyLimit)
	assert.Equal(t, uint32(2), restored.SchedulerState.VersionsSeen["Custom:a"][ChannelMessages])

	restored.Frontier[0] = End
	assert.Equal(t, Custom("a"), session.Frontier[0])
}

func TestRestoreSessionState_NilMetricsUntilReattached(t *testing.T) {
	session := sampleSessionState()
	cp := FromSession("sess-1", session)
	restored := RestoreSessionState(cp)
	assert.Nil(t, restored.Scheduler.Metrics)
}

