package graph

import (
	"errors"
	"reflect"
)

// ApplyBarrier merges ranNodes' partials into state in launch order,
// dispatching each through the reducer registry, then bumps the
// version of every channel the merge actually changed. Preconditions:
// len(ranNodes) == len(partials), and both are given in canonical
// (launch) order.
func ApplyBarrier(registry *ReducerRegistry, state *VersionedState, ranNodes []NodeKind, partials []NodePartial, sessionID string, metrics *Metrics) ([]string, error) {
	beforeMessagesLen := len(state.Messages.Payload)
	beforeErrorsLen := len(state.Errors.Payload)
	beforeExtras := snapshotExtrasForDiff(state.Extras.Payload)

	for _, partial := range partials {
		if err := registry.ApplyAll(state, partial); err != nil {
			var unknown *ReducerUnknownChannelError
			if errors.As(err, &unknown) {
				metrics.IncrementMergeConflicts(sessionID, unknown.Channel)
			}
			return nil, err
		}
	}

	var updated []string
	if len(state.Messages.Payload) > beforeMessagesLen {
		state.Messages.Version = bumpVersion(state.Messages.Version)
		updated = append(updated, ChannelMessages.String())
	}
	if extrasChanged(beforeExtras, state.Extras.Payload) {
		state.Extras.Version = bumpVersion(state.Extras.Version)
		updated = append(updated, ChannelExtras.String())
	}
	if len(state.Errors.Payload) > beforeErrorsLen {
		state.Errors.Version = bumpVersion(state.Errors.Version)
		updated = append(updated, ChannelErrors.String())
	}

	return updated, nil
}

func snapshotExtrasForDiff(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// extrasChanged reports whether at least one key was inserted or had its
// value change between before and after.
func extrasChanged(before, after map[string]any) bool {
	if len(after) != len(before) {
		return true
	}
	for k, v := range after {
		bv, ok := before[k]
		if !ok || !reflect.DeepEqual(bv, v) {
			return true
		}
	}
	return false
}
