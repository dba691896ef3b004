package form

import (
	"iter"

	"github.com/a3tai/textricator/internal/record"
)

// StateValue is one contiguous run of text accepted into one state.
type StateValue struct {
	Page    int
	StateID string
	State   *State
	Values  []record.Value
	// SplitContinuation marks the second and later parts of a state value
	// divided across value types. It never starts a record.
	SplitContinuation bool
}

// dropSkipped removes state values whose state is marked skip.
func dropSkipped(seq iter.Seq2[StateValue, error]) iter.Seq2[StateValue, error] {
	return func(yield func(StateValue, error) bool) {
		for sv, err := range seq {
			if err == nil && sv.State != nil && sv.State.Skip {
				continue
			}
			if !yield(sv, err) {
				return
			}
		}
	}
}

// mergeAdjacent joins neighbouring state values of the same state, keeping
// the page of the first.
func mergeAdjacent(seq iter.Seq2[StateValue, error]) iter.Seq2[StateValue, error] {
	return func(yield func(StateValue, error) bool) {
		var (
			pending StateValue
			has     bool
		)
		for sv, err := range seq {
			if err != nil {
				if has && !yield(pending, nil) {
					return
				}
				yield(StateValue{}, err)
				return
			}
			if has && pending.StateID == sv.StateID {
				pending.Values = append(pending.Values, sv.Values...)
				continue
			}
			if has && !yield(pending, nil) {
				return
			}
			pending, has = sv, true
		}
		if has {
			yield(pending, nil)
		}
	}
}
