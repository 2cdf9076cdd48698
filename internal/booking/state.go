package booking

import "fmt"

// State is the position of a single admission attempt. It is never stored;
// it exists to keep the order of checks explicit.
type State string

const (
	StateReceived             State = "RECEIVED"
	StateValidated            State = "VALIDATED"
	StateConflictChecked      State = "CONFLICT_CHECKED"
	StateCommitted            State = "COMMITTED"
	StateRejectedNotFound     State = "REJECTED_NOT_FOUND"
	StateRejectedInvalidRange State = "REJECTED_INVALID_RANGE"
	StateRejectedOutOfWindow  State = "REJECTED_OUT_OF_WINDOW"
	StateRejectedConflict     State = "REJECTED_CONFLICT"
	StateFailed               State = "FAILED"
)

var validNext = map[State]map[State]bool{
	StateReceived: {
		StateValidated:            true,
		StateRejectedNotFound:     true,
		StateRejectedInvalidRange: true,
		StateRejectedOutOfWindow:  true,
		StateFailed:               true,
	},
	StateValidated: {
		StateConflictChecked:  true,
		StateRejectedConflict: true,
		StateRejectedNotFound: true,
		StateFailed:           true,
	},
	StateConflictChecked: {
		StateCommitted:        true,
		StateRejectedConflict: true,
		StateFailed:           true,
	},
}

// CanTransition reports whether an admission may move from one state to another.
func CanTransition(from, to State) bool {
	return validNext[from][to]
}

// RejectionState maps an admission error to the terminal state it causes.
func RejectionState(err error) State {
	switch Code(err) {
	case CodeNotFound:
		return StateRejectedNotFound
	case CodeInvalidRange:
		return StateRejectedInvalidRange
	case CodeOutOfWindow:
		return StateRejectedOutOfWindow
	case CodeConflict:
		return StateRejectedConflict
	default:
		return StateFailed
	}
}

// admission tracks one attempt through the state table.
type admission struct {
	state State
	trail []State
}

func newAdmission() *admission {
	return &admission{state: StateReceived, trail: []State{StateReceived}}
}

func (a *admission) advance(to State) {
	if !CanTransition(a.state, to) {
		panic(fmt.Sprintf("booking: illegal admission transition %s -> %s", a.state, to))
	}
	a.state = to
	a.trail = append(a.trail, to)
}
