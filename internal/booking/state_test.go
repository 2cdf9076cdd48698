package booking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	require.True(t, CanTransition(StateReceived, StateValidated))
	require.True(t, CanTransition(StateValidated, StateConflictChecked))
	require.True(t, CanTransition(StateConflictChecked, StateCommitted))
	require.True(t, CanTransition(StateConflictChecked, StateRejectedConflict))

	require.False(t, CanTransition(StateReceived, StateCommitted))
	require.False(t, CanTransition(StateReceived, StateRejectedConflict))
	require.False(t, CanTransition(StateValidated, StateRejectedOutOfWindow))
	require.False(t, CanTransition(StateCommitted, StateFailed))

	for _, s := range []State{StateCommitted, StateRejectedNotFound, StateRejectedInvalidRange,
		StateRejectedOutOfWindow, StateRejectedConflict, StateFailed} {
		require.Empty(t, validNext[s], s)
	}
}

func TestRejectionState(t *testing.T) {
	require.Equal(t, StateRejectedNotFound, RejectionState(ErrSpaceNotFound))
	require.Equal(t, StateRejectedInvalidRange, RejectionState(ErrInvalidRange))
	require.Equal(t, StateRejectedOutOfWindow, RejectionState(&WindowError{}))
	require.Equal(t, StateRejectedConflict, RejectionState(ErrConflict))
	require.Equal(t, StateFailed, RejectionState(storeFailure("insert", errors.New("disk full"))))
	require.Equal(t, StateFailed, RejectionState(errors.New("plain")))
}

func TestAdmissionPanicsOnIllegalTransition(t *testing.T) {
	a := newAdmission()
	a.advance(StateValidated)
	require.Panics(t, func() { a.advance(StateCommitted) })
	require.Equal(t, []State{StateReceived, StateValidated}, a.trail)
}

func TestStoreFailureKeepsCodedErrors(t *testing.T) {
	require.Nil(t, storeFailure("x", nil))
	require.Same(t, ErrConflict, storeFailure("commit", ErrConflict))

	err := storeFailure("commit", errors.New("connection reset"))
	require.ErrorIs(t, err, ErrStore)
	require.Equal(t, CodeStoreFailure, Code(err))
	require.Equal(t, "reservation store: commit: connection reset", err.Error())
}
