package booking

import (
	"errors"
	"fmt"
)

// ErrCode is the stable, caller-visible reason attached to every rejection.
type ErrCode string

const (
	CodeInvalidRange  ErrCode = "INVALID_RANGE"
	CodeOutOfWindow   ErrCode = "OUT_OF_WINDOW"
	CodeConflict      ErrCode = "CONFLICT"
	CodeNotFound      ErrCode = "NOT_FOUND"
	CodeForbidden     ErrCode = "FORBIDDEN"
	CodeNotModifiable ErrCode = "NOT_MODIFIABLE"
	CodeStoreFailure  ErrCode = "STORE_FAILURE"
)

type codedError struct {
	code ErrCode
	msg  string
}

func (e *codedError) Error() string { return e.msg }
func (e *codedError) Code() ErrCode { return e.code }

var (
	// ErrInvalidRange: the start date is after the end date.
	ErrInvalidRange error = &codedError{CodeInvalidRange, "start date must not be after end date"}
	// ErrOutOfWindow is matched by every *WindowError.
	ErrOutOfWindow error = &codedError{CodeOutOfWindow, "dates fall outside the booking window"}
	// ErrConflict: the range intersects an active reservation, either found by
	// the detector or reported by the storage backstop.
	ErrConflict error = &codedError{CodeConflict, "this date range is already booked"}
	// ErrSpaceNotFound: the referenced space does not exist.
	ErrSpaceNotFound error = &codedError{CodeNotFound, "space not found"}
	// ErrReservationNotFound: the referenced reservation does not exist.
	ErrReservationNotFound error = &codedError{CodeNotFound, "reservation not found"}
	// ErrForbidden: the caller is not the reservation's renter.
	ErrForbidden error = &codedError{CodeForbidden, "reservation belongs to another renter"}
	// ErrNotModifiable: the reservation is inactive or has already started.
	ErrNotModifiable error = &codedError{CodeNotModifiable, "reservation can no longer be changed"}
	// ErrStore is matched by every *StoreError.
	ErrStore error = &codedError{CodeStoreFailure, "reservation store failure"}
)

// WindowError reports the window the request missed.
type WindowError struct {
	Earliest Date
	Latest   Date
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("booking must be between %s and %s", e.Earliest, e.Latest)
}

func (e *WindowError) Code() ErrCode { return CodeOutOfWindow }

func (e *WindowError) Is(target error) bool { return target == ErrOutOfWindow }

// StoreError wraps a persistence failure that is not attributable to the
// overlap backstop.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "reservation store: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Code() ErrCode { return CodeStoreFailure }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// OverlapError is a conflict raised by the storage backstop rather than the
// detector. Constraint names the violated index when the backend reports it.
type OverlapError struct {
	Constraint string
}

func (e *OverlapError) Error() string { return ErrConflict.Error() }

func (e *OverlapError) Code() ErrCode { return CodeConflict }

func (e *OverlapError) Is(target error) bool { return target == ErrConflict }

// storeFailure wraps err unless it already carries a code.
func storeFailure(op string, err error) error {
	if err == nil || Code(err) != "" {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Code extracts the reason code from err, or "" when err carries none.
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}
