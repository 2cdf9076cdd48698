package booking

import (
	"context"
	"strconv"
	"time"
)

// UnitOfWork is one transaction scoped to a single space. The store holds
// the space's lock from Begin until Commit or Rollback, so no other unit
// for the same space can observe a state between a conflict check and the
// write that follows it. Rollback after Commit is a no-op.
type UnitOfWork interface {
	ActiveRangeQuerier
	// Published reports whether the locked space accepts new reservations.
	// Changes to existing reservations do not depend on it.
	Published() bool
	// Get loads a reservation and locks it for the rest of the unit.
	Get(ctx context.Context, id uint64) (*Reservation, error)
	// Insert assigns r.ID, CreatedAt and UpdatedAt. A storage-level overlap
	// violation is reported as ErrConflict.
	Insert(ctx context.Context, r *Reservation) error
	UpdateStatus(ctx context.Context, id uint64, status Status) error
	// UpdateSpan rewrites the interval of r.ID from r's start and end fields.
	UpdateSpan(ctx context.Context, r *Reservation) error
	Commit() error
	Rollback() error
}

// Store is the durable reservation set. Missing reservations are reported
// as ErrReservationNotFound and missing spaces as ErrSpaceNotFound.
type Store interface {
	// SpaceStatus reports whether a space exists and whether it is published.
	SpaceStatus(ctx context.Context, spaceID uint64) (exists, published bool, err error)
	// Begin opens a unit of work holding spaceID's lock.
	Begin(ctx context.Context, spaceID uint64) (UnitOfWork, error)
	Get(ctx context.Context, id uint64) (*Reservation, error)
	// ListActive returns the active reservations of a space ordered by StartAt.
	ListActive(ctx context.Context, spaceID uint64) ([]Reservation, error)
	// ListByRenter returns a renter's reservations, newest first.
	ListByRenter(ctx context.Context, renterID uint64) ([]Reservation, error)
}

// Locker serialises admissions per key across callers. The returned
// function releases the lock and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SpaceLockKey is the lock key used for every mutation of a space's reservations.
func SpaceLockKey(spaceID uint64) string {
	return "space:" + strconv.FormatUint(spaceID, 10)
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// EventType names a reservation change announced after commit.
type EventType string

const (
	EventConfirmed   EventType = "booking.confirmed"
	EventCancelled   EventType = "booking.cancelled"
	EventRescheduled EventType = "booking.rescheduled"
	EventAccepted    EventType = "booking.accepted"
	EventRejected    EventType = "booking.rejected"
)

// Event is published after the transaction that caused it has committed.
type Event struct {
	Type        EventType
	Reservation Reservation
	OccurredAt  time.Time
}

// EventPublisher delivers events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
