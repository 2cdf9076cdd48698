// Package booking decides whether a date range of a space may be reserved
// and, when it may, commits the reservation without ever letting two active
// reservations of the same space overlap.
package booking

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a stored reservation.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// ActiveStatuses are the statuses that block other bookings.
var ActiveStatuses = []Status{StatusPending, StatusAccepted}

// Active reports whether s counts toward overlap checks.
func (s Status) Active() bool { return slices.Contains(ActiveStatuses, s) }

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is a label only; no gateway is involved.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

// Reservation is a booking of one space over a closed instant interval.
// StartDate and EndDate are the canonical-zone calendar days the interval
// was derived from; stores persist only the instants.
type Reservation struct {
	ID            uint64
	SpaceID       uint64
	RenterID      uint64
	StartAt       time.Time
	EndAt         time.Time
	StartDate     Date
	EndDate       Date
	Status        Status
	TotalPrice    decimal.Decimal
	Currency      string
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Request is a renter's ask to reserve a space for [StartDate, EndDate].
type Request struct {
	SpaceID    uint64
	RenterID   uint64
	StartDate  Date
	EndDate    Date
	TotalPrice decimal.Decimal
	Currency   string
}

// Span is a reserved date range as exposed to callers.
type Span struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}
