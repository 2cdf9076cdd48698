// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/venue-booking/internal/booking"
)

// Queue names, one per event type.
const (
	QueueConfirmed   = string(booking.EventConfirmed)
	QueueCancelled   = string(booking.EventCancelled)
	QueueRescheduled = string(booking.EventRescheduled)
	QueueAccepted    = string(booking.EventAccepted)
	QueueRejected    = string(booking.EventRejected)
)

// Queues lists every queue the worker consumes.
var Queues = []string{QueueConfirmed, QueueCancelled, QueueRescheduled, QueueAccepted, QueueRejected}

// BookingEvent is published after a reservation change commits. It carries
// enough for downstream consumers to log or notify without querying the
// primary database.
type BookingEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	SpaceID       uint64 `json:"space_id"`
	RenterID      uint64 `json:"renter_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	TotalPrice    string `json:"total_price"`
	Currency      string `json:"currency"`
	OccurredAt    string `json:"occurred_at"`
}

// FromBooking converts an engine event into its wire payload.
func FromBooking(ev booking.Event) BookingEvent {
	r := ev.Reservation
	return BookingEvent{
		Type:          string(ev.Type),
		ReservationID: r.ID,
		SpaceID:       r.SpaceID,
		RenterID:      r.RenterID,
		StartDate:     r.StartDate.String(),
		EndDate:       r.EndDate.String(),
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		TotalPrice:    r.TotalPrice.StringFixed(2),
		Currency:      r.Currency,
		OccurredAt:    ev.OccurredAt.UTC().Format(time.RFC3339),
	}
}
