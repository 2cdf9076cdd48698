package model

import "time"

// Review is a renter's rating of a completed booking. At most one review
// exists per reservation.
type Review struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	SpaceID       uint64    `json:"space_id"`
	RenterID      uint64    `json:"renter_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}
