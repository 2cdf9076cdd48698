package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Space is a bookable subdivision of a venue. Hosts create and publish
// spaces; renters only ever see published ones.
type Space struct {
	ID          uint64           `json:"id"`
	VenueID     uint64           `json:"venue_id"`
	VenueName   string           `json:"venue_name"`
	City        string           `json:"city"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	PricePerDay decimal.Decimal  `json:"price_per_day"`
	CleaningFee *decimal.Decimal `json:"cleaning_fee,omitempty"`
	IsPublished bool             `json:"is_published"`
	CreatedAt   time.Time        `json:"created_at"`
}
