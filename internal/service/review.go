// Package service holds the use cases that sit on top of the booking engine
// but are not part of admission itself.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/model"
)

var (
	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrNotReviewable is returned for bookings that are not accepted or
	// whose last day has not passed yet.
	ErrNotReviewable = errors.New("booking cannot be reviewed yet")
	// ErrCommentTooLong is returned for comments over MaxCommentLen runes.
	ErrCommentTooLong = fmt.Errorf("comment must be at most %d characters", MaxCommentLen)
)

// MaxCommentLen is counted in runes after trimming surrounding space.
const MaxCommentLen = 2000

// ReviewStore persists reviews. Create reports a duplicate review for the
// same reservation as repository.ErrReviewExists.
type ReviewStore interface {
	Create(ctx context.Context, rv *model.Review) error
	ListBySpace(ctx context.Context, spaceID uint64, limit int) ([]model.Review, error)
}

// BookingReader resolves a renter's own reservation with its calendar dates.
type BookingReader interface {
	Get(ctx context.Context, reservationID, renterID uint64) (*booking.Reservation, error)
	Calendar() *booking.Calendar
}

type ReviewService struct {
	Bookings BookingReader
	Reviews  ReviewStore
}

func NewReviewService(b BookingReader, r ReviewStore) *ReviewService {
	return &ReviewService{Bookings: b, Reviews: r}
}

// Create records renterID's review of reservationID. Only the renter who
// made an ACCEPTED booking may review it, and only after its end date.
func (s *ReviewService) Create(ctx context.Context, reservationID, renterID uint64, rating int, comment string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > MaxCommentLen {
		return nil, ErrCommentTooLong
	}

	res, err := s.Bookings.Get(ctx, reservationID, renterID)
	if err != nil {
		return nil, err
	}
	today := s.Bookings.Calendar().Today()
	if res.Status != booking.StatusAccepted || !res.EndDate.Before(today) {
		return nil, ErrNotReviewable
	}

	rv := &model.Review{
		ReservationID: res.ID,
		SpaceID:       res.SpaceID,
		RenterID:      renterID,
		Rating:        rating,
		Comment:       comment,
	}
	if err := s.Reviews.Create(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

// ListForSpace returns up to limit reviews of a space, newest first.
func (s *ReviewService) ListForSpace(ctx context.Context, spaceID uint64, limit int) ([]model.Review, error) {
	return s.Reviews.ListBySpace(ctx, spaceID, limit)
}
