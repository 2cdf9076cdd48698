package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
)

type ReviewRepo struct{ DB *database.DB }

func NewReviewRepo(db *database.DB) *ReviewRepo { return &ReviewRepo{DB: db} }

// Create inserts rv and fills its ID and CreatedAt. A second review for the
// same reservation returns ErrReviewExists.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id, err := insertID(ctx, r.DB, r.DB.Dialect,
		"INSERT INTO reviews (reservation_id, space_id, renter_id, rating, comment, created_at) VALUES (?,?,?,?,?,?)",
		rv.ReservationID, rv.SpaceID, rv.RenterID, rv.Rating, strings.TrimSpace(rv.Comment), now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrReviewExists
		}
		return err
	}
	rv.ID = id
	rv.CreatedAt = now
	return nil
}

// ListBySpace returns a space's reviews, newest first.
func (r *ReviewRepo) ListBySpace(ctx context.Context, spaceID uint64, limit int) ([]model.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(
		`SELECT id, reservation_id, space_id, renter_id, rating, comment, created_at
		 FROM reviews WHERE space_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`), spaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Review{}
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ReservationID, &rv.SpaceID, &rv.RenterID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
