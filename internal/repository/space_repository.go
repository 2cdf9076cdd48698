package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
)

const spaceSelect = `SELECT s.id, s.venue_id, v.name, v.city, s.name, s.description,
                            s.price_per_day, s.cleaning_fee, s.is_published, s.created_at
                     FROM spaces s
                     JOIN venues v ON v.id = s.venue_id `

// SpaceRepo reads spaces joined with their venue and lets hosts manage them.
type SpaceRepo struct{ DB *database.DB }

func NewSpaceRepo(db *database.DB) *SpaceRepo { return &SpaceRepo{DB: db} }

func scanSpace(s rowScanner) (*model.Space, error) {
	var sp model.Space
	var fee decimal.NullDecimal
	if err := s.Scan(
		&sp.ID, &sp.VenueID, &sp.VenueName, &sp.City, &sp.Name, &sp.Description,
		&sp.PricePerDay, &fee, &sp.IsPublished, &sp.CreatedAt,
	); err != nil {
		return nil, err
	}
	if fee.Valid {
		sp.CleaningFee = &fee.Decimal
	}
	return &sp, nil
}

func (r *SpaceRepo) one(ctx context.Context, where string, args ...any) (*model.Space, error) {
	sp, err := scanSpace(r.DB.QueryRowContext(ctx, r.DB.Rebind(spaceSelect+where), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sp, err
}

// GetPublished returns a published space or ErrNotFound.
func (r *SpaceRepo) GetPublished(ctx context.Context, id uint64) (*model.Space, error) {
	return r.one(ctx, `WHERE s.id = ? AND s.is_published = TRUE`, id)
}

// Get returns a space whether or not it is published.
func (r *SpaceRepo) Get(ctx context.Context, id uint64) (*model.Space, error) {
	return r.one(ctx, `WHERE s.id = ?`, id)
}

// ListByVenue returns the published spaces of a venue ordered by name.
func (r *SpaceRepo) ListByVenue(ctx context.Context, venueID uint64) ([]model.Space, error) {
	return r.list(ctx, `WHERE s.venue_id = ? AND s.is_published = TRUE ORDER BY s.name, s.id`, venueID)
}

// ListAllByVenue includes unpublished spaces; hosts use it for their own venues.
func (r *SpaceRepo) ListAllByVenue(ctx context.Context, venueID uint64) ([]model.Space, error) {
	return r.list(ctx, `WHERE s.venue_id = ? ORDER BY s.id`, venueID)
}

func (r *SpaceRepo) list(ctx context.Context, where string, args ...any) ([]model.Space, error) {
	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(spaceSelect+where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Space{}
	for rows.Next() {
		sp, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

// OwnerOf returns the host that owns the venue of spaceID, published or not.
func (r *SpaceRepo) OwnerOf(ctx context.Context, spaceID uint64) (uint64, error) {
	const q = `SELECT v.owner_id FROM spaces s JOIN venues v ON v.id = s.venue_id WHERE s.id = ?`
	var owner uint64
	err := r.DB.QueryRowContext(ctx, r.DB.Rebind(q), spaceID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return owner, err
}

func nullFee(fee *decimal.Decimal) decimal.NullDecimal {
	if fee == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *fee, Valid: true}
}

// Create inserts sp under sp.VenueID and reloads it with the venue columns.
// Venue ownership is checked by the caller.
func (r *SpaceRepo) Create(ctx context.Context, sp *model.Space) error {
	id, err := insertID(ctx, r.DB, r.DB.Dialect,
		`INSERT INTO spaces (venue_id, name, description, price_per_day, cleaning_fee, is_published) VALUES (?, ?, ?, ?, ?, ?)`,
		sp.VenueID, sp.Name, sp.Description, sp.PricePerDay, nullFee(sp.CleaningFee), sp.IsPublished)
	if err != nil {
		return err
	}
	stored, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	*sp = *stored
	return nil
}

// Update rewrites the editable columns of sp. The venue of a space never
// changes.
func (r *SpaceRepo) Update(ctx context.Context, sp *model.Space) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(
		`UPDATE spaces SET name = ?, description = ?, price_per_day = ?, cleaning_fee = ?, is_published = ?, updated_at = ?
		 WHERE id = ?`),
		sp.Name, sp.Description, sp.PricePerDay, nullFee(sp.CleaningFee), sp.IsPublished,
		time.Now().UTC().Truncate(time.Microsecond), sp.ID)
	if err != nil {
		return err
	}
	stored, err := r.Get(ctx, sp.ID)
	if err != nil {
		return err
	}
	*sp = *stored
	return nil
}
