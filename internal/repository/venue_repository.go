package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/model"
)

const venueCols = `id, owner_id, name, description, address, city, country, created_at, updated_at`

// VenueRepo manages the venues a host owns.
type VenueRepo struct{ DB *database.DB }

func NewVenueRepo(db *database.DB) *VenueRepo { return &VenueRepo{DB: db} }

func scanVenue(s rowScanner) (*model.Venue, error) {
	var v model.Venue
	if err := s.Scan(&v.ID, &v.OwnerID, &v.Name, &v.Description, &v.Address,
		&v.City, &v.Country, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts v and reloads it so timestamps reflect the stored row.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	id, err := insertID(ctx, r.DB, r.DB.Dialect,
		`INSERT INTO venues (owner_id, name, description, address, city, country) VALUES (?, ?, ?, ?, ?, ?)`,
		v.OwnerID, v.Name, v.Description, v.Address, v.City, v.Country)
	if err != nil {
		return err
	}
	stored, err := r.get(ctx, id)
	if err != nil {
		return err
	}
	*v = *stored
	return nil
}

func (r *VenueRepo) get(ctx context.Context, id uint64) (*model.Venue, error) {
	v, err := scanVenue(r.DB.QueryRowContext(ctx,
		r.DB.Rebind(`SELECT `+venueCols+` FROM venues WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// GetOwned returns the venue when ownerID owns it. A missing venue is
// ErrNotFound; someone else's venue is ErrForbidden.
func (r *VenueRepo) GetOwned(ctx context.Context, id, ownerID uint64) (*model.Venue, error) {
	v, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return v, nil
}

// ListByOwner returns every venue of ownerID ordered by id.
func (r *VenueRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Venue, error) {
	rows, err := r.DB.QueryContext(ctx,
		r.DB.Rebind(`SELECT `+venueCols+` FROM venues WHERE owner_id = ? ORDER BY id`), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Update rewrites the editable columns of a venue the caller already
// checked ownership of. MySQL reports zero affected rows for a no-op
// update, so the result count is not inspected.
func (r *VenueRepo) Update(ctx context.Context, v *model.Venue) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(
		`UPDATE venues SET name = ?, description = ?, address = ?, city = ?, country = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`),
		v.Name, v.Description, v.Address, v.City, v.Country,
		time.Now().UTC().Truncate(time.Microsecond), v.ID, v.OwnerID)
	if err != nil {
		return err
	}
	stored, err := r.get(ctx, v.ID)
	if err != nil {
		return err
	}
	*v = *stored
	return nil
}

// Delete removes a venue with its spaces and their finished or cancelled
// reservations. It refuses with ErrHasActiveReservations while any space
// still has a pending or accepted booking ending at or after now.
func (r *VenueRepo) Delete(ctx context.Context, id, ownerID uint64, now time.Time) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var owner uint64
	err = tx.QueryRowContext(ctx, r.DB.Rebind(`SELECT owner_id FROM venues WHERE id = ? FOR UPDATE`), id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != ownerID {
		return ErrForbidden
	}

	// Confirm and the other reservation writers lock the space row first, so
	// holding every space row keeps new bookings out until the delete commits.
	if err = lockVenueSpaces(ctx, tx, r.DB, id); err != nil {
		return err
	}

	var active int
	err = tx.QueryRowContext(ctx, r.DB.Rebind(
		`SELECT COUNT(*) FROM reservations
		 WHERE space_id IN (SELECT id FROM spaces WHERE venue_id = ?) AND `+activeFilter+` AND end_at >= ?`),
		id, now.UTC()).Scan(&active)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrHasActiveReservations
	}

	// reservations do not cascade from spaces; days and reviews cascade from reservations.
	if _, err = tx.ExecContext(ctx, r.DB.Rebind(
		`DELETE FROM reservations WHERE space_id IN (SELECT id FROM spaces WHERE venue_id = ?)`), id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, r.DB.Rebind(`DELETE FROM venues WHERE id = ?`), id); err != nil {
		return err
	}
	return tx.Commit()
}

func lockVenueSpaces(ctx context.Context, tx *sql.Tx, db *database.DB, venueID uint64) error {
	rows, err := tx.QueryContext(ctx, db.Rebind(`SELECT id FROM spaces WHERE venue_id = ? FOR UPDATE`), venueID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}
