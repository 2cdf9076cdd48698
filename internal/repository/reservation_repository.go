package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/database"
)

// ReservationRepo is the SQL booking.Store. Every reservation write goes
// through a unit of work that first locks the space row; each active
// reservation also owns one reservation_days row per day, whose primary
// key rejects overlaps the application check did not see.
type ReservationRepo struct {
	db  *database.DB
	loc *time.Location
}

// NewReservationRepo binds the repo to db. loc is the zone whose calendar
// days are recorded in reservation_days.
func NewReservationRepo(db *database.DB, loc *time.Location) *ReservationRepo {
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationRepo{db: db, loc: loc}
}

const reservationCols = `id, space_id, renter_id, start_at, end_at, status, total_price, currency, payment_status, created_at, updated_at`

// activeFilter matches the statuses that block other bookings.
var activeFilter = func() string {
	quoted := make([]string, len(booking.ActiveStatuses))
	for i, st := range booking.ActiveStatuses {
		quoted[i] = "'" + string(st) + "'"
	}
	return "status IN (" + strings.Join(quoted, ",") + ")"
}()

func scanReservation(s rowScanner) (booking.Reservation, error) {
	var r booking.Reservation
	var status, payment string
	err := s.Scan(&r.ID, &r.SpaceID, &r.RenterID, &r.StartAt, &r.EndAt, &status,
		&r.TotalPrice, &r.Currency, &payment, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Status = booking.Status(status)
	if !r.Status.Valid() {
		return r, fmt.Errorf("reservation %d: unknown status %q", r.ID, status)
	}
	r.PaymentStatus = booking.PaymentStatus(payment)
	r.Currency = strings.TrimSpace(r.Currency)
	return r, nil
}

func collectReservations(rows *sql.Rows) ([]booking.Reservation, error) {
	defer rows.Close()
	var out []booking.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (r *ReservationRepo) SpaceStatus(ctx context.Context, spaceID uint64) (exists, published bool, err error) {
	err = r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT is_published FROM spaces WHERE id = ?`), spaceID).Scan(&published)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, published, nil
}

// Begin opens a transaction and takes the space row lock with SELECT ...
// FOR UPDATE. Concurrent units for the same space queue on that lock. The
// lock is taken whether or not the space is published so hosts and renters
// can still settle existing reservations of a withdrawn listing.
func (r *ReservationRepo) Begin(ctx context.Context, spaceID uint64) (booking.UnitOfWork, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	var published bool
	err = tx.QueryRowContext(ctx,
		r.db.Rebind(`SELECT is_published FROM spaces WHERE id = ? FOR UPDATE`), spaceID).Scan(&published)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrSpaceNotFound
		}
		return nil, err
	}
	return &reservationTx{repo: r, tx: tx, published: published}, nil
}

func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*booking.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+reservationCols+` FROM reservations WHERE id = ?`), id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepo) ListActive(ctx context.Context, spaceID uint64) ([]booking.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT `+reservationCols+` FROM reservations
		WHERE space_id = ? AND `+activeFilter+`
		ORDER BY start_at, id`), spaceID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *ReservationRepo) ListByRenter(ctx context.Context, renterID uint64) ([]booking.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT `+reservationCols+` FROM reservations
		WHERE renter_id = ?
		ORDER BY created_at DESC, id DESC`), renterID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// overlapViolation reports errors raised by the per-day primary key or the
// Postgres exclusion constraint.
func overlapViolation(err error) bool {
	return database.IsUniqueViolation(err) || database.IsExclusionViolation(err)
}

func backstopConflict(err error) error {
	return &booking.OverlapError{Constraint: database.ConstraintName(err)}
}

type reservationTx struct {
	repo      *ReservationRepo
	tx        *sql.Tx
	published bool
	done      bool
}

func (t *reservationTx) rebind(q string) string { return t.repo.db.Rebind(q) }

func (t *reservationTx) Published() bool { return t.published }

func (t *reservationTx) ActiveInRange(ctx context.Context, spaceID uint64, start, end time.Time) ([]booking.Reservation, error) {
	rows, err := t.tx.QueryContext(ctx, t.rebind(`SELECT `+reservationCols+` FROM reservations
		WHERE space_id = ? AND `+activeFilter+` AND start_at <= ? AND end_at >= ?`),
		spaceID, end.UTC(), start.UTC())
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (t *reservationTx) Get(ctx context.Context, id uint64) (*booking.Reservation, error) {
	row := t.tx.QueryRowContext(ctx, t.rebind(`SELECT `+reservationCols+` FROM reservations WHERE id = ? FOR UPDATE`), id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (t *reservationTx) Insert(ctx context.Context, res *booking.Reservation) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	id, err := insertID(ctx, t.tx, t.repo.db.Dialect,
		`INSERT INTO reservations (space_id, renter_id, start_at, end_at, status, total_price, currency, payment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SpaceID, res.RenterID, res.StartAt.UTC(), res.EndAt.UTC(), string(res.Status),
		res.TotalPrice, res.Currency, string(res.PaymentStatus), now, now)
	if err != nil {
		if overlapViolation(err) {
			return backstopConflict(err)
		}
		return err
	}
	res.ID = id
	res.CreatedAt, res.UpdatedAt = now, now
	if !res.Status.Active() {
		return nil
	}
	return t.claimDays(ctx, res)
}

func (t *reservationTx) UpdateStatus(ctx context.Context, id uint64, status booking.Status) error {
	result, err := t.tx.ExecContext(ctx, t.rebind(`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UTC().Truncate(time.Microsecond), id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return booking.ErrReservationNotFound
	}
	if status.Active() {
		return nil
	}
	return t.releaseDays(ctx, id)
}

func (t *reservationTx) UpdateSpan(ctx context.Context, res *booking.Reservation) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	result, err := t.tx.ExecContext(ctx, t.rebind(`UPDATE reservations SET start_at = ?, end_at = ?, updated_at = ? WHERE id = ?`),
		res.StartAt.UTC(), res.EndAt.UTC(), now, res.ID)
	if err != nil {
		if overlapViolation(err) {
			return backstopConflict(err)
		}
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return booking.ErrReservationNotFound
	}
	res.UpdatedAt = now
	if err := t.releaseDays(ctx, res.ID); err != nil {
		return err
	}
	if !res.Status.Active() {
		return nil
	}
	return t.claimDays(ctx, res)
}

// claimDays inserts one reservation_days row per covered day in a single
// statement.
func (t *reservationTx) claimDays(ctx context.Context, res *booking.Reservation) error {
	days := booking.DaysBetween(
		booking.DateOf(res.StartAt.In(t.repo.loc)),
		booking.DateOf(res.EndAt.In(t.repo.loc)),
	)
	if len(days) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO reservation_days (space_id, day, reservation_id) VALUES `)
	args := make([]any, 0, len(days)*3)
	for i, d := range days {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?)")
		args = append(args, res.SpaceID, d.String(), res.ID)
	}
	if _, err := t.tx.ExecContext(ctx, t.rebind(b.String()), args...); err != nil {
		if overlapViolation(err) {
			return backstopConflict(err)
		}
		return err
	}
	return nil
}

func (t *reservationTx) releaseDays(ctx context.Context, reservationID uint64) error {
	_, err := t.tx.ExecContext(ctx, t.rebind(`DELETE FROM reservation_days WHERE reservation_id = ?`), reservationID)
	return err
}

func (t *reservationTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		if overlapViolation(err) {
			return backstopConflict(err)
		}
		return err
	}
	return nil
}

func (t *reservationTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
