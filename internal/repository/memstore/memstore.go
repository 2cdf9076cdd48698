// Package memstore is an in-memory booking.Store. A unit of work holds the
// space's lock until it ends and its writes become visible only at commit,
// where the per-day uniqueness index rejects any overlap that slipped past
// the application check.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/venue-booking/internal/booking"
)

type dayKey struct {
	space uint64
	day   booking.Date
}

type Store struct {
	loc       *time.Location
	now       func() time.Time
	noRowLock bool

	mu        sync.Mutex
	spaces    map[uint64]chan struct{}
	withdrawn map[uint64]bool
	rows      map[uint64]booking.Reservation
	days      map[dayKey]uint64
	nextID    uint64
}

type Option func(*Store)

// WithLocation sets the zone used to derive the days a reservation covers.
func WithLocation(loc *time.Location) Option { return func(s *Store) { s.loc = loc } }

func WithNow(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithoutRowLock lets concurrent units of work on one space interleave,
// leaving only the commit-time day index to prevent overlaps.
func WithoutRowLock() Option { return func(s *Store) { s.noRowLock = true } }

func New(opts ...Option) *Store {
	s := &Store{
		loc:    time.UTC,
		now:    time.Now,
		spaces:    make(map[uint64]chan struct{}),
		withdrawn: make(map[uint64]bool),
		rows:      make(map[uint64]booking.Reservation),
		days:      make(map[dayKey]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSpace registers a published space.
func (s *Store) AddSpace(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[id]; !ok {
		s.spaces[id] = make(chan struct{}, 1)
	}
}

// SetPublished lists or withdraws a registered space. Withdrawn spaces keep
// their reservations but refuse new ones.
func (s *Store) SetPublished(id uint64, published bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if published {
		delete(s.withdrawn, id)
	} else {
		s.withdrawn[id] = true
	}
}

// Seed stores r as already committed, bypassing every check. It assigns an
// ID when r.ID is zero.
func (s *Store) Seed(r booking.Reservation) booking.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	} else if r.ID > s.nextID {
		s.nextID = r.ID
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
		r.UpdatedAt = r.CreatedAt
	}
	s.rows[r.ID] = r
	if r.Status.Active() {
		for _, k := range s.keysFor(r) {
			s.days[k] = r.ID
		}
	}
	return r
}

// All returns every stored reservation ordered by ID.
func (s *Store) All() []booking.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]booking.Reservation, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) SpaceStatus(_ context.Context, spaceID uint64) (exists, published bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.spaces[spaceID]
	return ok, ok && !s.withdrawn[spaceID], nil
}

func (s *Store) Begin(ctx context.Context, spaceID uint64) (booking.UnitOfWork, error) {
	s.mu.Lock()
	sem, ok := s.spaces[spaceID]
	s.mu.Unlock()
	if !ok {
		return nil, booking.ErrSpaceNotFound
	}
	if !s.noRowLock {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	published := !s.withdrawn[spaceID]
	s.mu.Unlock()
	return &tx{store: s, spaceID: spaceID, sem: sem, published: published, pending: make(map[uint64]booking.Reservation)}, nil
}

func (s *Store) Get(_ context.Context, id uint64) (*booking.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, booking.ErrReservationNotFound
	}
	return &r, nil
}

func (s *Store) ListActive(_ context.Context, spaceID uint64) ([]booking.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []booking.Reservation
	for _, r := range s.rows {
		if r.SpaceID == spaceID && r.Status.Active() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, nil
}

func (s *Store) ListByRenter(_ context.Context, renterID uint64) ([]booking.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []booking.Reservation
	for _, r := range s.rows {
		if r.RenterID == renterID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) keysFor(r booking.Reservation) []dayKey {
	days := booking.DaysBetween(booking.DateOf(r.StartAt.In(s.loc)), booking.DateOf(r.EndAt.In(s.loc)))
	keys := make([]dayKey, 0, len(days))
	for _, d := range days {
		keys = append(keys, dayKey{space: r.SpaceID, day: d})
	}
	return keys
}

var errTxDone = errors.New("memstore: transaction already finished")

type tx struct {
	store     *Store
	spaceID   uint64
	sem       chan struct{}
	published bool
	pending   map[uint64]booking.Reservation
	done      bool
}

func (t *tx) Published() bool { return t.published }

func (t *tx) lookup(id uint64) (booking.Reservation, bool) {
	if r, ok := t.pending[id]; ok {
		return r, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	r, ok := t.store.rows[id]
	return r, ok
}

func (t *tx) ActiveInRange(_ context.Context, spaceID uint64, start, end time.Time) ([]booking.Reservation, error) {
	if t.done {
		return nil, errTxDone
	}
	seen := make(map[uint64]booking.Reservation)
	t.store.mu.Lock()
	for id, r := range t.store.rows {
		seen[id] = r
	}
	t.store.mu.Unlock()
	for id, r := range t.pending {
		seen[id] = r
	}

	var out []booking.Reservation
	for _, r := range seen {
		if r.SpaceID == spaceID && r.Status.Active() && booking.Overlaps(r.StartAt, r.EndAt, start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *tx) Get(_ context.Context, id uint64) (*booking.Reservation, error) {
	if t.done {
		return nil, errTxDone
	}
	r, ok := t.lookup(id)
	if !ok {
		return nil, booking.ErrReservationNotFound
	}
	return &r, nil
}

func (t *tx) Insert(_ context.Context, r *booking.Reservation) error {
	if t.done {
		return errTxDone
	}
	t.store.mu.Lock()
	t.store.nextID++
	r.ID = t.store.nextID
	t.store.mu.Unlock()
	r.CreatedAt = t.store.now()
	r.UpdatedAt = r.CreatedAt
	t.pending[r.ID] = *r
	return nil
}

func (t *tx) UpdateStatus(_ context.Context, id uint64, status booking.Status) error {
	if t.done {
		return errTxDone
	}
	r, ok := t.lookup(id)
	if !ok {
		return booking.ErrReservationNotFound
	}
	r.Status = status
	r.UpdatedAt = t.store.now()
	t.pending[id] = r
	return nil
}

func (t *tx) UpdateSpan(_ context.Context, in *booking.Reservation) error {
	if t.done {
		return errTxDone
	}
	r, ok := t.lookup(in.ID)
	if !ok {
		return booking.ErrReservationNotFound
	}
	r.StartAt, r.EndAt = in.StartAt, in.EndAt
	r.UpdatedAt = t.store.now()
	in.UpdatedAt = r.UpdatedAt
	t.pending[in.ID] = r
	return nil
}

// Commit applies pending rows atomically. A day already claimed by another
// active reservation of the same space fails the whole unit with
// booking.ErrConflict and nothing is applied.
func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	defer t.finish()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	days := make(map[dayKey]uint64, len(s.days))
	for k, v := range s.days {
		days[k] = v
	}
	for id := range t.pending {
		if old, ok := s.rows[id]; ok && old.Status.Active() {
			for _, k := range s.keysFor(old) {
				if days[k] == id {
					delete(days, k)
				}
			}
		}
	}
	for id, r := range t.pending {
		if !r.Status.Active() {
			continue
		}
		for _, k := range s.keysFor(r) {
			if owner, taken := days[k]; taken && owner != id {
				return booking.ErrConflict
			}
			days[k] = id
		}
	}

	for id, r := range t.pending {
		s.rows[id] = r
	}
	s.days = days
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *tx) finish() {
	t.done = true
	t.pending = nil
	if !t.store.noRowLock {
		<-t.sem
	}
}
