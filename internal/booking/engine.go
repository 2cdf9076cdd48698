package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Config is the admission behaviour fixed at construction time.
type Config struct {
	Policy Policy
	// InitialStatus of a confirmed reservation; ACCEPTED or PENDING.
	InitialStatus Status
	// MarkPaid labels new reservations PAID instead of UNPAID.
	MarkPaid        bool
	DefaultCurrency string
}

// DefaultConfig confirms immediately and marks the booking paid.
func DefaultConfig() Config {
	return Config{
		Policy:          DefaultPolicy(),
		InitialStatus:   StatusAccepted,
		MarkPaid:        true,
		DefaultCurrency: "THB",
	}
}

// Engine runs admissions and the renter-side changes to existing
// reservations (cancel, reschedule). It is safe for concurrent use.
type Engine struct {
	store    Store
	cal      *Calendar
	cfg      Config
	detector Detector
	locker   Locker
	events   EventPublisher
	log      *slog.Logger
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithLocker adds an application-level per-space lock held around every
// unit of work.
func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }

func WithPublisher(p EventPublisher) Option { return func(e *Engine) { e.events = p } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine panics when store or cal is nil.
func NewEngine(store Store, cal *Calendar, cfg Config, opts ...Option) *Engine {
	if store == nil || cal == nil {
		panic("nil store or calendar passed to booking.NewEngine")
	}
	if !cfg.InitialStatus.Active() {
		cfg.InitialStatus = StatusAccepted
	}
	if strings.TrimSpace(cfg.DefaultCurrency) == "" {
		cfg.DefaultCurrency = "THB"
	}
	e := &Engine{
		store:  store,
		cal:    cal,
		cfg:    cfg,
		locker: nopLocker{},
		events: nopPublisher{},
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Calendar() *Calendar { return e.cal }

// Window returns the bookable date range as of now.
func (e *Engine) Window() (earliest, latest Date) {
	return e.cfg.Policy.Window(e.cal.Today())
}

// Confirm admits req and commits a reservation, or returns the reason it
// was rejected. Nothing is written on any rejection path.
func (e *Engine) Confirm(ctx context.Context, req Request) (*Reservation, error) {
	adm := newAdmission()
	log := e.log.With(
		"op", "confirm",
		"space_id", req.SpaceID,
		"renter_id", req.RenterID,
		"start_date", req.StartDate.String(),
		"end_date", req.EndDate.String(),
	)

	if err := e.requireSpace(ctx, req.SpaceID, true); err != nil {
		return nil, e.reject(log, adm, err)
	}
	if err := e.cfg.Policy.ValidateHorizon(req.StartDate, req.EndDate, e.cal.Today()); err != nil {
		return nil, e.reject(log, adm, err)
	}
	adm.advance(StateValidated)

	start, end := e.cal.Span(req.StartDate, req.EndDate)
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = e.cfg.DefaultCurrency
	}
	payment := PaymentUnpaid
	if e.cfg.MarkPaid {
		payment = PaymentPaid
	}
	res := &Reservation{
		SpaceID:       req.SpaceID,
		RenterID:      req.RenterID,
		StartAt:       start,
		EndAt:         end,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Status:        e.cfg.InitialStatus,
		TotalPrice:    req.TotalPrice,
		Currency:      currency,
		PaymentStatus: payment,
	}

	err := e.inSpace(ctx, req.SpaceID, func(uow UnitOfWork) error {
		// the listing may have been withdrawn since the lookup above
		if !uow.Published() {
			return ErrSpaceNotFound
		}
		clash, found, err := e.detector.FirstConflict(ctx, uow, req.SpaceID, start, end, 0)
		if err != nil {
			return storeFailure("conflict check", err)
		}
		if found {
			log.Info("range collides with active reservation", "conflicting_id", clash.ID)
			return ErrConflict
		}
		adm.advance(StateConflictChecked)
		return storeFailure("insert", uow.Insert(ctx, res))
	})
	if err != nil {
		return nil, e.reject(log, adm, err)
	}
	adm.advance(StateCommitted)
	log.Info("booking committed", "reservation_id", res.ID, "status", res.Status, "trail", adm.trail)

	e.publish(ctx, EventConfirmed, *res)
	return res, nil
}

// Reschedule moves an existing active reservation to [start, end]. The
// reservation is excluded from its own overlap check.
func (e *Engine) Reschedule(ctx context.Context, reservationID, renterID uint64, startDate, endDate Date) (*Reservation, error) {
	log := e.log.With("op", "reschedule", "reservation_id", reservationID, "renter_id", renterID)
	current, err := e.Get(ctx, reservationID, renterID)
	if err != nil {
		return nil, err
	}
	if err := e.cfg.Policy.ValidateHorizon(startDate, endDate, e.cal.Today()); err != nil {
		log.Info("reschedule rejected", "code", Code(err))
		return nil, err
	}
	start, end := e.cal.Span(startDate, endDate)

	var out *Reservation
	err = e.inSpace(ctx, current.SpaceID, func(uow UnitOfWork) error {
		r, err := uow.Get(ctx, reservationID)
		if err != nil {
			return storeFailure("load", err)
		}
		e.withDates(r)
		if err := e.modifiable(r); err != nil {
			return err
		}
		conflict, err := e.detector.HasConflict(ctx, uow, r.SpaceID, start, end, r.ID)
		if err != nil {
			return storeFailure("conflict check", err)
		}
		if conflict {
			return ErrConflict
		}
		r.StartAt, r.EndAt = start, end
		r.StartDate, r.EndDate = startDate, endDate
		if err := uow.UpdateSpan(ctx, r); err != nil {
			return storeFailure("update span", err)
		}
		out = r
		return nil
	})
	if err != nil {
		log.Info("reschedule rejected", "code", Code(err), "err", err)
		return nil, err
	}
	log.Info("booking rescheduled", "start_date", startDate.String(), "end_date", endDate.String())
	e.publish(ctx, EventRescheduled, *out)
	return out, nil
}

// Cancel marks an active reservation that has not started yet as
// CANCELLED. The change commits before Cancel returns, so the next
// admission for the space no longer sees it.
func (e *Engine) Cancel(ctx context.Context, reservationID, renterID uint64) (*Reservation, error) {
	log := e.log.With("op", "cancel", "reservation_id", reservationID, "renter_id", renterID)
	current, err := e.Get(ctx, reservationID, renterID)
	if err != nil {
		return nil, err
	}

	var out *Reservation
	err = e.inSpace(ctx, current.SpaceID, func(uow UnitOfWork) error {
		r, err := uow.Get(ctx, reservationID)
		if err != nil {
			return storeFailure("load", err)
		}
		e.withDates(r)
		if err := e.modifiable(r); err != nil {
			return err
		}
		if err := uow.UpdateStatus(ctx, r.ID, StatusCancelled); err != nil {
			return storeFailure("update status", err)
		}
		r.Status = StatusCancelled
		out = r
		return nil
	})
	if err != nil {
		log.Info("cancel rejected", "code", Code(err), "err", err)
		return nil, err
	}
	log.Info("booking cancelled", "space_id", out.SpaceID)
	e.publish(ctx, EventCancelled, *out)
	return out, nil
}

// Decide settles a PENDING reservation on behalf of the space's host:
// accept moves it to ACCEPTED, otherwise it becomes REJECTED and stops
// blocking its dates. Accepting is only possible before the first day.
// Callers verify that the acting host owns the space.
func (e *Engine) Decide(ctx context.Context, reservationID uint64, accept bool) (*Reservation, error) {
	log := e.log.With("op", "decide", "reservation_id", reservationID, "accept", accept)
	current, err := e.Find(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	to, typ := StatusRejected, EventRejected
	if accept {
		to, typ = StatusAccepted, EventAccepted
	}

	var out *Reservation
	err = e.inSpace(ctx, current.SpaceID, func(uow UnitOfWork) error {
		r, err := uow.Get(ctx, reservationID)
		if err != nil {
			return storeFailure("load", err)
		}
		e.withDates(r)
		if r.Status != StatusPending {
			return ErrNotModifiable
		}
		if accept && !r.StartDate.After(e.cal.Today()) {
			return ErrNotModifiable
		}
		if err := uow.UpdateStatus(ctx, r.ID, to); err != nil {
			return storeFailure("update status", err)
		}
		r.Status = to
		out = r
		return nil
	})
	if err != nil {
		log.Info("decision rejected", "code", Code(err), "err", err)
		return nil, err
	}
	log.Info("booking decided", "space_id", out.SpaceID, "status", out.Status)
	e.publish(ctx, typ, *out)
	return out, nil
}

// Find loads a reservation regardless of who made it.
func (e *Engine) Find(ctx context.Context, reservationID uint64) (*Reservation, error) {
	r, err := e.store.Get(ctx, reservationID)
	if err != nil {
		return nil, storeFailure("load reservation", err)
	}
	e.withDates(r)
	return r, nil
}

// Get returns a reservation owned by renterID.
func (e *Engine) Get(ctx context.Context, reservationID, renterID uint64) (*Reservation, error) {
	r, err := e.Find(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.RenterID != renterID {
		return nil, ErrForbidden
	}
	return r, nil
}

// ListForRenter returns every reservation made by renterID, newest first.
func (e *Engine) ListForRenter(ctx context.Context, renterID uint64) ([]Reservation, error) {
	items, err := e.store.ListByRenter(ctx, renterID)
	if err != nil {
		return nil, storeFailure("list by renter", err)
	}
	for i := range items {
		e.withDates(&items[i])
	}
	return items, nil
}

// ActiveReservations returns the active reservations of a space ordered by
// start. Withdrawn spaces are included so their hosts can still see them.
func (e *Engine) ActiveReservations(ctx context.Context, spaceID uint64) ([]Reservation, error) {
	return e.activeReservations(ctx, spaceID, false)
}

// Reservations lists the active date ranges of a published space ordered by
// start.
func (e *Engine) Reservations(ctx context.Context, spaceID uint64) ([]Span, error) {
	items, err := e.activeReservations(ctx, spaceID, true)
	if err != nil {
		return nil, err
	}
	spans := make([]Span, 0, len(items))
	for _, r := range items {
		spans = append(spans, Span{Start: r.StartDate, End: r.EndDate})
	}
	return spans, nil
}

func (e *Engine) activeReservations(ctx context.Context, spaceID uint64, published bool) ([]Reservation, error) {
	if err := e.requireSpace(ctx, spaceID, published); err != nil {
		return nil, err
	}
	items, err := e.store.ListActive(ctx, spaceID)
	if err != nil {
		return nil, storeFailure("list active", err)
	}
	for i := range items {
		e.withDates(&items[i])
	}
	return items, nil
}

// requireSpace reports ErrSpaceNotFound for missing spaces, and for
// unpublished ones when published is set.
func (e *Engine) requireSpace(ctx context.Context, spaceID uint64, published bool) error {
	exists, listed, err := e.store.SpaceStatus(ctx, spaceID)
	if err != nil {
		return storeFailure("space lookup", err)
	}
	if !exists || (published && !listed) {
		return ErrSpaceNotFound
	}
	return nil
}

func (e *Engine) withDates(r *Reservation) {
	r.StartDate = e.cal.DateAt(r.StartAt)
	r.EndDate = e.cal.DateAt(r.EndAt)
}

// modifiable: only active reservations whose first day is still in the future.
func (e *Engine) modifiable(r *Reservation) error {
	if !r.Status.Active() || !r.StartDate.After(e.cal.Today()) {
		return ErrNotModifiable
	}
	return nil
}

// inSpace runs fn inside a unit of work for spaceID, holding the per-space
// lock for its whole duration. The unit is rolled back on every path that
// does not reach a successful commit.
func (e *Engine) inSpace(ctx context.Context, spaceID uint64, fn func(UnitOfWork) error) error {
	unlock, err := e.locker.Lock(ctx, SpaceLockKey(spaceID))
	if err != nil {
		return storeFailure("acquire space lock", err)
	}
	defer unlock()

	uow, err := e.store.Begin(ctx, spaceID)
	if err != nil {
		return storeFailure("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback()
		}
	}()
	if err := fn(uow); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return storeFailure("commit", err)
	}
	committed = true
	return nil
}

func (e *Engine) reject(log *slog.Logger, adm *admission, err error) error {
	adm.advance(RejectionState(err))
	if adm.state == StateFailed {
		log.Error("admission failed", "trail", adm.trail, "err", err)
	} else {
		var oe *OverlapError
		if errors.As(err, &oe) {
			log = log.With("backstop", oe.Constraint)
		}
		log.Info("admission rejected", "state", adm.state, "code", Code(err))
	}
	return err
}

// publish never fails the caller; the reservation is already committed.
func (e *Engine) publish(ctx context.Context, typ EventType, r Reservation) {
	ev := Event{Type: typ, Reservation: r, OccurredAt: e.cal.Now()}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warn("publish event failed", "type", typ, "reservation_id", r.ID, "err", err)
	}
}
