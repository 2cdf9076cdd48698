package booking_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/lock"
	"github.com/iliyamo/venue-booking/internal/repository/memstore"
)

// 10:00 on 2024-01-01 in Bangkok; the window is 2024-01-02 .. 2024-01-08.
var testNow = time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []booking.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev booking.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

type fixture struct {
	engine *booking.Engine
	store  *memstore.Store
	cal    *booking.Calendar
	events *recorder
}

func newFixture(t *testing.T, cfg booking.Config, storeOpts ...memstore.Option) fixture {
	t.Helper()
	cal, err := booking.LoadCalendar("Asia/Bangkok", booking.FixedClock(testNow))
	require.NoError(t, err)

	opts := append([]memstore.Option{memstore.WithLocation(cal.Location()), memstore.WithNow(cal.Now)}, storeOpts...)
	store := memstore.New(opts...)
	store.AddSpace(1)
	store.AddSpace(2)

	events := &recorder{}
	engine := booking.NewEngine(store, cal, cfg, booking.WithPublisher(events))
	return fixture{engine: engine, store: store, cal: cal, events: events}
}

func day(d int) booking.Date { return booking.NewDate(2024, 1, d) }

func request(space uint64, start, end booking.Date) booking.Request {
	return booking.Request{
		SpaceID:    space,
		RenterID:   42,
		StartDate:  start,
		EndDate:    end,
		TotalPrice: decimal.RequireFromString("1500.50"),
	}
}

func TestConfirmCommits(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())

	res, err := f.engine.Confirm(context.Background(), request(1, day(2), day(3)))
	require.NoError(t, err)
	require.NotZero(t, res.ID)
	require.Equal(t, booking.StatusAccepted, res.Status)
	require.Equal(t, booking.PaymentPaid, res.PaymentStatus)
	require.Equal(t, "THB", res.Currency)
	require.Equal(t, "2024-01-02T00:00:00+07:00", res.StartAt.Format(time.RFC3339))
	require.Equal(t, "2024-01-03T23:59:59.999999+07:00", res.EndAt.Format(time.RFC3339Nano))
	require.True(t, decimal.RequireFromString("1500.5").Equal(res.TotalPrice))

	stored := f.store.All()
	require.Len(t, stored, 1)
	require.Equal(t, res.ID, stored[0].ID)

	require.Len(t, f.events.events, 1)
	require.Equal(t, booking.EventConfirmed, f.events.events[0].Type)
	require.Equal(t, res.ID, f.events.events[0].Reservation.ID)
}

func TestConfirmPendingUnpaid(t *testing.T) {
	cfg := booking.DefaultConfig()
	cfg.InitialStatus = booking.StatusPending
	cfg.MarkPaid = false
	f := newFixture(t, cfg)

	req := request(1, day(4), day(4))
	req.Currency = "usd"
	res, err := f.engine.Confirm(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, booking.StatusPending, res.Status)
	require.Equal(t, booking.PaymentUnpaid, res.PaymentStatus)
	require.Equal(t, "USD", res.Currency)

	// PENDING blocks like ACCEPTED.
	_, err = f.engine.Confirm(context.Background(), request(1, day(4), day(5)))
	require.ErrorIs(t, err, booking.ErrConflict)
}

func TestConfirmRejections(t *testing.T) {
	tests := []struct {
		name string
		req  booking.Request
		want error
		code booking.ErrCode
	}{
		{"unknown space", request(99, day(2), day(3)), booking.ErrSpaceNotFound, booking.CodeNotFound},
		{"unknown space with bad range", request(99, day(5), day(3)), booking.ErrSpaceNotFound, booking.CodeNotFound},
		{"start after end", request(1, day(5), day(3)), booking.ErrInvalidRange, booking.CodeInvalidRange},
		{"starts today", request(1, day(1), day(2)), booking.ErrOutOfWindow, booking.CodeOutOfWindow},
		{"beyond horizon", request(1, day(7), day(9)), booking.ErrOutOfWindow, booking.CodeOutOfWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, booking.DefaultConfig())
			_, err := f.engine.Confirm(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, tt.code, booking.Code(err))
			require.Empty(t, f.store.All())
			require.Empty(t, f.events.events)
		})
	}
}

func TestConfirmOverlap(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	ctx := context.Background()

	_, err := f.engine.Confirm(ctx, request(1, day(3), day(5)))
	require.NoError(t, err)

	_, err = f.engine.Confirm(ctx, request(1, day(5), day(6)))
	require.ErrorIs(t, err, booking.ErrConflict, "sharing the last day collides")

	_, err = f.engine.Confirm(ctx, request(1, day(2), day(8)))
	require.ErrorIs(t, err, booking.ErrConflict)

	_, err = f.engine.Confirm(ctx, request(1, day(6), day(8)))
	require.NoError(t, err, "the next day is free")

	_, err = f.engine.Confirm(ctx, request(1, day(2), day(2)))
	require.NoError(t, err, "the previous day is free")

	_, err = f.engine.Confirm(ctx, request(2, day(3), day(5)))
	require.NoError(t, err, "other spaces are independent")

	require.Len(t, f.store.All(), 4)
}

func TestInactiveReservationsDoNotBlock(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	start, end := f.cal.Span(day(3), day(4))
	f.store.Seed(booking.Reservation{SpaceID: 1, RenterID: 7, StartAt: start, EndAt: end, Status: booking.StatusCancelled})
	f.store.Seed(booking.Reservation{SpaceID: 1, RenterID: 7, StartAt: start, EndAt: end, Status: booking.StatusRejected})

	_, err := f.engine.Confirm(context.Background(), request(1, day(3), day(4)))
	require.NoError(t, err)
}

func TestConcurrentConfirmsAdmitExactlyOne(t *testing.T) {
	cases := map[string]func(t *testing.T) fixture{
		"row lock": func(t *testing.T) fixture { return newFixture(t, booking.DefaultConfig()) },
		"storage backstop only": func(t *testing.T) fixture {
			return newFixture(t, booking.DefaultConfig(), memstore.WithoutRowLock())
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			f := build(t)
			const n = 32
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				ok        int
				conflicts int
			)
			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					req := request(1, day(3+i%2), day(4+i%2))
					_, err := f.engine.Confirm(context.Background(), req)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, booking.ErrConflict):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i)
			}
			close(start)
			wg.Wait()

			require.Equal(t, 1, ok)
			require.Equal(t, n-1, conflicts)
			assertNoActiveOverlap(t, f.store.All())
		})
	}
}

func TestConcurrentConfirmsWithLocalLock(t *testing.T) {
	cal, err := booking.LoadCalendar("Asia/Bangkok", booking.FixedClock(testNow))
	require.NoError(t, err)
	store := memstore.New(memstore.WithLocation(cal.Location()), memstore.WithoutRowLock())
	store.AddSpace(1)
	engine := booking.NewEngine(store, cal, booking.DefaultConfig(), booking.WithLocker(lock.NewLocal()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.Confirm(context.Background(), request(1, day(2), day(8)))
		}()
	}
	wg.Wait()
	require.Len(t, store.All(), 1)
}

func TestSequentialRandomAdmissionsNeverOverlap(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()

	for i := 0; i < 300; i++ {
		space := uint64(1 + rng.Intn(2))
		start := day(rng.Intn(10))
		end := start.AddDays(rng.Intn(4) - 1)
		res, err := f.engine.Confirm(ctx, request(space, start, end))
		if err == nil && rng.Intn(3) == 0 {
			_, err = f.engine.Cancel(ctx, res.ID, 42)
			require.NoError(t, err)
		}
		if err != nil {
			require.NotEmpty(t, booking.Code(err), err)
			require.NotEqual(t, booking.CodeStoreFailure, booking.Code(err))
		}
	}
	assertNoActiveOverlap(t, f.store.All())
}

func assertNoActiveOverlap(t *testing.T, rows []booking.Reservation) {
	t.Helper()
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			a, b := rows[i], rows[j]
			if a.SpaceID != b.SpaceID || !a.Status.Active() || !b.Status.Active() {
				continue
			}
			require.False(t, booking.Overlaps(a.StartAt, a.EndAt, b.StartAt, b.EndAt),
				fmt.Sprintf("reservations %d and %d overlap", a.ID, b.ID))
		}
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	ctx := context.Background()

	res, err := f.engine.Confirm(ctx, request(1, day(3), day(4)))
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, res.ID, 7)
	require.ErrorIs(t, err, booking.ErrForbidden)

	_, err = f.engine.Cancel(ctx, 999, 42)
	require.ErrorIs(t, err, booking.ErrReservationNotFound)

	cancelled, err := f.engine.Cancel(ctx, res.ID, 42)
	require.NoError(t, err)
	require.Equal(t, booking.StatusCancelled, cancelled.Status)

	_, err = f.engine.Cancel(ctx, res.ID, 42)
	require.ErrorIs(t, err, booking.ErrNotModifiable)

	// The freed range is immediately bookable again.
	_, err = f.engine.Confirm(ctx, request(1, day(3), day(4)))
	require.NoError(t, err)

	require.Len(t, f.events.events, 3)
	require.Equal(t, booking.EventCancelled, f.events.events[1].Type)
}

func TestCancelStartedReservation(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	start, end := f.cal.Span(day(1), day(2))
	seeded := f.store.Seed(booking.Reservation{SpaceID: 1, RenterID: 42, StartAt: start, EndAt: end, Status: booking.StatusAccepted})

	_, err := f.engine.Cancel(context.Background(), seeded.ID, 42)
	require.ErrorIs(t, err, booking.ErrNotModifiable)
	require.Equal(t, booking.CodeNotModifiable, booking.Code(err))
}

func TestDecidePending(t *testing.T) {
	cfg := booking.DefaultConfig()
	cfg.InitialStatus = booking.StatusPending
	f := newFixture(t, cfg)
	ctx := context.Background()

	first, err := f.engine.Confirm(ctx, request(1, day(2), day(3)))
	require.NoError(t, err)
	second, err := f.engine.Confirm(ctx, request(1, day(5), day(6)))
	require.NoError(t, err)

	accepted, err := f.engine.Decide(ctx, first.ID, true)
	require.NoError(t, err)
	require.Equal(t, booking.StatusAccepted, accepted.Status)

	// Only PENDING reservations can be decided.
	_, err = f.engine.Decide(ctx, first.ID, false)
	require.ErrorIs(t, err, booking.ErrNotModifiable)

	rejected, err := f.engine.Decide(ctx, second.ID, false)
	require.NoError(t, err)
	require.Equal(t, booking.StatusRejected, rejected.Status)

	// A rejected request no longer blocks its dates.
	_, err = f.engine.Confirm(ctx, request(1, day(5), day(6)))
	require.NoError(t, err)

	_, err = f.engine.Decide(ctx, 999, true)
	require.ErrorIs(t, err, booking.ErrReservationNotFound)

	types := make([]booking.EventType, 0, len(f.events.events))
	for _, ev := range f.events.events {
		types = append(types, ev.Type)
	}
	require.Equal(t, []booking.EventType{
		booking.EventConfirmed, booking.EventConfirmed,
		booking.EventAccepted, booking.EventRejected,
		booking.EventConfirmed,
	}, types)
}

func TestDecideStartedPendingCanOnlyBeRejected(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	start, end := f.cal.Span(day(1), day(2))
	seeded := f.store.Seed(booking.Reservation{SpaceID: 1, RenterID: 42, StartAt: start, EndAt: end, Status: booking.StatusPending})

	_, err := f.engine.Decide(context.Background(), seeded.ID, true)
	require.ErrorIs(t, err, booking.ErrNotModifiable)

	r, err := f.engine.Decide(context.Background(), seeded.ID, false)
	require.NoError(t, err)
	require.Equal(t, booking.StatusRejected, r.Status)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	ctx := context.Background()

	mine, err := f.engine.Confirm(ctx, request(1, day(3), day(4)))
	require.NoError(t, err)
	other := request(1, day(7), day(8))
	other.RenterID = 7
	_, err = f.engine.Confirm(ctx, other)
	require.NoError(t, err)

	moved, err := f.engine.Reschedule(ctx, mine.ID, 42, day(4), day(5))
	require.NoError(t, err, "overlapping only its own old range is allowed")
	require.Equal(t, day(4), moved.StartDate)
	require.Equal(t, day(5), moved.EndDate)

	_, err = f.engine.Reschedule(ctx, mine.ID, 42, day(6), day(7))
	require.ErrorIs(t, err, booking.ErrConflict)

	_, err = f.engine.Reschedule(ctx, mine.ID, 42, day(6), day(5))
	require.ErrorIs(t, err, booking.ErrInvalidRange)

	_, err = f.engine.Reschedule(ctx, mine.ID, 42, day(8), day(9))
	require.ErrorIs(t, err, booking.ErrOutOfWindow)

	_, err = f.engine.Reschedule(ctx, mine.ID, 7, day(2), day(2))
	require.ErrorIs(t, err, booking.ErrForbidden)

	got, err := f.engine.Get(ctx, mine.ID, 42)
	require.NoError(t, err)
	require.Equal(t, day(4), got.StartDate)
	require.Equal(t, day(5), got.EndDate)

	// Day 3 was released by the move.
	_, err = f.engine.Confirm(ctx, request(1, day(3), day(3)))
	require.NoError(t, err)
	assertNoActiveOverlap(t, f.store.All())
}

func TestReservationsAndListForRenter(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	ctx := context.Background()

	for _, r := range []booking.Request{request(1, day(6), day(7)), request(1, day(2), day(3)), request(2, day(4), day(4))} {
		_, err := f.engine.Confirm(ctx, r)
		require.NoError(t, err)
	}

	spans, err := f.engine.Reservations(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []booking.Span{{Start: day(2), End: day(3)}, {Start: day(6), End: day(7)}}, spans)

	_, err = f.engine.Reservations(ctx, 99)
	require.ErrorIs(t, err, booking.ErrSpaceNotFound)

	mine, err := f.engine.ListForRenter(ctx, 42)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	require.Equal(t, day(4), mine[0].StartDate, "newest first")

	earliest, latest := f.engine.Window()
	require.Equal(t, day(2), earliest)
	require.Equal(t, day(8), latest)
}

func TestWithdrawnSpaceKeepsItsReservations(t *testing.T) {
	cfg := booking.DefaultConfig()
	cfg.InitialStatus = booking.StatusPending
	f := newFixture(t, cfg)
	ctx := context.Background()

	kept, err := f.engine.Confirm(ctx, request(1, day(2), day(3)))
	require.NoError(t, err)
	moved, err := f.engine.Confirm(ctx, request(1, day(5), day(5)))
	require.NoError(t, err)
	dropped, err := f.engine.Confirm(ctx, request(1, day(7), day(7)))
	require.NoError(t, err)
	f.store.SetPublished(1, false)

	_, err = f.engine.Confirm(ctx, request(1, day(4), day(4)))
	require.ErrorIs(t, err, booking.ErrSpaceNotFound)
	_, err = f.engine.Reservations(ctx, 1)
	require.ErrorIs(t, err, booking.ErrSpaceNotFound)

	hosted, err := f.engine.ActiveReservations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hosted, 3)

	accepted, err := f.engine.Decide(ctx, kept.ID, true)
	require.NoError(t, err)
	require.Equal(t, booking.StatusAccepted, accepted.Status)

	rescheduled, err := f.engine.Reschedule(ctx, moved.ID, 42, day(6), day(6))
	require.NoError(t, err)
	require.Equal(t, day(6), rescheduled.StartDate)

	cancelled, err := f.engine.Cancel(ctx, dropped.ID, 42)
	require.NoError(t, err)
	require.Equal(t, booking.StatusCancelled, cancelled.Status)

	f.store.SetPublished(1, true)
	_, err = f.engine.Confirm(ctx, request(1, day(4), day(4)))
	require.NoError(t, err)
}

// staleLookup answers the pre-check as if the space were still listed.
type staleLookup struct{ *memstore.Store }

func (staleLookup) SpaceStatus(context.Context, uint64) (bool, bool, error) { return true, true, nil }

func TestConfirmRechecksPublicationUnderLock(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	f.store.SetPublished(1, false)
	engine := booking.NewEngine(staleLookup{f.store}, f.cal, booking.DefaultConfig())

	_, err := engine.Confirm(context.Background(), request(1, day(2), day(3)))
	require.ErrorIs(t, err, booking.ErrSpaceNotFound)
	require.Empty(t, f.store.All())
}

// backstopStore lets every insert trip the storage overlap constraint.
type backstopStore struct{ *memstore.Store }

func (b backstopStore) Begin(ctx context.Context, spaceID uint64) (booking.UnitOfWork, error) {
	uow, err := b.Store.Begin(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return backstopUnit{uow}, nil
}

type backstopUnit struct{ booking.UnitOfWork }

func (backstopUnit) Insert(context.Context, *booking.Reservation) error {
	return &booking.OverlapError{Constraint: "excl_reservations_active_overlap"}
}

func TestBackstopConflictIsLoggedWithConstraint(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	engine := booking.NewEngine(backstopStore{f.store}, f.cal, booking.DefaultConfig(), booking.WithLogger(log))

	_, err := engine.Confirm(context.Background(), request(1, day(2), day(3)))
	require.ErrorIs(t, err, booking.ErrConflict)
	require.Equal(t, booking.CodeConflict, booking.Code(err))
	require.Contains(t, buf.String(), `"backstop":"excl_reservations_active_overlap"`)
	require.Contains(t, buf.String(), `"state":"REJECTED_CONFLICT"`)
	require.Empty(t, f.store.All())
}

func TestPublishFailureDoesNotFailAdmission(t *testing.T) {
	f := newFixture(t, booking.DefaultConfig())
	f.events.err = errors.New("broker down")

	res, err := f.engine.Confirm(context.Background(), request(1, day(2), day(2)))
	require.NoError(t, err)
	require.NotZero(t, res.ID)
}

type brokenStore struct {
	*memstore.Store
	err error
}

func (b brokenStore) SpaceStatus(context.Context, uint64) (bool, bool, error) { return false, false, b.err }

func TestStoreFailureIsReported(t *testing.T) {
	cal := booking.NewCalendar(time.UTC, booking.FixedClock(testNow))
	engine := booking.NewEngine(brokenStore{Store: memstore.New(), err: errors.New("connection refused")}, cal, booking.DefaultConfig())

	_, err := engine.Confirm(context.Background(), request(1, day(2), day(3)))
	require.ErrorIs(t, err, booking.ErrStore)
	require.Equal(t, booking.CodeStoreFailure, booking.Code(err))
}

func TestLockTimeoutIsStoreFailure(t *testing.T) {
	cal := booking.NewCalendar(time.UTC, booking.FixedClock(testNow))
	store := memstore.New()
	store.AddSpace(1)
	locker := lock.NewLocal()
	engine := booking.NewEngine(store, cal, booking.DefaultConfig(), booking.WithLocker(locker))

	unlock, err := locker.Lock(context.Background(), booking.SpaceLockKey(1))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = engine.Confirm(ctx, request(1, day(2), day(3)))
	require.ErrorIs(t, err, booking.ErrStore)
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.Empty(t, store.All())
}
