package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type querierFunc func(ctx context.Context, spaceID uint64, start, end time.Time) ([]Reservation, error)

func (f querierFunc) ActiveInRange(ctx context.Context, spaceID uint64, start, end time.Time) ([]Reservation, error) {
	return f(ctx, spaceID, start, end)
}

func fixed(rows ...Reservation) querierFunc {
	return func(context.Context, uint64, time.Time, time.Time) ([]Reservation, error) { return rows, nil }
}

func TestOverlaps(t *testing.T) {
	cal := NewCalendar(time.UTC, nil)
	s1, e1 := cal.Span(NewDate(2024, 1, 2), NewDate(2024, 1, 4))

	tests := []struct {
		name       string
		start, end Date
		want       bool
	}{
		{"identical", NewDate(2024, 1, 2), NewDate(2024, 1, 4), true},
		{"shares last day", NewDate(2024, 1, 4), NewDate(2024, 1, 6), true},
		{"shares first day", NewDate(2023, 12, 30), NewDate(2024, 1, 2), true},
		{"contains", NewDate(2024, 1, 1), NewDate(2024, 1, 8), true},
		{"inside", NewDate(2024, 1, 3), NewDate(2024, 1, 3), true},
		{"day after", NewDate(2024, 1, 5), NewDate(2024, 1, 6), false},
		{"day before", NewDate(2023, 12, 30), NewDate(2024, 1, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s2, e2 := cal.Span(tt.start, tt.end)
			require.Equal(t, tt.want, Overlaps(s1, e1, s2, e2))
			require.Equal(t, tt.want, Overlaps(s2, e2, s1, e1))
		})
	}
}

func TestDetector(t *testing.T) {
	cal := NewCalendar(time.UTC, nil)
	start, end := cal.Span(NewDate(2024, 1, 3), NewDate(2024, 1, 4))
	existing := Reservation{ID: 9, SpaceID: 1, StartAt: start, EndAt: end, Status: StatusPending}

	var d Detector
	ctx := context.Background()

	hit, err := d.HasConflict(ctx, fixed(existing), 1, start, end, 0)
	require.NoError(t, err)
	require.True(t, hit)

	hit, err = d.HasConflict(ctx, fixed(existing), 1, start, end, 9)
	require.NoError(t, err)
	require.False(t, hit, "a reservation never conflicts with itself")

	cancelled := existing
	cancelled.Status = StatusCancelled
	rejected := existing
	rejected.Status = StatusRejected
	otherSpace := existing
	otherSpace.SpaceID = 2
	hit, err = d.HasConflict(ctx, fixed(cancelled, rejected, otherSpace), 1, start, end, 0)
	require.NoError(t, err)
	require.False(t, hit)

	clash, found, err := d.FirstConflict(ctx, fixed(cancelled, existing), 1, end, end, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(9), clash.ID)

	boom := errors.New("boom")
	_, err = d.HasConflict(ctx, querierFunc(func(context.Context, uint64, time.Time, time.Time) ([]Reservation, error) {
		return nil, boom
	}), 1, start, end, 0)
	require.ErrorIs(t, err, boom)
}
