package booking

import (
	"context"
	"time"
)

// ActiveRangeQuerier returns the active reservations of a space whose
// intervals may intersect the closed range [start, end]. Implementations
// may over-approximate; the detector re-checks every candidate.
type ActiveRangeQuerier interface {
	ActiveInRange(ctx context.Context, spaceID uint64, start, end time.Time) ([]Reservation, error)
}

// Overlaps is the closed-interval intersection test. Whole days are
// reserved, so touching endpoints count as a collision.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// Detector decides whether a candidate range collides with an existing
// active reservation.
type Detector struct{}

// HasConflict reports whether any active reservation of spaceID other than
// excludeID intersects [start, end]. excludeID 0 excludes nothing.
func (d Detector) HasConflict(ctx context.Context, q ActiveRangeQuerier, spaceID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	_, found, err := d.FirstConflict(ctx, q, spaceID, start, end, excludeID)
	return found, err
}

// FirstConflict is HasConflict that also returns the colliding reservation.
func (Detector) FirstConflict(ctx context.Context, q ActiveRangeQuerier, spaceID uint64, start, end time.Time, excludeID uint64) (Reservation, bool, error) {
	candidates, err := q.ActiveInRange(ctx, spaceID, start, end)
	if err != nil {
		return Reservation{}, false, err
	}
	for _, r := range candidates {
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if r.SpaceID != spaceID || !r.Status.Active() {
			continue
		}
		if Overlaps(r.StartAt, r.EndAt, start, end) {
			return r, true, nil
		}
	}
	return Reservation{}, false, nil
}
