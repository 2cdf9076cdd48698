package booking

// Policy defines the booking horizon: the earliest bookable day is
// today+MinLeadDays and the latest is MaxHorizonDays after that.
type Policy struct {
	MinLeadDays    int
	MaxHorizonDays int
}

// DefaultPolicy opens a seven day window starting tomorrow.
func DefaultPolicy() Policy {
	return Policy{MinLeadDays: 1, MaxHorizonDays: 6}
}

// Window returns the first and last bookable dates relative to today.
func (p Policy) Window(today Date) (earliest, latest Date) {
	earliest = today.AddDays(p.MinLeadDays)
	latest = earliest.AddDays(p.MaxHorizonDays)
	return earliest, latest
}

// ValidateHorizon checks that [start, end] is well formed and lies inside
// the window computed from today. today must already be expressed in the
// canonical zone.
func (p Policy) ValidateHorizon(start, end, today Date) error {
	if start.After(end) {
		return ErrInvalidRange
	}
	earliest, latest := p.Window(today)
	if start.Before(earliest) || end.After(latest) {
		return &WindowError{Earliest: earliest, Latest: latest}
	}
	return nil
}
