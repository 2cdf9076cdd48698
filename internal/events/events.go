package events

import (
	"context"
	"errors"

	"github.com/iliyamo/venue-booking/internal/booking"
)

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, booking.Event) error { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []booking.EventPublisher

func (m Multi) Publish(ctx context.Context, ev booking.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
