package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/queue"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func event() booking.Event {
	return booking.Event{
		Type:        booking.EventCancelled,
		Reservation: booking.Reservation{ID: 5, SpaceID: 77, RenterID: 2, Status: booking.StatusCancelled},
		OccurredAt:  time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherKeysBySpace(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{w: w}

	require.NoError(t, p.Publish(context.Background(), event()))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	require.Equal(t, "77", string(msg.Key))
	require.Equal(t, "booking.cancelled", string(msg.Headers[0].Value))

	var payload queue.BookingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	require.Equal(t, uint64(5), payload.ReservationID)
	require.Equal(t, "CANCELLED", payload.Status)

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

type publisherFunc func(context.Context, booking.Event) error

func (f publisherFunc) Publish(ctx context.Context, ev booking.Event) error { return f(ctx, ev) }

func TestMultiJoinsErrors(t *testing.T) {
	calls := 0
	ok := publisherFunc(func(context.Context, booking.Event) error { calls++; return nil })
	boom := errors.New("boom")
	bad := publisherFunc(func(context.Context, booking.Event) error { calls++; return boom })

	err := Multi{ok, bad, Noop{}, ok}.Publish(context.Background(), event())
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)

	require.NoError(t, Multi{ok}.Publish(context.Background(), event()))
}

// silentBroker accepts TCP connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, conn)
				_ = conn.Close()
			}()
		}
	}()
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestRabbitPublishGivesUpOnSilentBroker(t *testing.T) {
	p := NewRabbitPublisher(silentBroker(t), nil)
	p.DialTimeout = 200 * time.Millisecond

	begin := time.Now()
	err := p.Publish(context.Background(), event())
	require.Error(t, err)
	require.Less(t, time.Since(begin), 3*time.Second)
}

func TestRabbitPublishHonoursContextDeadline(t *testing.T) {
	p := NewRabbitPublisher(silentBroker(t), nil)
	require.Equal(t, DefaultDialTimeout, p.DialTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	begin := time.Now()
	require.Error(t, p.Publish(ctx, event()))
	require.Less(t, time.Since(begin), DefaultDialTimeout)
}
