package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-booking/internal/booking"
)

func sampleEvent() BookingEvent {
	return FromBooking(booking.Event{
		Type: booking.EventConfirmed,
		Reservation: booking.Reservation{
			ID:            12,
			SpaceID:       3,
			RenterID:      42,
			StartDate:     booking.NewDate(2024, 1, 2),
			EndDate:       booking.NewDate(2024, 1, 3),
			Status:        booking.StatusAccepted,
			PaymentStatus: booking.PaymentPaid,
			TotalPrice:    decimal.RequireFromString("2400.5"),
			Currency:      "THB",
		},
		OccurredAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600)),
	})
}

func TestFromBooking(t *testing.T) {
	ev := sampleEvent()
	require.Equal(t, "booking.confirmed", ev.Type)
	require.Equal(t, "2024-01-02", ev.StartDate)
	require.Equal(t, "2400.50", ev.TotalPrice)
	require.Equal(t, "2024-01-01T03:00:00Z", ev.OccurredAt)
}

func TestFormatLine(t *testing.T) {
	require.Equal(t,
		"[2024-01-01T03:00:00Z] Reservation confirmed | reservation_id=12 | renter_id=42 | space_id=3 | dates=2024-01-02..2024-01-03 | status=ACCEPTED | payment=PAID | total=2400.50 THB\n",
		FormatLine(sampleEvent()))
}

func TestHandleMessageAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := &Consumer{LogDir: dir}

	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, c.handleMessage(body))
	require.NoError(t, c.handleMessage(body))

	raw, err := os.ReadFile(filepath.Join(dir, "booking.log"))
	require.NoError(t, err)
	require.Equal(t, 2*len(FormatLine(sampleEvent())), len(raw))

	require.Error(t, c.handleMessage([]byte("not json")))
	require.Error(t, c.handleMessage([]byte(`{"type":"booking.confirmed"}`)))
}
