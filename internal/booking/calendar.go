package booking

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// Date is a calendar day with no zone attached. It becomes an instant only
// through a Calendar.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalises y-m-d the way time.Date does (Jan 32 becomes Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) AddDays(n int) Date { return NewDate(d.Year, d.Month, d.Day+n) }

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Before(o Date) bool { return d.compare(o) < 0 }

func (d Date) After(o Date) bool { return d.compare(o) > 0 }

func (d Date) compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween lists every day of the closed range [start, end]. It returns
// nil when start is after end.
func DaysBetween(start, end Date) []Date {
	if start.After(end) {
		return nil
	}
	var days []Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Clock supplies the current instant. Production code uses SystemClock;
// tests inject a fixed one.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always reports t.
func FixedClock(t time.Time) Clock { return ClockFunc(func() time.Time { return t }) }

// Calendar converts between calendar dates and instants in the canonical
// zone. Every date<->instant conversion in the admission path goes through
// one Calendar so that day boundaries never depend on the server's zone.
type Calendar struct {
	loc   *time.Location
	clock Clock
}

// NewCalendar builds a Calendar. A nil location means UTC and a nil clock
// means SystemClock.
func NewCalendar(loc *time.Location, clock Clock) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Calendar{loc: loc, clock: clock}
}

// LoadCalendar resolves an IANA zone name such as "Asia/Bangkok".
func LoadCalendar(zone string, clock Clock) (*Calendar, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return NewCalendar(loc, clock), nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Now is the current instant expressed in the canonical zone.
func (c *Calendar) Now() time.Time { return c.clock.Now().In(c.loc) }

// Today is the current date in the canonical zone.
func (c *Calendar) Today() Date { return DateOf(c.Now()) }

// StartOf is the first instant of d.
func (c *Calendar) StartOf(d Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, c.loc)
}

// EndOf is the last instant of d at the microsecond precision both SQL
// backends store.
func (c *Calendar) EndOf(d Date) time.Time {
	return c.StartOf(d.AddDays(1)).Add(-time.Microsecond)
}

// Span converts the closed date range [start, end] into its closed instant range.
func (c *Calendar) Span(start, end Date) (time.Time, time.Time) {
	return c.StartOf(start), c.EndOf(end)
}

// DateAt returns the canonical-zone date containing t.
func (c *Calendar) DateAt(t time.Time) Date { return DateOf(t.In(c.loc)) }
