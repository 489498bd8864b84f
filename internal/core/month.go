package core

import (
	"fmt"
	"strings"
	"time"
)

// Month is a budget month, always normalized to the first day at UTC midnight.
type Month struct {
	t time.Time
}

// NewMonth returns the month for year and month (1-12). Out of range months
// roll over the way time.Date does.
func NewMonth(year int, month time.Month) Month {
	return Month{t: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// CurrentMonth returns the month containing now.
func CurrentMonth(now time.Time) Month {
	return MonthOf(now)
}

// ParseMonth accepts 2006-01-02 (any day, truncated) or 2006-01.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return MonthOf(t), nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return MonthOf(t), nil
	}
	return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

func (m Month) Year() int           { return m.t.Year() }
func (m Month) Month() time.Month   { return m.t.Month() }
func (m Month) IsZero() bool        { return m.t.IsZero() }
func (m Month) Start() time.Time    { return m.t }
func (m Month) Next() Month         { return m.AddMonths(1) }
func (m Month) Prev() Month         { return m.AddMonths(-1) }
func (m Month) Before(o Month) bool { return m.t.Before(o.t) }
func (m Month) After(o Month) bool  { return m.t.After(o.t) }

// AddMonths shifts the month by n calendar months.
func (m Month) AddMonths(n int) Month {
	return NewMonth(m.t.Year(), m.t.Month()+time.Month(n))
}

// Contains reports whether d falls inside the month.
func (m Month) Contains(d Date) bool {
	return d.Year() == m.Year() && d.Time.Month() == m.Month()
}

// MonthsUntil counts calendar months from m to o, so the same month is 0.
func (m Month) MonthsUntil(o Month) int {
	return (o.Year()-m.Year())*12 + int(o.Month()) - int(m.Month())
}

// String returns the wire form, 2006-01-01.
func (m Month) String() string {
	return m.t.Format(time.DateOnly)
}

// Key returns the short form, 2006-01, used in URLs and cache keys.
func (m Month) Key() string {
	return m.t.Format("2006-01")
}

// Label is the human title used in headings, e.g. "March 2025".
func (m Month) Label() string {
	return m.t.Format("January 2006")
}
