// Package bizclock resolves calendar days in the business timezone, independent of the server locale.
package bizclock

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ledger's date format.
const DateLayout = "2006-01-02"

// TimestampLayout is the ledger's Submitted At format.
const TimestampLayout = "2006-01-02 15:04:05"

// MonthLayout names month tables, e.g. "Feb 2026".
const MonthLayout = "Jan 2006"

// Clock answers "what day is it" for the business.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a clock for loc. A nil now uses time.Now.
func New(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

// Location returns the business timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the business timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns local midnight of the current business day.
func (c *Clock) Today() time.Time {
	return c.StartOfDay(c.Now())
}

// Tomorrow returns local midnight of the next business day.
func (c *Clock) Tomorrow() time.Time {
	return c.Today().AddDate(0, 0, 1)
}

// Yesterday returns local midnight of the previous business day.
func (c *Clock) Yesterday() time.Time {
	return c.Today().AddDate(0, 0, -1)
}

// StartOfDay truncates t to local midnight in the business timezone.
func (c *Clock) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DayWindow returns [00:00, next 00:00) for the given day. AddDate keeps DST days correct.
func (c *Clock) DayWindow(day time.Time) (time.Time, time.Time) {
	start := c.StartOfDay(day)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses a YYYY-MM-DD string as a business-local day.
func (c *Clock) ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return t, nil
}

// Timestamp formats the current business-local time for the Submitted At column.
func (c *Clock) Timestamp() string {
	return c.Now().Format(TimestampLayout)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthLabel returns the month table name for a YYYY-MM-DD date.
func MonthLabel(date string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return t.Format(MonthLayout), nil
}

// ParseMonthLabel parses a month table name back into the first day of that month.
func ParseMonthLabel(label string) (time.Time, error) {
	return time.Parse(MonthLayout, label)
}
