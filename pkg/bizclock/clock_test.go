package bizclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestTodayUsesBusinessTimezone(t *testing.T) {
	loc := losAngeles(t)
	// 05:30 UTC on Feb 11 is still Feb 10 in Los Angeles.
	fixed := time.Date(2026, 2, 11, 5, 30, 0, 0, time.UTC)
	clock := New(loc, func() time.Time { return fixed })

	assert.Equal(t, "2026-02-10", FormatDate(clock.Today()))
	assert.Equal(t, "2026-02-11", FormatDate(clock.Tomorrow()))
	assert.Equal(t, "2026-02-09", FormatDate(clock.Yesterday()))
}

func TestDayWindowAcrossDST(t *testing.T) {
	loc := losAngeles(t)
	clock := New(loc, nil)
	day, err := clock.ParseDate("2026-03-08")
	require.NoError(t, err)

	start, end := clock.DayWindow(day)
	assert.Equal(t, "2026-03-08T00:00:00-08:00", start.Format(time.RFC3339))
	assert.Equal(t, "2026-03-09T00:00:00-07:00", end.Format(time.RFC3339))
	assert.Equal(t, 23*time.Hour, end.Sub(start))
}

func TestMonthLabel(t *testing.T) {
	label, err := MonthLabel("2026-02-10")
	require.NoError(t, err)
	assert.Equal(t, "Feb 2026", label)

	_, err = MonthLabel("02/10/2026")
	assert.Error(t, err)

	first, err := ParseMonthLabel("Dec 2025")
	require.NoError(t, err)
	assert.Equal(t, time.December, first.Month())
}

func TestTimestampFormat(t *testing.T) {
	fixed := time.Date(2026, 2, 10, 18, 4, 5, 0, time.UTC)
	clock := New(losAngeles(t), func() time.Time { return fixed })
	assert.Equal(t, "2026-02-10 10:04:05", clock.Timestamp())
}
