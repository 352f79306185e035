package bizday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}

func TestHolidaysCountAndCache(t *testing.T) {
	for _, year := range []int{1999, 2020, 2024, 2025, 2100} {
		h := Holidays(year)
		assert.Lenf(t, h, 11, "year %d should have 11 holidays", year)
	}

	// A repeated call returns the same holiday set.
	first := Holidays(2024)
	second := Holidays(2024)
	assert.Equal(t, first, second)
}

func TestEaster(t *testing.T) {
	cases := map[int]string{
		2024: "2024-03-31",
		2025: "2025-04-20",
		2023: "2023-04-09",
	}
	for year, want := range cases {
		got := Easter(year).Format("2006-01-02")
		assert.Equal(t, want, got, "year %d", year)
	}
}

func TestIsBusinessDay(t *testing.T) {
	// Saturday
	assert.False(t, IsBusinessDay(mustUTC(t, "2024-01-06T00:00:00Z")))
	// Sunday
	assert.False(t, IsBusinessDay(mustUTC(t, "2024-01-07T00:00:00Z")))
	// Christmas (Wednesday)
	assert.False(t, IsBusinessDay(mustUTC(t, "2024-12-25T00:00:00Z")))
	// Ordinary Monday
	assert.True(t, IsBusinessDay(mustUTC(t, "2024-01-08T00:00:00Z")))
}

func TestAddBusinessDaysNormalizesToOneAM(t *testing.T) {
	sent := mustUTC(t, "2024-01-08T10:00:00Z") // Monday
	result := AddBusinessDays(sent, 3)
	assert.True(t, IsBusinessDay(result))
	assert.Equal(t, 1, result.Hour())
	assert.Zero(t, result.Minute())
	assert.Zero(t, result.Second())
}

func TestAddBusinessDaysHolidaySkip(t *testing.T) {
	// Friday before Christmas 2024; J+3 must skip the Dec 25 holiday,
	// landing on the third business day after send: Mon 23, Tue 24, skip
	// Wed 25 (holiday), Thu 26.
	sent := mustUTC(t, "2024-12-20T09:00:00Z")
	result := AddBusinessDays(sent, 3)
	assert.Equal(t, "2024-12-26T01:00:00Z", result.UTC().Format(time.RFC3339))
}

func TestAddBusinessDaysZeroReturnsNextBusinessDayOnOrAfter(t *testing.T) {
	// A Saturday: n=0 must NOT return the input unchanged-but-for-time; it
	// must advance to the next business day.
	saturday := mustUTC(t, "2024-01-06T15:00:00Z")
	result := AddBusinessDays(saturday, 0)
	assert.True(t, IsBusinessDay(result))
	assert.Equal(t, "2024-01-08T01:00:00Z", result.UTC().Format(time.RFC3339))

	// A business day: n=0 returns the same calendar day, normalized.
	monday := mustUTC(t, "2024-01-08T15:00:00Z")
	result2 := AddBusinessDays(monday, 0)
	assert.Equal(t, "2024-01-08T01:00:00Z", result2.UTC().Format(time.RFC3339))
}

func TestAddBusinessDaysNegative(t *testing.T) {
	start := mustUTC(t, "2024-01-11T01:00:00Z") // Thursday
	back := AddBusinessDays(start, -3)
	assert.True(t, IsBusinessDay(back))
	assert.True(t, back.Before(start))
}

func TestAddBusinessDaysRoundTrip(t *testing.T) {
	start := mustUTC(t, "2024-01-08T10:00:00Z")
	for _, n := range []int{1, 3, 7, 10, 30, 180} {
		forward := AddBusinessDays(start, n)
		back := AddBusinessDays(forward, -n)
		// Round trip lands on the same business day as the next business day
		// on/after start (not necessarily equal to start, since start itself
		// may not be a business day — here it is, so it must match exactly
		// once normalized).
		assert.Equal(t, NextBusinessDay(start).Format("2006-01-02"), back.Format("2006-01-02"), "n=%d", n)
	}
}

func TestFourTaskScheduleFromThursday(t *testing.T) {
	// A Thursday sent_at; verify gaps of {3,7,10,180} business days land on
	// business days, strictly increasing.
	sent := mustUTC(t, "2024-01-11T10:00:00Z")
	require.Equal(t, time.Thursday, sent.Weekday())

	var prev time.Time
	for i, n := range []int{3, 7, 10, 180} {
		got := AddBusinessDays(sent, n)
		assert.True(t, IsBusinessDay(got))
		assert.Equal(t, 1, got.Hour())
		if i > 0 {
			assert.True(t, got.After(prev))
		}
		prev = got
	}
}

func TestCrossYearBoundary(t *testing.T) {
	sent := mustUTC(t, "2024-12-27T10:00:00Z") // Friday
	result := AddBusinessDays(sent, 3)
	assert.True(t, IsBusinessDay(result))
	assert.Equal(t, 2025, result.Year())
}
