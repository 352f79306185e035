package bizday

import (
	"sync"
	"time"
)

// fixedHolidayMonthDays are the eight French public holidays that fall on
// the same calendar date every year.
var fixedHolidayMonthDays = [8][2]int{
	{1, 1},   // New Year's Day
	{5, 1},   // Labour Day
	{5, 8},   // Victory in Europe Day
	{7, 14},  // Bastille Day
	{8, 15},  // Assumption of Mary
	{11, 1},  // All Saints' Day
	{11, 11}, // Armistice Day
	{12, 25}, // Christmas Day
}

var (
	holidayCacheMu sync.Mutex
	holidayCache   = map[int]map[string]struct{}{}
)

// dateKey normalizes a time to a UTC calendar-day string key, ignoring
// time-of-day and location, matching the Python source's date-only
// comparisons.
func dateKey(t time.Time) string {
	t = t.UTC()
	return t.Format("2006-01-02")
}

// Easter returns the date of Easter Sunday for the given Gregorian year,
// using the Meeus/Jones/Butcher (anonymous Gregorian) algorithm. Only the
// post-1582 Gregorian branch is implemented; per spec, years outside
// 1900-2100 are not required to produce correct holidays.
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Holidays returns the 11 French public holidays for the given year: the
// eight fixed-date holidays plus Easter Monday, Ascension, and Pentecost
// Monday. The result is cached per year.
func Holidays(year int) map[string]struct{} {
	holidayCacheMu.Lock()
	defer holidayCacheMu.Unlock()

	if cached, ok := holidayCache[year]; ok {
		return cached
	}

	set := make(map[string]struct{}, 11)
	for _, md := range fixedHolidayMonthDays {
		d := time.Date(year, time.Month(md[0]), md[1], 0, 0, 0, 0, time.UTC)
		set[dateKey(d)] = struct{}{}
	}

	easter := Easter(year)
	set[dateKey(easter.AddDate(0, 0, 1))] = struct{}{}  // Easter Monday
	set[dateKey(easter.AddDate(0, 0, 39))] = struct{}{} // Ascension
	set[dateKey(easter.AddDate(0, 0, 50))] = struct{}{} // Pentecost Monday

	holidayCache[year] = set
	return set
}

// IsBusinessDay reports whether d falls on a weekday that is not a French
// public holiday.
func IsBusinessDay(d time.Time) bool {
	wd := d.UTC().Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, isHoliday := Holidays(d.UTC().Year())[dateKey(d)]
	return !isHoliday
}
