package domain

import "time"

// DateFormat is the layout used for daily dates in datastore files and CLI
// arguments.
const DateFormat = "2006-01-02"

// MonthFormat is the layout used for monthly index values.
const MonthFormat = "2006-01"

// Day normalizes a time to UTC midnight. All dates in the engine are days,
// never instants.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EachDay returns every day from start through end, inclusive. An empty
// slice is returned when end precedes start.
func EachDay(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// MonthStart returns the first day of the month containing t.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DaysSince returns the whole days from the epoch to date. Used as the x
// axis for regressions over the time series.
func DaysSince(epoch, date time.Time) int {
	return int(Day(date).Sub(Day(epoch)).Hours() / 24)
}

// DayOfYear returns the 1-based day of year, with day 366 well defined only
// in leap years; climatology alignment handles the off-by-one for non-leap
// years.
func DayOfYear(t time.Time) int {
	return t.YearDay()
}
