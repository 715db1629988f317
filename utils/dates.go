// utils/dates.go
package utils

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts calendar days from start to end. Both are reduced to
// their civil date first so DST transitions do not shorten a day.
func DaysBetween(start, end time.Time) int {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// ParseDate parses a stored YYYY-MM-DD date. Driver timestamps such as
// "1990-05-20T00:00:00Z" are cut to their date part.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) > 10 && (value[10] == 'T' || value[10] == ' ') {
		value = value[:10]
	}
	return ParseCalendarDate(value)
}

// ParseCalendarDate accepts exactly YYYY-MM-DD.
func ParseCalendarDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
