package services

import (
	"time"

	"cheerful-reminder-backend/models"
	"cheerful-reminder-backend/utils"
)

// Occurrence is the next annual date of a reminder relative to a given day.
type Occurrence struct {
	Date      time.Time
	DaysUntil int
	// Ordinal is the number of years since the original date. Set only for anniversaries.
	Ordinal *int
}

// Milestone reports whether the occurrence is an anniversary divisible by five.
func (o Occurrence) Milestone() bool {
	return o.Ordinal != nil && *o.Ordinal > 0 && *o.Ordinal%5 == 0
}

// NextOccurrence returns the first date on or after today that falls on the
// month and day of original, and the whole days until it. today is reduced to
// midnight in its own location. A Feb 29 original resolves to Feb 28 in
// non-leap years.
func NextOccurrence(original, today time.Time) (time.Time, int) {
	today = utils.BeginningOfDay(today)

	next := occurrenceIn(original, today.Year(), today.Location())
	if next.Before(today) {
		next = occurrenceIn(original, today.Year()+1, today.Location())
	}
	return next, utils.DaysBetween(today, next)
}

func occurrenceIn(original time.Time, year int, loc *time.Location) time.Time {
	month, day := original.Month(), original.Day()
	if month == time.February && day == 29 && !utils.IsLeapYear(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// Ordinal is the anniversary count of an occurrence: how many years passed
// between the original date and the occurrence.
func Ordinal(original, occurrence time.Time) int {
	return occurrence.Year() - original.Year()
}

// Occur computes the next occurrence of a reminder's date.
func Occur(r *models.Reminder, today time.Time) (Occurrence, error) {
	original, err := utils.ParseDate(r.Date)
	if err != nil {
		return Occurrence{}, err
	}
	next, days := NextOccurrence(original, today)
	occ := Occurrence{Date: next, DaysUntil: days}
	if r.Type == models.OccasionAnniversary {
		n := Ordinal(original, next)
		occ.Ordinal = &n
	}
	return occ, nil
}
