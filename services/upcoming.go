package services

import (
	"sort"
	"time"

	"cheerful-reminder-backend/models"
	"cheerful-reminder-backend/utils"
)

// UpcomingReminder is a reminder with its next occurrence, as shown on the dashboard.
type UpcomingReminder struct {
	models.Reminder
	NextOccurrence string `json:"nextOccurrence"`
	DaysUntil      int    `json:"daysUntil"`
	Ordinal        *int   `json:"ordinal,omitempty"`
	Milestone      bool   `json:"milestone"`
	NotifiesToday  bool   `json:"notifiesToday"`
}

// Upcoming returns the reminders occurring within the next `within` days,
// soonest first. Reminders with malformed dates are left out.
func Upcoming(reminders []models.Reminder, today time.Time, within int) []UpcomingReminder {
	out := make([]UpcomingReminder, 0, len(reminders))
	for _, r := range reminders {
		occ, err := Occur(&r, today)
		if err != nil || occ.DaysUntil > within {
			continue
		}
		out = append(out, UpcomingReminder{
			Reminder:       r,
			NextOccurrence: occ.Date.Format(utils.DateLayout),
			DaysUntil:      occ.DaysUntil,
			Ordinal:        occ.Ordinal,
			Milestone:      occ.Milestone(),
			NotifiesToday:  IsNotificationDueToday(r.LeadTimes, occ.DaysUntil),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return out[i].PersonName < out[j].PersonName
	})
	return out
}
