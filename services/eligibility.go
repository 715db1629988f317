package services

import (
	"cheerful-reminder-backend/models"

	"github.com/google/uuid"
)

// IsNotificationDueToday reports whether daysUntil is one of the lead times.
// Matching is exact: a lead time of 7 fires only when the occurrence is 7 days away.
func IsNotificationDueToday(leadTimes models.LeadTimes, daysUntil int) bool {
	return leadTimes.Contains(daysUntil)
}

// DedupKey identifies one notification of one occurrence of a reminder.
type DedupKey struct {
	ReminderID     uuid.UUID
	LeadTime       int
	OccurrenceYear int
}
