package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationLog records that a reminder was notified for one lead time of one
// occurrence year. The unique index makes a claim on that key exclusive.
type NotificationLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	ReminderID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_notification_key,priority:1"`
	LeadTime       int       `gorm:"not null;uniqueIndex:idx_notification_key,priority:2"`
	OccurrenceYear int       `gorm:"not null;uniqueIndex:idx_notification_key,priority:3"`
	Channel        string    `gorm:"type:varchar(10)"`
	SentAt         time.Time
}

func (n *NotificationLog) BeforeCreate(tx *gorm.DB) (err error) {
	n.ID = uuid.New()
	return
}
