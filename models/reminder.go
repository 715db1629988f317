package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OccasionType string

const (
	OccasionBirthday    OccasionType = "birthday"
	OccasionAnniversary OccasionType = "anniversary"
)

func (o OccasionType) Valid() bool {
	return o == OccasionBirthday || o == OccasionAnniversary
}

// Title returns the capitalized occasion, e.g. "Birthday".
func (o OccasionType) Title() string {
	switch o {
	case OccasionBirthday:
		return "Birthday"
	case OccasionAnniversary:
		return "Anniversary"
	default:
		return string(o)
	}
}

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelBoth  Channel = "both"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelBoth, ChannelSMS:
		return true
	}
	return false
}

// SendsEmail reports whether the channel includes email delivery.
func (c Channel) SendsEmail() bool {
	return c == ChannelEmail || c == ChannelBoth
}

// DefaultLeadTimes returns the lead times used when a reminder is created without any.
func DefaultLeadTimes(o OccasionType) LeadTimes {
	if o == OccasionAnniversary {
		return LeadTimes{5, 3, 1, 0}
	}
	return LeadTimes{1, 0}
}

type Reminder struct {
	ID            uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID    `gorm:"type:uuid;index;not null" json:"userId"`
	PersonName    string       `gorm:"not null" json:"personName"`
	Type          OccasionType `gorm:"type:varchar(20);not null" json:"type"`
	Date          string       `gorm:"type:date;not null" json:"date"` // YYYY-MM-DD
	Relationship  string       `gorm:"type:varchar(20)" json:"relationship"`
	CustomMessage string       `gorm:"type:text" json:"customMessage"`
	LeadTimes     LeadTimes    `gorm:"column:notification_timing;type:jsonb;default:'[]'" json:"notificationTiming"`
	Channel       Channel      `gorm:"column:notification_method;type:varchar(10);default:'email'" json:"notificationMethod"`
	Archived      bool         `gorm:"index;default:false" json:"archived"`
	CreatedAt     time.Time    `gorm:"autoCreateTime;<-:create" json:"createdAt"`
}

func (r *Reminder) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// AfterFind trims timestamp-formatted dates from the driver back to YYYY-MM-DD.
func (r *Reminder) AfterFind(tx *gorm.DB) (err error) {
	if len(r.Date) > 10 {
		r.Date = r.Date[:10]
	}
	return
}

// LeadTimes holds days-before-occurrence values at which a notification fires.
type LeadTimes []int

// Contains reports whether days is one of the configured lead times.
func (l LeadTimes) Contains(days int) bool {
	for _, v := range l {
		if v == days {
			return true
		}
	}
	return false
}

// Normalized returns the unique values sorted descending.
func (l LeadTimes) Normalized() LeadTimes {
	seen := make(map[int]struct{}, len(l))
	out := make(LeadTimes, 0, len(l))
	for _, v := range l {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func (l LeadTimes) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *LeadTimes) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		*l = LeadTimes{}
		return nil
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, (*[]int)(l))
}
