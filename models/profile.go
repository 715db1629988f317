package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile mirrors the identity provider's profile row. Rows are written by the
// provider on sign-up; this service only reads them.
type Profile struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Email     string     `gorm:"not null" json:"email"`
	FullName  string     `json:"fullName"`
	Phone     string     `json:"phone,omitempty"`
	AvatarURL *string    `json:"avatarUrl,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}
