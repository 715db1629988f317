package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cheerful-reminder-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrProfileNotFound  = errors.New("profile not found")
)

type ReminderStore interface {
	// ActiveReminders returns non-archived reminders. A non-nil id restricts
	// the result to that reminder.
	ActiveReminders(ctx context.Context, id *uuid.UUID) ([]models.Reminder, error)
}

type ProfileStore interface {
	Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// DedupLog is an append-only record of notifications already sent.
type DedupLog interface {
	// Claim records key and reports false if it was already recorded.
	Claim(ctx context.Context, key DedupKey, channel string) (bool, error)
	// Release removes a claim whose dispatch failed.
	Release(ctx context.Context, key DedupKey) error
}

// GormStore implements the reminder, profile and dedup stores on one database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ActiveReminders(ctx context.Context, id *uuid.UUID) ([]models.Reminder, error) {
	q := s.db.WithContext(ctx).Where("archived = ?", false)
	if id != nil {
		q = q.Where("id = ?", *id)
	}
	var reminders []models.Reminder
	if err := q.Order("created_at").Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("fetch active reminders: %w", err)
	}
	return reminders, nil
}

func (s *GormStore) Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("fetch profile %s: %w", userID, err)
	}
	return &p, nil
}

func (s *GormStore) Claim(ctx context.Context, key DedupKey, channel string) (bool, error) {
	entry := models.NotificationLog{
		ReminderID:     key.ReminderID,
		LeadTime:       key.LeadTime,
		OccurrenceYear: key.OccurrenceYear,
		Channel:        channel,
		SentAt:         time.Now(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, fmt.Errorf("claim notification: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) Release(ctx context.Context, key DedupKey) error {
	err := s.db.WithContext(ctx).
		Where("reminder_id = ? AND lead_time = ? AND occurrence_year = ?", key.ReminderID, key.LeadTime, key.OccurrenceYear).
		Delete(&models.NotificationLog{}).Error
	if err != nil {
		return fmt.Errorf("release notification: %w", err)
	}
	return nil
}

// ReminderFilter scopes owner queries for the reminder API.
type ReminderFilter struct {
	IncludeArchived bool
	Type            models.OccasionType
}

// ReminderRepository is the owner-scoped CRUD surface used by the HTTP API.
type ReminderRepository interface {
	List(ctx context.Context, userID uuid.UUID, f ReminderFilter) ([]models.Reminder, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Reminder, error)
	Create(ctx context.Context, r *models.Reminder) error
	Save(ctx context.Context, r *models.Reminder) error
	SetArchived(ctx context.Context, userID, id uuid.UUID, archived bool) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

func (s *GormStore) List(ctx context.Context, userID uuid.UUID, f ReminderFilter) ([]models.Reminder, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !f.IncludeArchived {
		q = q.Where("archived = ?", false)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	var reminders []models.Reminder
	if err := q.Order("created_at DESC").Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

func (s *GormStore) Get(ctx context.Context, userID, id uuid.UUID) (*models.Reminder, error) {
	var r models.Reminder
	if err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return &r, nil
}

func (s *GormStore) Create(ctx context.Context, r *models.Reminder) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (s *GormStore) Save(ctx context.Context, r *models.Reminder) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}
	return nil
}

func (s *GormStore) SetArchived(ctx context.Context, userID, id uuid.UUID, archived bool) error {
	result := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("archived", archived)
	if result.Error != nil {
		return fmt.Errorf("archive reminder: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&models.Reminder{})
	if result.Error != nil {
		return fmt.Errorf("delete reminder: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrReminderNotFound
	}
	return nil
}
