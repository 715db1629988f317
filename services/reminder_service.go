// services/reminder_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ReminderScheduler runs the daily reminder scan in-process.
type ReminderScheduler struct {
	cron    *cron.Cron
	scanner *Scanner
	timeout time.Duration
	log     zerolog.Logger
}

func NewReminderScheduler(scanner *Scanner, loc *time.Location, log zerolog.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		scanner: scanner,
		timeout: 30 * time.Minute,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the scan on a standard 5-field cron schedule and starts the cron loop.
func (s *ReminderScheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.SendDailyReminders); err != nil {
		return fmt.Errorf("add reminder scan: %w", err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", schedule).Msg("reminder scheduler started")
	return nil
}

func (s *ReminderScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("reminder scheduler stopped")
}

func (s *ReminderScheduler) SendDailyReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.scanner.RunScan(ctx, s.scanner.Today(), nil); err != nil {
		s.log.Error().Err(err).Msg("scheduled reminder check failed")
	}
}
