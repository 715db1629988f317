package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cheerful-reminder-backend/models"
	"cheerful-reminder-backend/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DispatchResult is the provider's answer to one delivery attempt.
type DispatchResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Outcome describes one attempted notification of a scan.
type Outcome struct {
	ReminderID     uuid.UUID           `json:"reminderId"`
	ReminderType   models.OccasionType `json:"reminderType"`
	PersonName     string              `json:"personName"`
	UserEmail      string              `json:"userEmail"`
	Channel        models.Channel      `json:"channel"`
	DaysUntil      int                 `json:"daysUntil"`
	OccurrenceDate string              `json:"occurrenceDate"`
	Ordinal        *int                `json:"ordinal,omitempty"`
	Milestone      bool                `json:"milestone,omitempty"`
	Result         DispatchResult      `json:"result"`
}

type ScanResult struct {
	Scanned    int       `json:"scanned"`
	Due        int       `json:"due"`
	Skipped    int       `json:"skipped"`
	Dispatched []Outcome `json:"dispatched"`
}

// Sent counts successful dispatches.
func (r *ScanResult) Sent() int {
	n := 0
	for _, o := range r.Dispatched {
		if o.Result.Success {
			n++
		}
	}
	return n
}

// EmailsSent counts successful dispatches over an email channel.
func (r *ScanResult) EmailsSent() int {
	n := 0
	for _, o := range r.Dispatched {
		if o.Result.Success && o.Channel.SendsEmail() {
			n++
		}
	}
	return n
}

type ScannerDeps struct {
	Reminders ReminderStore
	Profiles  ProfileStore
	Mailer    Mailer
	// Texter is optional; without it SMS reminders are skipped.
	Texter Texter
	// Dedup is optional; without it every scan re-sends due notifications.
	Dedup DedupLog
}

type ScannerOptions struct {
	Concurrency     int
	DispatchTimeout time.Duration
	Location        *time.Location
}

type Scanner struct {
	deps ScannerDeps
	opts ScannerOptions
	now  func() time.Time
	log  zerolog.Logger
}

func NewScanner(deps ScannerDeps, opts ScannerOptions, log zerolog.Logger) *Scanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 10 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scanner{
		deps: deps,
		opts: opts,
		now:  time.Now,
		log:  log.With().Str("component", "scanner").Logger(),
	}
}

// Today is the current calendar day in the scanner's location.
func (s *Scanner) Today() time.Time {
	return utils.BeginningOfDay(s.now().In(s.opts.Location))
}

type decision int

const (
	notDue decision = iota
	skipped
	attempted
)

// RunScan evaluates every active reminder against today and dispatches the due
// ones. A non-nil filter restricts the scan to one reminder and fails with
// ErrReminderNotFound if it is not active. Per-reminder failures are logged or
// recorded in the result; only configuration and store errors fail the scan.
func (s *Scanner) RunScan(ctx context.Context, today time.Time, filter *uuid.UUID) (*ScanResult, error) {
	if s.deps.Mailer == nil {
		return nil, ErrMailerNotConfigured
	}
	today = utils.BeginningOfDay(today)

	s.log.Info().Str("today", today.Format(utils.DateLayout)).Msg("starting reminder check")
	reminders, err := s.deps.Reminders.ActiveReminders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	if filter != nil && len(reminders) == 0 {
		return nil, ErrReminderNotFound
	}
	s.log.Info().Int("count", len(reminders)).Msg("found active reminders")

	type slot struct {
		outcome  *Outcome
		decision decision
	}
	slots := make([]slot, len(reminders))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i := range reminders {
		g.Go(func() error {
			o, d := s.process(ctx, &reminders[i], today)
			slots[i] = slot{outcome: o, decision: d}
			return nil
		})
	}
	_ = g.Wait()

	result := &ScanResult{Scanned: len(reminders), Dispatched: []Outcome{}}
	for _, sl := range slots {
		switch sl.decision {
		case skipped:
			result.Due++
			result.Skipped++
		case attempted:
			result.Due++
			result.Dispatched = append(result.Dispatched, *sl.outcome)
		}
	}

	s.log.Info().
		Int("scanned", result.Scanned).
		Int("due", result.Due).
		Int("sent", result.Sent()).
		Int("failed", len(result.Dispatched)-result.Sent()).
		Int("skipped", result.Skipped).
		Msg("reminder check completed")
	return result, nil
}

func (s *Scanner) process(ctx context.Context, r *models.Reminder, today time.Time) (*Outcome, decision) {
	log := s.log.With().Str("reminder_id", r.ID.String()).Logger()

	occ, err := Occur(r, today)
	if err != nil {
		log.Warn().Err(err).Msg("skipping reminder with malformed date")
		return nil, notDue
	}
	if !IsNotificationDueToday(r.LeadTimes, occ.DaysUntil) {
		return nil, notDue
	}

	switch {
	case r.Channel.SendsEmail():
	case r.Channel == models.ChannelSMS && s.deps.Texter != nil:
	default:
		log.Debug().Str("channel", string(r.Channel)).Msg("no delivery for channel")
		return nil, skipped
	}

	profile, err := s.deps.Profiles.Profile(ctx, r.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", r.UserID.String()).Msg("skipping reminder without owner profile")
		return nil, skipped
	}

	notice := Notice{
		To:            profile.Email,
		PersonName:    r.PersonName,
		Occasion:      r.Type,
		Date:          occ.Date,
		DaysUntil:     occ.DaysUntil,
		CustomMessage: r.CustomMessage,
		Ordinal:       occ.Ordinal,
	}
	if r.Channel == models.ChannelSMS {
		notice.To = ""
		if utils.ValidatePhone(profile.Phone) {
			notice.To = profile.Phone
		}
	}
	if notice.To == "" {
		log.Warn().Str("channel", string(r.Channel)).Msg("skipping reminder without recipient address")
		return nil, skipped
	}

	key := DedupKey{ReminderID: r.ID, LeadTime: occ.DaysUntil, OccurrenceYear: occ.Date.Year()}
	if s.deps.Dedup != nil {
		claimed, err := s.deps.Dedup.Claim(ctx, key, string(r.Channel))
		if err != nil {
			log.Error().Err(err).Msg("skipping reminder, dedup log unavailable")
			return nil, skipped
		}
		if !claimed {
			log.Debug().Int("days_until", occ.DaysUntil).Msg("already notified")
			return nil, skipped
		}
	}

	log.Info().
		Str("type", string(r.Type)).
		Str("person", r.PersonName).
		Str("to", notice.To).
		Int("days_until", occ.DaysUntil).
		Msg("sending reminder")

	outcome := &Outcome{
		ReminderID:     r.ID,
		ReminderType:   r.Type,
		PersonName:     r.PersonName,
		UserEmail:      profile.Email,
		Channel:        r.Channel,
		DaysUntil:      occ.DaysUntil,
		OccurrenceDate: occ.Date.Format(utils.DateLayout),
		Ordinal:        occ.Ordinal,
		Milestone:      occ.Milestone(),
	}

	id, err := s.dispatch(ctx, r.Channel, notice)
	if err != nil {
		log.Error().Err(err).Msg("failed to send reminder")
		outcome.Result = DispatchResult{Error: err.Error()}
		if s.deps.Dedup != nil {
			if rerr := s.deps.Dedup.Release(ctx, key); rerr != nil {
				log.Error().Err(rerr).Msg("failed to release notification claim")
			}
		}
		return outcome, attempted
	}
	outcome.Result = DispatchResult{Success: true, MessageID: id}
	return outcome, attempted
}

// dispatch bounds one delivery with the dispatch timeout.
func (s *Scanner) dispatch(ctx context.Context, channel models.Channel, n Notice) (string, error) {
	dctx, cancel := context.WithTimeout(ctx, s.opts.DispatchTimeout)
	defer cancel()

	var (
		id  string
		err error
	)
	if channel == models.ChannelSMS {
		id, err = s.deps.Texter.SendText(dctx, n.To, ReminderText(n))
	} else {
		var email Email
		email, err = ReminderEmail(n)
		if err == nil {
			id, err = s.deps.Mailer.Send(dctx, email)
		}
	}
	if err != nil && errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("dispatch timed out after %s", s.opts.DispatchTimeout)
	}
	return id, err
}
