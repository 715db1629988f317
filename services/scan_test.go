package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"cheerful-reminder-backend/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeReminders struct {
	reminders []models.Reminder
	err       error
}

func (f *fakeReminders) ActiveReminders(ctx context.Context, id *uuid.UUID) ([]models.Reminder, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Reminder
	for _, r := range f.reminders {
		if r.Archived {
			continue
		}
		if id != nil && r.ID != *id {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeProfiles struct {
	profiles map[uuid.UUID]models.Profile
	fail     map[uuid.UUID]error
}

func (f *fakeProfiles) Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if err, ok := f.fail[userID]; ok {
		return nil, err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []Email
	failTo map[string]error
	delay  time.Duration
}

func (f *fakeMailer) Send(ctx context.Context, email Email) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.failTo[email.To]; ok {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, email)
	return "msg-" + email.To, nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeTexter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeTexter) SendText(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+": "+body)
	return "SM1", nil
}

type memoryDedup struct {
	mu      sync.Mutex
	entries map[DedupKey]bool
}

func newMemoryDedup() *memoryDedup {
	return &memoryDedup{entries: map[DedupKey]bool{}}
}

func (m *memoryDedup) Claim(ctx context.Context, key DedupKey, channel string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key] {
		return false, nil
	}
	m.entries[key] = true
	return true, nil
}

func (m *memoryDedup) Release(ctx context.Context, key DedupKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

type fixture struct {
	reminders *fakeReminders
	profiles  *fakeProfiles
	mailer    *fakeMailer
}

func newFixture() *fixture {
	return &fixture{
		reminders: &fakeReminders{},
		profiles:  &fakeProfiles{profiles: map[uuid.UUID]models.Profile{}, fail: map[uuid.UUID]error{}},
		mailer:    &fakeMailer{failTo: map[string]error{}},
	}
}

// add registers a reminder owned by a new profile with the given address.
func (f *fixture) add(email string, r models.Reminder) models.Reminder {
	owner := uuid.New()
	f.profiles.profiles[owner] = models.Profile{ID: owner, Email: email, FullName: "Owner"}
	r.ID = uuid.New()
	r.UserID = owner
	if r.Channel == "" {
		r.Channel = models.ChannelEmail
	}
	f.reminders.reminders = append(f.reminders.reminders, r)
	return r
}

func (f *fixture) scanner(t *testing.T, deps ScannerDeps, opts ScannerOptions) *Scanner {
	t.Helper()
	if deps.Reminders == nil {
		deps.Reminders = f.reminders
	}
	if deps.Profiles == nil {
		deps.Profiles = f.profiles
	}
	if deps.Mailer == nil {
		deps.Mailer = f.mailer
	}
	return NewScanner(deps, opts, discardLogger())
}

func sam() models.Reminder {
	return models.Reminder{
		PersonName: "Sam",
		Type:       models.OccasionBirthday,
		Date:       "1990-05-20",
		LeadTimes:  models.LeadTimes{1, 0},
		Channel:    models.ChannelEmail,
	}
}

func TestRunScanSendsDueBirthday(t *testing.T) {
	f := newFixture()
	r := f.add("owner@example.com", sam())
	s := f.scanner(t, ScannerDeps{}, ScannerOptions{})

	res, err := s.RunScan(context.Background(), date(t, "2024-05-19"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.Scanned != 1 || len(res.Dispatched) != 1 {
		t.Fatalf("scanned %d dispatched %d, want 1 1", res.Scanned, len(res.Dispatched))
	}
	o := res.Dispatched[0]
	if o.ReminderID != r.ID || o.DaysUntil != 1 || o.UserEmail != "owner@example.com" || !o.Result.Success {
		t.Fatalf("outcome = %+v", o)
	}
	if o.Result.MessageID != "msg-owner@example.com" {
		t.Fatalf("message id = %q", o.Result.MessageID)
	}
	if o.OccurrenceDate != "2024-05-20" {
		t.Fatalf("occurrence date = %s, want 2024-05-20", o.OccurrenceDate)
	}

	if f.mailer.count() != 1 {
		t.Fatalf("sent %d emails, want 1", f.mailer.count())
	}
	email := f.mailer.sent[0]
	if !strings.Contains(email.Subject, "Sam's birthday is tomorrow") {
		t.Fatalf("subject = %q", email.Subject)
	}
	if email.Subject != "Birthday Reminder: Sam's birthday is tomorrow!" {
		t.Fatalf("subject = %q", email.Subject)
	}
	if !strings.Contains(email.HTML, "May 20, 2024") {
		t.Fatalf("html does not contain the occurrence date: %s", email.HTML)
	}
}

func TestRunScanSkipsNotDueAndArchived(t *testing.T) {
	f := newFixture()
	f.add("a@example.com", sam())
	archived := sam()
	archived.Archived = true
	f.add("b@example.com", archived)
	empty := sam()
	empty.LeadTimes = models.LeadTimes{}
	f.add("c@example.com", empty)

	s := f.scanner(t, ScannerDeps{}, ScannerOptions{})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-17"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.Scanned != 2 {
		t.Fatalf("scanned = %d, want 2 (archived excluded)", res.Scanned)
	}
	if len(res.Dispatched) != 0 || f.mailer.count() != 0 {
		t.Fatalf("dispatched %d, want none three days out", len(res.Dispatched))
	}
}

func TestRunScanTwiceSameDayWithoutDedupSendsTwice(t *testing.T) {
	f := newFixture()
	f.add("owner@example.com", sam())
	s := f.scanner(t, ScannerDeps{}, ScannerOptions{})

	today := date(t, "2024-05-20")
	for i := 0; i < 2; i++ {
		res, err := s.RunScan(context.Background(), today, nil)
		if err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
		if len(res.Dispatched) != 1 {
			t.Fatalf("scan %d dispatched %d, want 1", i, len(res.Dispatched))
		}
	}
	if f.mailer.count() != 2 {
		t.Fatalf("sent %d emails, want 2 without dedup", f.mailer.count())
	}
}

func TestRunScanTwiceSameDayWithDedupSendsOnce(t *testing.T) {
	f := newFixture()
	f.add("owner@example.com", sam())
	s := f.scanner(t, ScannerDeps{Dedup: newMemoryDedup()}, ScannerOptions{})

	today := date(t, "2024-05-20")
	first, err := s.RunScan(context.Background(), today, nil)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	second, err := s.RunScan(context.Background(), today, nil)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(first.Dispatched) != 1 || len(second.Dispatched) != 0 {
		t.Fatalf("dispatched %d then %d, want 1 then 0", len(first.Dispatched), len(second.Dispatched))
	}
	if second.Skipped != 1 {
		t.Fatalf("second scan skipped = %d, want 1", second.Skipped)
	}
	if f.mailer.count() != 1 {
		t.Fatalf("sent %d emails, want 1", f.mailer.count())
	}

	// The next lead time and next year's occurrence are separate keys.
	if res, _ := s.RunScan(context.Background(), date(t, "2025-05-19"), nil); len(res.Dispatched) != 1 {
		t.Fatalf("next year dispatched %d, want 1", len(res.Dispatched))
	}
}

func TestRunScanDedupReleasesFailedDispatch(t *testing.T) {
	f := newFixture()
	f.add("owner@example.com", sam())
	f.mailer.failTo["owner@example.com"] = errors.New("provider down")
	s := f.scanner(t, ScannerDeps{Dedup: newMemoryDedup()}, ScannerOptions{})

	today := date(t, "2024-05-20")
	res, err := s.RunScan(context.Background(), today, nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(res.Dispatched) != 1 || res.Dispatched[0].Result.Success {
		t.Fatalf("want one failed outcome, got %+v", res.Dispatched)
	}

	delete(f.mailer.failTo, "owner@example.com")
	res, err = s.RunScan(context.Background(), today, nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(res.Dispatched) != 1 || !res.Dispatched[0].Result.Success {
		t.Fatalf("retry should send after a failed attempt, got %+v", res.Dispatched)
	}
}

func TestRunScanPartialProfileFailure(t *testing.T) {
	f := newFixture()
	first := f.add("one@example.com", sam())
	second := f.add("two@example.com", sam())
	third := f.add("three@example.com", sam())
	f.profiles.fail[second.UserID] = errors.New("profile lookup failed")

	s := f.scanner(t, ScannerDeps{}, ScannerOptions{Concurrency: 3})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.Scanned != 3 {
		t.Fatalf("scanned = %d, want 3", res.Scanned)
	}
	if len(res.Dispatched) != 2 {
		t.Fatalf("dispatched %d, want 2", len(res.Dispatched))
	}
	if res.Dispatched[0].ReminderID != first.ID || res.Dispatched[1].ReminderID != third.ID {
		t.Fatalf("outcomes out of reminder order: %v %v", res.Dispatched[0].ReminderID, res.Dispatched[1].ReminderID)
	}
	if res.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", res.Skipped)
	}
}

func TestRunScanRecordsDispatchFailure(t *testing.T) {
	f := newFixture()
	f.add("ok@example.com", sam())
	f.add("bad@example.com", sam())
	f.mailer.failTo["bad@example.com"] = errors.New("rejected")

	s := f.scanner(t, ScannerDeps{}, ScannerOptions{Concurrency: 2})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(res.Dispatched) != 2 {
		t.Fatalf("dispatched %d, want 2", len(res.Dispatched))
	}
	if !res.Dispatched[0].Result.Success {
		t.Fatalf("first outcome failed: %+v", res.Dispatched[0])
	}
	failed := res.Dispatched[1]
	if failed.Result.Success || !strings.Contains(failed.Result.Error, "rejected") {
		t.Fatalf("second outcome = %+v, want rejected failure", failed)
	}
	if res.Sent() != 1 {
		t.Fatalf("Sent() = %d, want 1", res.Sent())
	}
}

func TestRunScanDispatchTimeoutIsPerItem(t *testing.T) {
	f := newFixture()
	f.add("slow@example.com", sam())
	f.mailer.delay = time.Second

	s := f.scanner(t, ScannerDeps{}, ScannerOptions{DispatchTimeout: 20 * time.Millisecond})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(res.Dispatched) != 1 {
		t.Fatalf("dispatched %d, want 1", len(res.Dispatched))
	}
	if r := res.Dispatched[0].Result; r.Success || !strings.Contains(r.Error, "timed out") {
		t.Fatalf("result = %+v, want timeout failure", r)
	}
}

func TestRunScanChannels(t *testing.T) {
	f := newFixture()
	push := sam()
	push.Channel = models.ChannelPush
	f.add("push@example.com", push)
	both := sam()
	both.Channel = models.ChannelBoth
	f.add("both@example.com", both)
	sms := sam()
	sms.Channel = models.ChannelSMS
	smsReminder := f.add("sms@example.com", sms)
	p := f.profiles.profiles[smsReminder.UserID]
	p.Phone = "+15550100"
	f.profiles.profiles[smsReminder.UserID] = p

	texter := &fakeTexter{}
	s := f.scanner(t, ScannerDeps{Texter: texter}, ScannerOptions{})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(res.Dispatched) != 2 {
		t.Fatalf("dispatched %d, want 2 (both + sms)", len(res.Dispatched))
	}
	if f.mailer.count() != 1 || f.mailer.sent[0].To != "both@example.com" {
		t.Fatalf("emails = %+v, want one to both@example.com", f.mailer.sent)
	}
	if len(texter.sent) != 1 || !strings.HasPrefix(texter.sent[0], "+15550100: Sam's birthday is today") {
		t.Fatalf("texts = %v", texter.sent)
	}
	if res.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1 (push)", res.Skipped)
	}
	if res.Sent() != 2 || res.EmailsSent() != 1 {
		t.Fatalf("Sent() = %d EmailsSent() = %d, want 2 1", res.Sent(), res.EmailsSent())
	}
}

func TestRunScanSMSWithoutTexterIsSkipped(t *testing.T) {
	f := newFixture()
	sms := sam()
	sms.Channel = models.ChannelSMS
	f.add("sms@example.com", sms)

	s := f.scanner(t, ScannerDeps{}, ScannerOptions{})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(res.Dispatched) != 0 || res.Skipped != 1 {
		t.Fatalf("dispatched %d skipped %d, want 0 1", len(res.Dispatched), res.Skipped)
	}
}

func TestRunScanMalformedDateIsSkipped(t *testing.T) {
	f := newFixture()
	bad := sam()
	bad.Date = "1990-13-40"
	f.add("bad@example.com", bad)
	f.add("good@example.com", sam())

	s := f.scanner(t, ScannerDeps{}, ScannerOptions{})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.Scanned != 2 || len(res.Dispatched) != 1 || res.Dispatched[0].UserEmail != "good@example.com" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunScanFilter(t *testing.T) {
	f := newFixture()
	f.add("one@example.com", sam())
	target := f.add("two@example.com", sam())

	s := f.scanner(t, ScannerDeps{}, ScannerOptions{})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-20"), &target.ID)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if res.Scanned != 1 || len(res.Dispatched) != 1 || res.Dispatched[0].ReminderID != target.ID {
		t.Fatalf("result = %+v", res)
	}

	missing := uuid.New()
	if _, err := s.RunScan(context.Background(), date(t, "2024-05-20"), &missing); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("unknown filter err = %v, want ErrReminderNotFound", err)
	}
	if f.mailer.count() != 1 {
		t.Fatalf("sent %d emails, want 1", f.mailer.count())
	}
}

func TestRunScanStoreFailureAborts(t *testing.T) {
	f := newFixture()
	f.reminders.err = errors.New("connection refused")
	s := f.scanner(t, ScannerDeps{}, ScannerOptions{})

	if _, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("err = %v, want store error", err)
	}
}

func TestRunScanWithoutMailerIsConfigurationError(t *testing.T) {
	f := newFixture()
	f.add("owner@example.com", sam())
	s := NewScanner(ScannerDeps{Reminders: f.reminders, Profiles: f.profiles}, ScannerOptions{}, discardLogger())

	if _, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil); !errors.Is(err, ErrMailerNotConfigured) {
		t.Fatalf("err = %v, want ErrMailerNotConfigured", err)
	}
}

func TestRunScanAnniversaryOutcome(t *testing.T) {
	f := newFixture()
	f.add("owner@example.com", models.Reminder{
		PersonName: "Alex & Jo",
		Type:       models.OccasionAnniversary,
		Date:       "2010-06-01",
		LeadTimes:  models.LeadTimes{5, 3, 1, 0},
	})

	s := f.scanner(t, ScannerDeps{}, ScannerOptions{})
	res, err := s.RunScan(context.Background(), date(t, "2025-05-29"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(res.Dispatched) != 1 {
		t.Fatalf("dispatched %d, want 1", len(res.Dispatched))
	}
	o := res.Dispatched[0]
	if o.DaysUntil != 3 || o.Ordinal == nil || *o.Ordinal != 15 || !o.Milestone {
		t.Fatalf("outcome = %+v, want 3 days to the 15th milestone", o)
	}
	if got := f.mailer.sent[0].Subject; got != "Anniversary Reminder: Alex & Jo's anniversary is in 3 days!" {
		t.Fatalf("subject = %q", got)
	}
}

func TestScannerToday(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	s := NewScanner(ScannerDeps{}, ScannerOptions{Location: loc}, discardLogger())
	s.now = func() time.Time { return time.Date(2024, time.May, 19, 20, 0, 0, 0, time.UTC) }

	today := s.Today()
	if today.Format("2006-01-02 15:04") != "2024-05-20 00:00" {
		t.Fatalf("Today() = %s, want 2024-05-20 00:00 in UTC+10", today)
	}
}

func TestRunScanSMSInvalidPhoneIsSkipped(t *testing.T) {
	f := newFixture()
	sms := sam()
	sms.Channel = models.ChannelSMS
	r := f.add("sms@example.com", sms)
	p := f.profiles.profiles[r.UserID]
	p.Phone = "call me"
	f.profiles.profiles[r.UserID] = p

	texter := &fakeTexter{}
	s := f.scanner(t, ScannerDeps{Texter: texter}, ScannerOptions{})
	res, err := s.RunScan(context.Background(), date(t, "2024-05-20"), nil)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if len(res.Dispatched) != 0 || res.Skipped != 1 || len(texter.sent) != 0 {
		t.Fatalf("dispatched %d skipped %d texts %d, want 0 1 0", len(res.Dispatched), res.Skipped, len(texter.sent))
	}
}
