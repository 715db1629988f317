package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"cheerful-reminder-backend/models"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var ErrMailerNotConfigured = errors.New("email delivery is not configured: RESEND_API_KEY is missing")

// Email is one outbound HTML message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers an email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, email Email) (string, error)
}

type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailer sends mail through the Resend API. When a test recipient is set
// every message goes to that address instead of the real recipient.
type ResendMailer struct {
	emails        resendEmails
	from          string
	testRecipient string
	limiter       *rate.Limiter
	log           zerolog.Logger
}

func NewResendMailer(apiKey, from, testRecipient string, ratePerSec int, log zerolog.Logger) (*ResendMailer, error) {
	if apiKey == "" {
		return nil, ErrMailerNotConfigured
	}
	client := resend.NewClient(apiKey)
	return newResendMailer(client.Emails, from, testRecipient, ratePerSec, log), nil
}

func newResendMailer(emails resendEmails, from, testRecipient string, ratePerSec int, log zerolog.Logger) *ResendMailer {
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	return &ResendMailer{
		emails:        emails,
		from:          from,
		testRecipient: testRecipient,
		limiter:       rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:           log.With().Str("component", "mailer").Logger(),
	}
}

func (m *ResendMailer) Send(ctx context.Context, email Email) (string, error) {
	if email.To == "" {
		return "", errors.New("email is required")
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	to, html := email.To, email.HTML
	if m.testRecipient != "" {
		to = m.testRecipient
		html += fmt.Sprintf(`<p style="font-size: 12px; color: #9ca3af; text-align: center;">This email was sent to: %s (redirected to %s in test mode)</p>`,
			template.HTMLEscapeString(email.To), template.HTMLEscapeString(to))
	}

	sent, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: email.Subject,
		Html:    html,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}

	m.log.Info().Str("to", to).Str("original_to", email.To).Str("id", sent.Id).Msg("email sent")
	return sent.Id, nil
}

// DayText renders days until an occurrence the way subjects phrase it.
func DayText(daysUntil int) string {
	switch daysUntil {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", daysUntil)
	}
}

// ReminderSubject formats e.g. "Birthday Reminder: Sam's birthday is tomorrow!".
func ReminderSubject(occasion models.OccasionType, personName string, daysUntil int) string {
	return fmt.Sprintf("%s Reminder: %s's %s is %s!", occasion.Title(), personName, occasion, DayText(daysUntil))
}

// FormatDate renders a date like "May 20, 2024".
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// OrdinalSuffix renders 1 as "1st", 12 as "12th", 22 as "22nd".
func OrdinalSuffix(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// Notice is everything a reminder email says.
type Notice struct {
	To            string
	PersonName    string
	Occasion      models.OccasionType
	Date          time.Time
	DaysUntil     int
	CustomMessage string
	Ordinal       *int
}

var reminderTemplate = template.Must(template.New("reminder").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
  <h1 style="color: {{.Color}}; text-align: center;">{{.Title}} Reminder</h1>
  <p style="font-size: 18px;">Hello,</p>
  <p style="font-size: 16px;">This is a reminder that <strong>{{.PersonName}}'s {{.Occasion}}</strong> is {{.DayText}} ({{.Date}}).</p>
  {{- if .Ordinal}}
  <p style="font-size: 16px;">It is their {{.Ordinal}} anniversary{{if .Milestone}}, a milestone worth celebrating!{{else}}.{{end}}</p>
  {{- end}}
  {{- if .CustomMessage}}
  <div style="background-color: #f9fafb; padding: 15px; border-radius: 8px; margin: 20px 0;">
    <p style="font-size: 16px; margin: 0;"><em>"{{.CustomMessage}}"</em></p>
  </div>
  {{- end}}
  <p style="font-size: 14px; color: #6b7280; text-align: center; margin-top: 30px;">This is an automated reminder from your Cheerful Reminder App.</p>
</div>`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
  <h1 style="color: #3b82f6; text-align: center;">Welcome to Cheerful Reminder!</h1>
  <p style="font-size: 18px;">Hello {{.Name}},</p>
  {{- if .Message}}
  <p style="font-size: 16px;">{{.Message}}</p>
  {{- end}}
  <div style="background-color: #f0f9ff; padding: 15px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #3b82f6;">
    <p style="font-size: 16px; margin: 0;"><strong>Get Started:</strong><br>
      1. Add important birthdays and anniversaries<br>
      2. Set notification timings<br>
      3. Relax knowing you'll never miss an important date</p>
  </div>
  <p style="font-size: 14px; color: #6b7280; text-align: center; margin-top: 30px;">Thank you for joining Cheerful Reminder!</p>
</div>`))

type reminderView struct {
	Color         string
	Title         string
	PersonName    string
	Occasion      string
	DayText       string
	Date          string
	CustomMessage string
	Ordinal       string
	Milestone     bool
}

// ReminderEmail renders the notification for one occurrence.
func ReminderEmail(n Notice) (Email, error) {
	color := "#3b82f6"
	if n.Occasion == models.OccasionAnniversary {
		color = "#ec4899"
	}
	data := reminderView{
		Color:         color,
		Title:         n.Occasion.Title(),
		PersonName:    n.PersonName,
		Occasion:      string(n.Occasion),
		DayText:       DayText(n.DaysUntil),
		Date:          FormatDate(n.Date),
		CustomMessage: n.CustomMessage,
	}
	if n.Ordinal != nil && *n.Ordinal > 0 {
		data.Ordinal = OrdinalSuffix(*n.Ordinal)
		data.Milestone = Occurrence{Ordinal: n.Ordinal}.Milestone()
	}

	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, data); err != nil {
		return Email{}, fmt.Errorf("render reminder email: %w", err)
	}
	return Email{
		To:      n.To,
		Subject: ReminderSubject(n.Occasion, n.PersonName, n.DaysUntil),
		HTML:    buf.String(),
	}, nil
}

// WelcomeEmail renders the greeting sent after sign-up.
func WelcomeEmail(to, name, message string) (Email, error) {
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, struct{ Name, Message string }{name, message}); err != nil {
		return Email{}, fmt.Errorf("render welcome email: %w", err)
	}
	return Email{To: to, Subject: "Welcome to Cheerful Reminder!", HTML: buf.String()}, nil
}

// ReminderText is the plain-text form used for SMS.
func ReminderText(n Notice) string {
	text := fmt.Sprintf("%s's %s is %s (%s).", n.PersonName, n.Occasion, DayText(n.DaysUntil), FormatDate(n.Date))
	if n.CustomMessage != "" {
		text += " " + n.CustomMessage
	}
	return text
}
