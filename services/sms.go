package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Texter delivers a plain-text message and returns the provider message id.
type Texter interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

type TwilioTexter struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioTexter returns nil when any credential is missing; SMS reminders are then skipped.
func NewTwilioTexter(accountSid, authToken, from string) *TwilioTexter {
	if accountSid == "" || authToken == "" || from == "" {
		return nil
	}
	return &TwilioTexter{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
		from: from,
	}
}

// SendText waits for the Twilio call or ctx, whichever ends first. The client
// has no context support, so an abandoned call finishes in the background.
func (t *TwilioTexter) SendText(ctx context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := t.client.Api.CreateMessage(params)
		if err != nil {
			done <- result{err: fmt.Errorf("twilio: %w", err)}
			return
		}
		if resp.Sid == nil {
			done <- result{err: errors.New("twilio: no message SID returned")}
			return
		}
		done <- result{sid: *resp.Sid}
	}()

	select {
	case r := <-done:
		return r.sid, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
