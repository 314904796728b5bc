package notifier

import (
	"context"
	"fmt"
	"unicode/utf8"

	"caqm-backend/config"
	"caqm-backend/internal/service"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// smsBodyLimit keeps a message within ten concatenated SMS segments
const smsBodyLimit = 1530

// SMSSender delivers notifications as text messages through Twilio.
type SMSSender struct {
	client *twilio.RestClient
	from   string
}

func NewSMSSender(cfg config.TwilioConfig) *SMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSSender{client: client, from: cfg.FromNumber}
}

func (s *SMSSender) Channel() string { return "sms" }

func (s *SMSSender) Accepts(recipient service.Recipient) bool {
	return recipient.Phone != ""
}

func (s *SMSSender) Send(ctx context.Context, recipient service.Recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := smsText(subject, body)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(recipient.Phone)
	params.SetFrom(s.from)
	params.SetBody(text)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("error sending sms: %w", err)
	}
	return nil
}

// smsText joins subject and body and cuts the result to smsBodyLimit
// characters without splitting a multi-byte character.
func smsText(subject, body string) string {
	text := subject + ": " + body
	if utf8.RuneCountInString(text) <= smsBodyLimit {
		return text
	}
	runes := 0
	for i := range text {
		if runes == smsBodyLimit {
			return text[:i]
		}
		runes++
	}
	return text
}
