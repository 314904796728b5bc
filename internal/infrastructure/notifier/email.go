package notifier

import (
	"context"
	"fmt"

	"caqm-backend/config"
	"caqm-backend/internal/service"

	"github.com/go-gomail/gomail"
)

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *EmailSender) Channel() string { return "email" }

func (s *EmailSender) Accepts(recipient service.Recipient) bool {
	return recipient.Email != ""
}

func (s *EmailSender) Send(ctx context.Context, recipient service.Recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetAddressHeader("To", recipient.Email, recipient.Name)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}
