package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/medtrack-api/internal/config"
)

const sendTimeout = 10 * time.Second

var ErrInvalidMessage = errors.New("invalid email message")

type Service interface {
	SendWelcome(ctx context.Context, email string, username string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// sender is the part of gomail.Dialer the service uses.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	from   string
	dialer sender
}

// NewService returns an SMTP-backed Service, or a no-op one when mail is
// disabled.
func NewService(cfg config.MailConfig) Service {
	if !cfg.Enabled {
		return NoopService{}
	}
	return &smtpService{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *smtpService) SendWelcome(ctx context.Context, email string, username string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour MedTrack account has been created. You can now sign in.\n", username)
	return s.SendCustom(ctx, email, "Welcome to MedTrack", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	msg, err := buildMessage(s.from, to, subject, content)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sendTimeout):
		return context.DeadlineExceeded
	}
}

func buildMessage(from, to, subject, content string) (*gomail.Message, error) {
	from, to, subject = strings.TrimSpace(from), strings.TrimSpace(to), strings.TrimSpace(subject)
	switch {
	case from == "":
		return nil, fmt.Errorf("%w: from is required", ErrInvalidMessage)
	case to == "":
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case subject == "":
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", content)
	return msg, nil
}

// NoopService discards every message.
type NoopService struct{}

func (NoopService) SendWelcome(context.Context, string, string) error { return nil }

func (NoopService) SendCustom(context.Context, string, string, string) error { return nil }
