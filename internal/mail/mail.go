// Package mail sends transactional notifications for completed
// enrollments.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "gopkg.in/gomail.v2"

	"registrar/internal/reliability"
)

// Message is one outgoing notification.
type Message struct {
	Sender    string
	Recipient string
	Subject   string
	Content   string
}

// Sender delivers a message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	dialer   *gomail.Dialer
	fromName string
}

// NewSMTPSender configures the relay. fromName is the display name
// attached to the sender address.
func NewSMTPSender(host string, port int, username, password, fromName string) *SMTPSender {
	return &SMTPSender{
		dialer:   gomail.NewDialer(host, port, username, password),
		fromName: fromName,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.Sender, s.fromName)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.Recipient, err)
	}
	return nil
}

// LogSender logs instead of delivering. Used when no relay is
// configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail suppressed, no relay configured",
		"recipient", msg.Recipient, "subject", msg.Subject)
	return nil
}

// RetrySender wraps a Sender with a retry policy for transient relay
// failures.
type RetrySender struct {
	base   Sender
	policy reliability.RetryPolicy
}

func NewRetrySender(base Sender, policy reliability.RetryPolicy) *RetrySender {
	return &RetrySender{base: base, policy: policy}
}

func (s *RetrySender) Send(ctx context.Context, msg Message) error {
	return s.policy.Do(ctx, func() error {
		return s.base.Send(ctx, msg)
	})
}
