// Package mailer delivers confirmation codes by email. The API side
// publishes a ConfirmationEmail job onto the mail queue and returns
// immediately; the mailer worker consumes the queue and talks SMTP.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reviewdb/apiserver/config"
	"github.com/reviewdb/apiserver/internal/mq"
	"gopkg.in/gomail.v2"
)

// ConfirmationEmail is the job payload carried over the mail queue.
type ConfirmationEmail struct {
	To       string `json:"to"`
	Username string `json:"username"`
	Code     string `json:"code"`
}

// Dispatcher hands a confirmation email off for delivery. Implementations
// must not block on actual SMTP delivery.
type Dispatcher interface {
	DispatchConfirmation(ctx context.Context, email ConfirmationEmail) error
}

// QueueDispatcher publishes confirmation emails onto the mail queue.
type QueueDispatcher struct {
	backend mq.Backend
	queue   string
}

func NewQueueDispatcher(backend mq.Backend, queue string) *QueueDispatcher {
	return &QueueDispatcher{backend: backend, queue: queue}
}

// DispatchConfirmation enqueues the email job. Delivery happens in the
// mailer worker; a publish failure is the caller's to log, not to surface
// to the end user.
func (d *QueueDispatcher) DispatchConfirmation(ctx context.Context, email ConfirmationEmail) error {
	data, err := json.Marshal(email)
	if err != nil {
		return err
	}
	_, err = d.backend.Publish(ctx, d.queue, data, map[string]string{"kind": "confirmation"})
	return err
}

// LogDispatcher writes confirmation codes to the log instead of a queue.
// Stands in for a broker in development.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) DispatchConfirmation(_ context.Context, email ConfirmationEmail) error {
	d.logger.Info("confirmation code issued",
		slog.String("to", email.To),
		slog.String("code", email.Code),
	)
	return nil
}

// Sender performs the actual delivery of a confirmation email.
type Sender interface {
	SendConfirmation(email ConfirmationEmail) error
}

// SMTPSender delivers confirmation emails over SMTP.
type SMTPSender struct {
	cfg    config.MailerConfig
	logger *slog.Logger
}

func NewSMTPSender(cfg config.MailerConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger}
}

// SendConfirmation sends the confirmation code to the recipient.
func (s *SMTPSender) SendConfirmation(email ConfirmationEmail) error {
	if s.cfg.SMTPHost == "" || s.cfg.FromEmail == "" {
		return fmt.Errorf("smtp config missing")
	}
	if strings.TrimSpace(email.To) == "" {
		return fmt.Errorf("empty recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", "Your confirmation code")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nYour confirmation code is:\n\n%s\n\nExchange it for an access token at /auth/token/.\n",
		email.Username, email.Code,
	))

	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("confirmation email sent", slog.String("to", email.To))
	return nil
}
