package mailer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/reviewdb/apiserver/internal/mq"
)

// Consumer drains the mail queue and hands each job to a Sender.
type Consumer struct {
	sender Sender
	logger *slog.Logger
}

func NewConsumer(sender Sender, logger *slog.Logger) *Consumer {
	return &Consumer{sender: sender, logger: logger}
}

// Handle processes one queued job. A malformed payload is dropped (acked)
// after logging; redelivering it would never succeed. A delivery failure is
// logged and returned so the broker redelivers.
func (c *Consumer) Handle(ctx context.Context, msg mq.Message) error {
	var email ConfirmationEmail
	if err := json.Unmarshal(msg.Data, &email); err != nil {
		c.logger.Error("dropping malformed mail job",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := c.sender.SendConfirmation(email); err != nil {
		c.logger.Error("confirmation email delivery failed",
			slog.String("to", email.To),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Run subscribes to the mail queue until ctx is done.
func (c *Consumer) Run(ctx context.Context, backend mq.Backend, queue string) error {
	c.logger.Info("mailer consuming", slog.String("queue", queue))
	return backend.Subscribe(ctx, queue, c.Handle)
}
