package mailer

import (
	"context"
	"log/slog"
)

// LogMailer writes messages to the log instead of delivering them.
// Development only: the challenge code ends up in plain text.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that logs instead of sending.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer.log")}
}

// Send logs the message and reports success.
func (l *LogMailer) Send(_ context.Context, msg Message) error {
	l.logger.Info("mail (not delivered)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
