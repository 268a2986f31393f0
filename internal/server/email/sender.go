// Package email delivers activation and password-reset messages.
package email

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Sender delivers transactional emails. Implementations return an error
// when the message could not be handed off.
type Sender interface {
	SendActivationEmail(ctx context.Context, to, name, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no SMTP host is configured.
type LogSender struct {
	log      logging.Logger
	frontURL string
}

func NewLogSender(log logging.Logger, frontURL string) *LogSender {
	return &LogSender{log: log.With("module", "email"), frontURL: frontURL}
}

func (s *LogSender) SendActivationEmail(ctx context.Context, to, name, token string) error {
	s.log.Info(ctx, "activation email", "to", to, "name", name, "link", activationLink(s.frontURL, token))
	return nil
}

func (s *LogSender) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	s.log.Info(ctx, "password reset email", "to", to, "link", resetLink(s.frontURL, token))
	return nil
}
