package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/domain"
)

// Mailer delivers a fully built message.
type Mailer interface {
	Send(ctx context.Context, msg *domain.EmailMessage) error
}

// LogMailer writes messages to the log instead of delivering them. It backs development
// environments where no relay is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates the mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg *domain.EmailMessage) error {
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.Address)
	}
	m.logger.Info("send email",
		zap.String("email_id", msg.ID),
		zap.String("from", msg.From),
		zap.Strings("to", to),
		zap.String("type", msg.Type),
		zap.String("subject", msg.Subject))
	m.logger.Debug("email body", zap.String("email_id", msg.ID), zap.String("text", msg.Text), zap.String("html", msg.HTML))
	return nil
}
