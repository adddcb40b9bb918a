package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/authctx"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/platform/clock"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

const maxRecipients = 100

// EmailService validates outgoing messages and hands them to the mailer.
type EmailService struct {
	mailer Mailer
	events events.Dispatcher
	clock  clock.Clock
	from   string
	logger *zap.Logger
}

// EmailDependencies encapsulates requirements for the email service.
type EmailDependencies struct {
	Mailer      Mailer
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	DefaultFrom string
	Logger      *zap.Logger
}

// NewEmailService builds the service.
func NewEmailService(deps EmailDependencies) *EmailService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &EmailService{
		mailer: deps.Mailer,
		events: deps.Dispatcher,
		clock:  deps.Clock,
		from:   deps.DefaultFrom,
		logger: deps.Logger,
	}
}

// SendEmail sends a message on behalf of a user or a system.
func (s *EmailService) SendEmail(ctx context.Context, in domain.EmailMessageInput) (*domain.EmailMessage, error) {
	ac := authctx.FromContext(ctx)
	if err := ac.AssertAuthenticated(); err != nil {
		return nil, err
	}
	if err := validateEmailInput(in); err != nil {
		return nil, err
	}

	from := in.From
	if strings.TrimSpace(from) == "" {
		from = s.from
	}
	msg := &domain.EmailMessage{
		ID:      uuid.NewString(),
		From:    from,
		To:      in.To,
		Type:    in.Type,
		Subject: in.Subject,
		Text:    in.Text,
		HTML:    in.HTML,
	}
	msg.Headers = map[string]string{
		domain.HeaderEmailMessageID:   msg.ID,
		domain.HeaderEmailMessageType: msg.Type,
	}
	if in.TargetUserID != nil {
		msg.Headers[domain.HeaderTargetUserID] = *in.TargetUserID
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("mailer rejected message", zap.String("email_id", msg.ID), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	s.events.Dispatch(ctx, events.EmailSent(msg, ac.UserID(), in.TargetUserID, s.clock.Now()))
	return msg, nil
}

func validateEmailInput(in domain.EmailMessageInput) error {
	f := fieldErrors{}
	if in.From != "" {
		checkEmail(f, "from", in.From)
	}
	switch n := len(in.To); {
	case n == 0:
		f.add("to", "required")
	case n > maxRecipients:
		f.add("to", "too many recipients")
	}
	seen := make(map[string]struct{}, len(in.To))
	for _, addr := range in.To {
		checkEmail(f, "to", addr.Address)
		key := normalizeEmail(addr.Address)
		if _, dup := seen[key]; dup {
			f.add("to", "duplicate recipient")
		}
		seen[key] = struct{}{}
	}
	checkLength(f, "type", in.Type, 1, 0)
	checkLength(f, "subject", in.Subject, 5, 255)
	hasText, hasHTML := strings.TrimSpace(in.Text) != "", strings.TrimSpace(in.HTML) != ""
	if hasText == hasHTML {
		f.add("body", "exactly one of text or html is required")
	}
	if in.TargetUserID != nil && strings.TrimSpace(*in.TargetUserID) == "" {
		f.add("targetUserId", "must not be empty")
	}
	return f.err("invalid email message")
}
