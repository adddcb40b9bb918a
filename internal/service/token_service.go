package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/platform/clock"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

var tracer = otel.Tracer("github.com/spec-kit/identity-service/internal/service")

// TokenService mints, verifies and redeems single-use capability tokens.
type TokenService struct {
	tokens repository.TokenRepository
	signer auth.TokenSigner
	events events.Dispatcher
	clock  clock.Clock
	logger *zap.Logger
}

// TokenDependencies encapsulates requirements for the token service.
type TokenDependencies struct {
	TokenRepo  repository.TokenRepository
	Signer     auth.TokenSigner
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewTokenService builds the service.
func NewTokenService(deps TokenDependencies) *TokenService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TokenService{
		tokens: deps.TokenRepo,
		signer: deps.Signer,
		events: deps.Dispatcher,
		clock:  deps.Clock,
		logger: deps.Logger,
	}
}

type createOptions struct {
	discardPrevious bool
}

// CreateOption tunes CreateToken.
type CreateOption func(*createOptions)

// KeepPreviousTokens leaves earlier tokens of the same type and user valid.
func KeepPreviousTokens() CreateOption {
	return func(o *createOptions) { o.discardPrevious = false }
}

// CreateToken stores a new token and returns its signed value. By default every live token
// of the same type and user is deleted first. That delete is not atomic with the insert, so
// concurrent calls may briefly leave two live tokens.
func (s *TokenService) CreateToken(ctx context.Context, in domain.TokenInput, opts ...CreateOption) (string, error) {
	ctx, span := tracer.Start(ctx, "TokenService.CreateToken",
		trace.WithAttributes(attribute.String("token.type", in.Type)))
	defer span.End()

	if err := validateTokenInput(in); err != nil {
		return "", err
	}
	o := createOptions{discardPrevious: true}
	for _, opt := range opts {
		opt(&o)
	}

	if o.discardPrevious {
		discarded, err := s.tokens.DeleteByTypeAndUser(ctx, in.Type, in.UserID)
		if err != nil {
			return "", spanError(span, apperrors.NewInternalError(err))
		}
		span.SetAttributes(attribute.Int64("token.discarded", discarded))
	}

	token := &domain.Token{
		Type:      in.Type,
		UserID:    in.UserID,
		CreatedAt: s.clock.Now(),
		ExpiredAt: in.ExpiredAt,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", spanError(span, apperrors.NewInternalError(err))
	}

	signed, err := s.signer.Sign(auth.TokenClaims{TokenID: token.ID, Type: token.Type, UserID: token.UserID})
	if err != nil {
		return "", spanError(span, apperrors.NewInternalError(err))
	}

	s.events.Dispatch(ctx, events.TokenCreated(token, o.discardPrevious))
	return signed, nil
}

// ConsumeToken redeems a signed token exactly once. Lookup and delete share one serializable
// transaction; expiry is checked only after the delete committed so an expired row can never
// be redeemed, whichever of the sweep or this call gets there first.
func (s *TokenService) ConsumeToken(ctx context.Context, in domain.ConsumeInput) (*domain.Token, error) {
	ctx, span := tracer.Start(ctx, "TokenService.ConsumeToken",
		trace.WithAttributes(attribute.String("token.expected_type", in.ExpectedType)))
	defer span.End()

	if strings.TrimSpace(in.Token) == "" || strings.TrimSpace(in.ExpectedType) == "" {
		return nil, apperrors.NewValidationError("token and expectedType are required", nil)
	}

	claims, err := s.decode(in.Token)
	if err != nil {
		return nil, spanError(span, err)
	}
	if claims.Type != in.ExpectedType {
		return nil, spanError(span, apperrors.NewInvalidOrExpiredToken())
	}

	var consumed *domain.Token
	err = s.tokens.WithinTransaction(ctx, func(tx repository.TokenTx) error {
		token, err := tx.GetByID(ctx, claims.TokenID)
		if err != nil || token == nil {
			return err
		}
		if _, err := tx.DeleteByID(ctx, token.ID); err != nil {
			return err
		}
		consumed = token
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrTxConflict):
		s.logger.Debug("token consumed concurrently", zap.String("token_id", claims.TokenID))
		consumed = nil
	case err != nil:
		return nil, spanError(span, apperrors.NewInternalError(err))
	}

	now := s.clock.Now()
	if consumed == nil || consumed.IsExpired(now) {
		return nil, spanError(span, apperrors.NewInvalidOrExpiredToken())
	}

	s.events.Dispatch(ctx, events.TokenConsumed(consumed, now))
	return consumed.Stripped(), nil
}

// DeleteToken abandons a token, e.g. one redeemed through another path. Invalid tokens are
// ignored.
func (s *TokenService) DeleteToken(ctx context.Context, signed string) error {
	ctx, span := tracer.Start(ctx, "TokenService.DeleteToken")
	defer span.End()

	claims, err := s.decode(signed)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidOrExpiredToken) {
			return nil
		}
		return spanError(span, err)
	}
	if _, err := s.tokens.DeleteByID(ctx, claims.TokenID); err != nil {
		return spanError(span, apperrors.NewInternalError(err))
	}
	return nil
}

// DeleteAllExpiredTokens sweeps rows whose deadline has passed.
func (s *TokenService) DeleteAllExpiredTokens(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "TokenService.DeleteAllExpiredTokens")
	defer span.End()

	count, err := s.tokens.DeleteExpiredBefore(ctx, s.clock.Now())
	if err != nil {
		return 0, spanError(span, apperrors.NewInternalError(err))
	}
	span.SetAttributes(attribute.Int64("token.swept", count))
	s.logger.Info("expired tokens swept", zap.Int64("count", count))
	return count, nil
}

func (s *TokenService) decode(signed string) (*auth.TokenClaims, error) {
	claims, err := s.signer.Verify(signed)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, auth.ErrBadSignature):
		return nil, apperrors.NewInvalidOrExpiredToken()
	default:
		return nil, apperrors.NewInternalError(err)
	}
}

func validateTokenInput(in domain.TokenInput) error {
	details := map[string]any{}
	if strings.TrimSpace(in.Type) == "" {
		details["type"] = "required"
	}
	if strings.TrimSpace(in.UserID) == "" {
		details["userId"] = "required"
	}
	if in.ExpiredAt.IsZero() {
		details["expiredAt"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid token input", details)
	}
	return nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
