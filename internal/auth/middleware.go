package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/identity-service/internal/authctx"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/platform/i18n"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// SystemAuthorizationHeader carries the credential of a peer service.
const SystemAuthorizationHeader = "X-System-Authorization"

// UserLookup loads the account behind an access token.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware turns request headers into an authorization context. Requests without
// credentials proceed as anonymous; each operation decides what it requires.
type AuthMiddleware struct {
	tokens *TokenManager
	system *SystemIdentity
	users  UserLookup
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, system *SystemIdentity, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, system: system, users: users}
}

// Handle resolves the caller and attaches it to the request's user context.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	requestID := strings.TrimSpace(c.Get(observability.RequestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(observability.RequestIDHeader, requestID)

	src := authctx.Source{
		RequestID: requestID,
		Translate: i18n.Translator(i18n.MatchAcceptLanguage(c.Get(fiber.HeaderAcceptLanguage))),
	}

	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		user, err := m.loadUser(c.UserContext(), header)
		if err != nil {
			return err
		}
		src.User = user
	}
	if header := c.Get(SystemAuthorizationHeader); header != "" {
		claims, err := m.system.Parse(bearer(header))
		if err != nil {
			return apperrors.NewUnauthorized("invalid system credentials")
		}
		src.System = &authctx.System{Name: claims.Name, Version: claims.Version, InstanceID: claims.InstanceID}
	}

	ac, err := authctx.FromTransport(src)
	if err != nil {
		return err
	}
	c.SetUserContext(authctx.WithContext(c.UserContext(), ac))
	return c.Next()
}

func (m *AuthMiddleware) loadUser(ctx context.Context, header string) (*authctx.User, error) {
	claims, err := m.tokens.ParseToken(bearer(header))
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	user, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	return &authctx.User{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt, UpdatedAt: user.UpdatedAt}, nil
}

// bearer strips an optional "Bearer " scheme.
func bearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(header)
}

// AuthContext returns the authorization context of the request.
func AuthContext(c *fiber.Ctx) *authctx.Context {
	return authctx.FromContext(c.UserContext())
}
