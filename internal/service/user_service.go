package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/authctx"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/platform/clock"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// Email types and translation keys used by the account flows.
const (
	EmailTypeLoginToken    = "LOGIN_TOKEN"
	EmailTypePasswordReset = "PASSWORD_RESET"

	msgLoginTokenSubject    = "email.login_token.subject"
	msgLoginTokenBody       = "email.login_token.body"
	msgPasswordResetSubject = "email.password_reset.subject"
	msgPasswordResetBody    = "email.password_reset.body"
)

// Session is the result of a successful login.
type Session struct {
	User        *domain.User
	AccessToken string
	ExpiresAt   time.Time
}

// UserService coordinates registration, login and password flows.
type UserService struct {
	users    repository.UserRepository
	tokens   *TokenService
	emails   *EmailService
	hasher   auth.PasswordHasher
	access   *auth.TokenManager
	events   events.Dispatcher
	clock    clock.Clock
	system   authctx.System
	baseURL  string
	loginTTL time.Duration
	resetTTL time.Duration
	logger   *zap.Logger
}

// UserDependencies encapsulates requirements for the user service.
type UserDependencies struct {
	UserRepo      repository.UserRepository
	Tokens        *TokenService
	Emails        *EmailService
	Hasher        auth.PasswordHasher
	AccessTokens  *auth.TokenManager
	Dispatcher    events.Dispatcher
	Clock         clock.Clock
	System        authctx.System
	BaseURL       string
	LoginTokenTTL time.Duration
	ResetTokenTTL time.Duration
	Logger        *zap.Logger
}

// NewUserService builds the service.
func NewUserService(deps UserDependencies) *UserService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &UserService{
		users:    deps.UserRepo,
		tokens:   deps.Tokens,
		emails:   deps.Emails,
		hasher:   deps.Hasher,
		access:   deps.AccessTokens,
		events:   deps.Dispatcher,
		clock:    deps.Clock,
		system:   deps.System,
		baseURL:  strings.TrimRight(deps.BaseURL, "/"),
		loginTTL: deps.LoginTokenTTL,
		resetTTL: deps.ResetTokenTTL,
		logger:   deps.Logger,
	}
}

// SignUp creates an account.
func (s *UserService) SignUp(ctx context.Context, in domain.UserInput) (*domain.User, error) {
	if err := authctx.FromContext(ctx).AssertNotLogged(); err != nil {
		return nil, err
	}
	f := fieldErrors{}
	checkEmail(f, "email", in.Email)
	checkPassword(f, "password", in.Password)
	if err := f.err("invalid sign up"); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{Email: normalizeEmail(in.Email), PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": user.Email})
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.events.Dispatch(ctx, events.UserSignedUp(user))
	return user, nil
}

// LogIn checks credentials and issues an access token.
func (s *UserService) LogIn(ctx context.Context, in domain.Credentials) (*Session, error) {
	if err := authctx.FromContext(ctx).AssertNotLogged(); err != nil {
		return nil, err
	}
	f := fieldErrors{}
	checkEmail(f, "email", in.Email)
	checkLength(f, "password", in.Password, 1, maxPasswordLength)
	if err := f.err("invalid credentials"); err != nil {
		return nil, err
	}

	user, err := s.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || s.hasher.Compare(user.PasswordHash, in.Password) != nil {
		return nil, apperrors.NewBadCredentials(in.Email)
	}
	return s.openSession(ctx, user)
}

// LogOut records the end of a session. Access tokens are stateless and expire on their own.
func (s *UserService) LogOut(ctx context.Context) error {
	ac := authctx.FromContext(ctx)
	if err := ac.AssertLogged(); err != nil {
		return err
	}
	u, _ := ac.User()
	s.events.Dispatch(ctx, events.UserLoggedOut(u.ID, s.clock.Now()))
	return nil
}

// UpdatePassword changes the caller's password after checking the former one.
func (s *UserService) UpdatePassword(ctx context.Context, in domain.PasswordUpdate) (*domain.User, error) {
	if err := authctx.FromContext(ctx).AssertToBeUser(in.UserID); err != nil {
		return nil, err
	}
	f := fieldErrors{}
	checkLength(f, "formerPassword", in.FormerPassword, 1, maxPasswordLength)
	checkPassword(f, "password", in.Password)
	if err := f.err("invalid password update"); err != nil {
		return nil, err
	}

	user, err := s.users.UpdatePassword(ctx, in.UserID, func(current *domain.User) (string, error) {
		if err := s.hasher.Compare(current.PasswordHash, in.FormerPassword); err != nil {
			return "", apperrors.NewBadCredentials(current.Email)
		}
		return s.hasher.Hash(in.Password)
	})
	if err != nil {
		return nil, s.mapUserError(err)
	}

	s.events.Dispatch(ctx, events.UserUpdated(user, "password"))
	return user, nil
}

// GetCurrentUser returns the logged user.
func (s *UserService) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	ac := authctx.FromContext(ctx)
	if err := ac.AssertLogged(); err != nil {
		return nil, err
	}
	u, _ := ac.User()
	user, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, s.mapUserError(err)
	}
	return user, nil
}

// GetUser returns the user with id when it is the caller, nil otherwise.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	ac := authctx.FromContext(ctx)
	if err := ac.AssertLogged(); err != nil {
		return nil, err
	}
	if u, _ := ac.User(); u.ID != id {
		return nil, nil
	}
	return s.GetCurrentUser(ctx)
}

// RequestLoginToken mails a one-time login link. Unknown emails succeed silently.
func (s *UserService) RequestLoginToken(ctx context.Context, email string) error {
	ac := authctx.FromContext(ctx)
	if err := ac.AssertNotLogged(); err != nil {
		return err
	}
	return s.mailToken(ctx, ac, email, domain.TokenTypeAuth, s.loginTTL,
		EmailTypeLoginToken, "/login", msgLoginTokenSubject, msgLoginTokenBody)
}

// LogInWithToken redeems a login link. An already logged caller only burns the token.
func (s *UserService) LogInWithToken(ctx context.Context, token string) (*Session, error) {
	ac := authctx.FromContext(ctx)
	if err := ac.AssertNotLogged(); err != nil {
		if delErr := s.tokens.DeleteToken(ctx, token); delErr != nil {
			s.logger.Warn("abandon login token", zap.Error(delErr))
		}
		return nil, err
	}

	consumed, err := s.tokens.ConsumeToken(ctx, domain.ConsumeInput{Token: token, ExpectedType: domain.TokenTypeAuth})
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, consumed.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidOrExpiredToken()
		}
		return nil, apperrors.NewInternalError(err)
	}
	return s.openSession(ctx, user)
}

// RequestPasswordReset mails a password reset link. Unknown emails succeed silently.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	ac := authctx.FromContext(ctx)
	if err := ac.AssertNotLogged(); err != nil {
		return err
	}
	return s.mailToken(ctx, ac, email, domain.TokenTypePasswordReset, s.resetTTL,
		EmailTypePasswordReset, "/reset-password", msgPasswordResetSubject, msgPasswordResetBody)
}

// ResetPassword redeems a reset token and sets a new password.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) (*domain.User, error) {
	if err := authctx.FromContext(ctx).AssertNotLogged(); err != nil {
		return nil, err
	}
	f := fieldErrors{}
	checkLength(f, "token", token, 1, 0)
	checkPassword(f, "password", password)
	if err := f.err("invalid password reset"); err != nil {
		return nil, err
	}

	consumed, err := s.tokens.ConsumeToken(ctx, domain.ConsumeInput{Token: token, ExpectedType: domain.TokenTypePasswordReset})
	if err != nil {
		return nil, err
	}
	user, err := s.users.UpdatePassword(ctx, consumed.UserID, func(*domain.User) (string, error) {
		return s.hasher.Hash(password)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidOrExpiredToken()
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.events.Dispatch(ctx, events.UserUpdated(user, "password"))
	return user, nil
}

func (s *UserService) mailToken(ctx context.Context, ac *authctx.Context, email, tokenType string, ttl time.Duration,
	emailType, path, subjectKey, bodyKey string) error {
	f := fieldErrors{}
	checkEmail(f, "email", email)
	if err := f.err("invalid email"); err != nil {
		return err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Debug("token requested for unknown email", zap.String("type", tokenType))
		return nil
	}

	signed, err := s.tokens.CreateToken(ctx, domain.TokenInput{
		Type:      tokenType,
		UserID:    user.ID,
		ExpiredAt: s.clock.Now().Add(ttl),
	})
	if err != nil {
		return err
	}

	link := s.baseURL + path + "?" + url.Values{"token": {signed}}.Encode()
	_, err = s.emails.SendEmail(authctx.WithContext(ctx, ac.AsSystem(s.system)), domain.EmailMessageInput{
		To:           []domain.EmailAddress{{Address: user.Email}},
		TargetUserID: &user.ID,
		Type:         emailType,
		Subject:      ac.T(subjectKey),
		Text:         ac.T(bodyKey) + "\n\n" + link,
	})
	return err
}

func (s *UserService) openSession(ctx context.Context, user *domain.User) (*Session, error) {
	token, expiresAt, err := s.access.GenerateToken(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.events.Dispatch(ctx, events.UserLoggedIn(user, s.clock.Now()))
	return &Session{User: user, AccessToken: token, ExpiresAt: expiresAt}, nil
}

// findByEmail returns nil when no live account uses email.
func (s *UserService) findByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *UserService) mapUserError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("user", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}
