package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/authctx"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/platform/clock"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

var testSystem = authctx.System{Name: "identity-service", Version: "test", InstanceID: "1"}

type userFixture struct {
	svc    *UserService
	users  *mockUserRepository
	tokens *memoryTokenRepository
	mailer *recordingMailer
	access *auth.TokenManager
	events *eventLog
	clock  *clock.Fixed
}

func newUserFixture() *userFixture {
	clk := clock.NewFixed(baseTime)
	log, dispatcher := newEventLog()
	users := newMockUserRepository(clk.Now)
	tokenRepo := newMemoryTokenRepository()
	mailer := &recordingMailer{}
	access := auth.NewTokenManager("test-access-secret", time.Hour)

	tokens := NewTokenService(TokenDependencies{
		TokenRepo:  tokenRepo,
		Signer:     auth.NewJWTSigner(testTokenSecret, domain.TokenIDLength),
		Dispatcher: dispatcher,
		Clock:      clk,
	})
	emails := NewEmailService(EmailDependencies{
		Mailer:      mailer,
		Dispatcher:  dispatcher,
		Clock:       clk,
		DefaultFrom: "noreply@example.com",
	})
	svc := NewUserService(UserDependencies{
		UserRepo:      users,
		Tokens:        tokens,
		Emails:        emails,
		Hasher:        auth.BcryptHasher{Cost: bcrypt.MinCost},
		AccessTokens:  access,
		Dispatcher:    dispatcher,
		Clock:         clk,
		System:        testSystem,
		BaseURL:       "https://id.example.com/",
		LoginTokenTTL: 15 * time.Minute,
		ResetTokenTTL: 30 * time.Minute,
	})
	return &userFixture{svc: svc, users: users, tokens: tokenRepo, mailer: mailer, access: access, events: log, clock: clk}
}

func (f *userFixture) signUp(t *testing.T, email, password string) *domain.User {
	t.Helper()
	user, err := f.svc.SignUp(context.Background(), domain.UserInput{Email: email, Password: password})
	require.NoError(t, err)
	return user
}

func loggedAs(user *domain.User) context.Context {
	ac := authctx.New("req-1", authctx.User{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt, UpdatedAt: user.UpdatedAt})
	return authctx.WithContext(context.Background(), ac)
}

func asSystem() context.Context {
	return authctx.WithContext(context.Background(), authctx.New("req-1", testSystem))
}

// mailedToken extracts the token query parameter from the last mailed link.
func (f *userFixture) mailedToken(t *testing.T) string {
	t.Helper()
	msg := f.mailer.last()
	require.NotNil(t, msg)
	lines := strings.Split(msg.Text, "\n")
	link, err := url.Parse(lines[len(lines)-1])
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestSignUp(t *testing.T) {
	f := newUserFixture()

	user := f.signUp(t, "Alice@Example.com", "secret1")

	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.Equal(t, baseTime, user.CreatedAt)
	assert.Equal(t, []string{"USER/SIGNED_UP"}, f.events.names())
	assert.Equal(t, user.ID, *f.events.last().AuthorUserID)
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	f := newUserFixture()
	f.signUp(t, "alice@example.com", "secret1")

	_, err := f.svc.SignUp(context.Background(), domain.UserInput{Email: "ALICE@example.com", Password: "secret2"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestSignUpValidation(t *testing.T) {
	f := newUserFixture()
	cases := map[string]domain.UserInput{
		"invalid email":  {Email: "not-an-email", Password: "secret1"},
		"named address":  {Email: "Alice <alice@example.com>", Password: "secret1"},
		"short password": {Email: "alice@example.com", Password: "abcd"},
		"long password":  {Email: "alice@example.com", Password: strings.Repeat("a", 101)},
		"long email":     {Email: strings.Repeat("a", 250) + "@example.com", Password: "secret1"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SignUp(context.Background(), in)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}
}

func TestSignUpWhileLogged(t *testing.T) {
	f := newUserFixture()
	user := f.signUp(t, "alice@example.com", "secret1")

	_, err := f.svc.SignUp(loggedAs(user), domain.UserInput{Email: "bob@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyLogged))
	assert.Contains(t, err.Error(), "alice@example.com")
}

func TestLogIn(t *testing.T) {
	f := newUserFixture()
	user := f.signUp(t, "alice@example.com", "secret1")

	session, err := f.svc.LogIn(context.Background(), domain.Credentials{Email: "Alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)

	claims, err := f.access.ParseToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, []string{"USER/SIGNED_UP", "USER/LOGGED_IN"}, f.events.names())
}

func TestLogInBadCredentials(t *testing.T) {
	f := newUserFixture()
	f.signUp(t, "alice@example.com", "secret1")

	_, err := f.svc.LogIn(context.Background(), domain.Credentials{Email: "alice@example.com", Password: "wrong-password"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBadCredentials))

	_, err = f.svc.LogIn(context.Background(), domain.Credentials{Email: "nobody@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBadCredentials))
}

func TestLogOut(t *testing.T) {
	f := newUserFixture()
	user := f.signUp(t, "alice@example.com", "secret1")

	require.NoError(t, f.svc.LogOut(loggedAs(user)))
	assert.Equal(t, "USER/LOGGED_OUT", f.events.last().Name())

	err := f.svc.LogOut(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestLoginTokenFlow(t *testing.T) {
	f := newUserFixture()
	user := f.signUp(t, "alice@example.com", "secret1")

	require.NoError(t, f.svc.RequestLoginToken(context.Background(), "alice@example.com"))

	msg := f.mailer.last()
	require.NotNil(t, msg)
	assert.Equal(t, EmailTypeLoginToken, msg.Type)
	assert.Equal(t, user.ID, msg.Headers[domain.HeaderTargetUserID])
	assert.Contains(t, msg.Text, "https://id.example.com/login?token=")

	assert.Equal(t, []string{"USER/SIGNED_UP", "TOKEN/CREATED", "EMAIL/SENT"}, f.events.names())
	sent := f.events.last()
	assert.Nil(t, sent.AuthorUserID, "internal emails are sent as system")
	assert.Equal(t, user.ID, *sent.TargetUserID)

	token := f.mailedToken(t)
	session, err := f.svc.LogInWithToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)

	_, err = f.svc.LogInWithToken(context.Background(), token)
	requireInvalidToken(t, err)
}

func TestLogInWithTokenWhileLoggedAbandonsToken(t *testing.T) {
	f := newUserFixture()
	user := f.signUp(t, "alice@example.com", "secret1")
	require.NoError(t, f.svc.RequestLoginToken(context.Background(), "alice@example.com"))
	token := f.mailedToken(t)

	_, err := f.svc.LogInWithToken(loggedAs(user), token)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyLogged))
	assert.Zero(t, f.tokens.count())

	_, err = f.svc.LogInWithToken(context.Background(), token)
	requireInvalidToken(t, err)
}

func TestRequestLoginTokenUnknownEmail(t *testing.T) {
	f := newUserFixture()

	require.NoError(t, f.svc.RequestLoginToken(context.Background(), "nobody@example.com"))
	assert.Nil(t, f.mailer.last())
	assert.Zero(t, f.tokens.count())
}

func TestLoginTokenExpires(t *testing.T) {
	f := newUserFixture()
	f.signUp(t, "alice@example.com", "secret1")
	require.NoError(t, f.svc.RequestLoginToken(context.Background(), "alice@example.com"))
	token := f.mailedToken(t)

	f.clock.Advance(16 * time.Minute)

	_, err := f.svc.LogInWithToken(context.Background(), token)
	requireInvalidToken(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newUserFixture()
	f.signUp(t, "alice@example.com", "secret1")

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	token := f.mailedToken(t)
	assert.Contains(t, f.mailer.last().Text, "/reset-password?token=")

	_, err := f.svc.LogInWithToken(context.Background(), token)
	requireInvalidToken(t, err)

	updated, err := f.svc.ResetPassword(context.Background(), token, "new-secret")
	require.NoError(t, err)
	assert.Equal(t, "USER/UPDATED", f.events.last().Name())

	_, err = f.svc.LogIn(context.Background(), domain.Credentials{Email: updated.Email, Password: "secret1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBadCredentials))
	_, err = f.svc.LogIn(context.Background(), domain.Credentials{Email: updated.Email, Password: "new-secret"})
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(context.Background(), token, "another-secret")
	requireInvalidToken(t, err)
}

func TestUpdatePassword(t *testing.T) {
	f := newUserFixture()
	user := f.signUp(t, "alice@example.com", "secret1")
	ctx := loggedAs(user)

	_, err := f.svc.UpdatePassword(ctx, domain.PasswordUpdate{UserID: user.ID, FormerPassword: "wrong", Password: "new-secret"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBadCredentials))

	updated, err := f.svc.UpdatePassword(ctx, domain.PasswordUpdate{UserID: user.ID, FormerPassword: "secret1", Password: "new-secret"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, updated.ID)
	assert.Equal(t, "USER/UPDATED", f.events.last().Name())
}

func TestUpdatePasswordOfAnotherUser(t *testing.T) {
	f := newUserFixture()
	alice := f.signUp(t, "alice@example.com", "secret1")
	bob := f.signUp(t, "bob@example.com", "secret1")

	_, err := f.svc.UpdatePassword(loggedAs(alice), domain.PasswordUpdate{UserID: bob.ID, FormerPassword: "secret1", Password: "new-secret"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestGetUser(t *testing.T) {
	f := newUserFixture()
	alice := f.signUp(t, "alice@example.com", "secret1")
	bob := f.signUp(t, "bob@example.com", "secret1")

	self, err := f.svc.GetUser(loggedAs(alice), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, self.Email)

	other, err := f.svc.GetUser(loggedAs(alice), bob.ID)
	require.NoError(t, err)
	assert.Nil(t, other)

	_, err = f.svc.GetCurrentUser(asSystem())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}
