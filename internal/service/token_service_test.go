package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/platform/clock"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

const testTokenSecret = "test-token-secret"

var baseTime = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

type tokenFixture struct {
	svc    *TokenService
	repo   *memoryTokenRepository
	clock  *clock.Fixed
	events *eventLog
}

func newTokenFixture() *tokenFixture {
	repo := newMemoryTokenRepository()
	clk := clock.NewFixed(baseTime)
	log, dispatcher := newEventLog()
	svc := NewTokenService(TokenDependencies{
		TokenRepo:  repo,
		Signer:     auth.NewJWTSigner(testTokenSecret, domain.TokenIDLength),
		Dispatcher: dispatcher,
		Clock:      clk,
	})
	return &tokenFixture{svc: svc, repo: repo, clock: clk, events: log}
}

func (f *tokenFixture) create(t *testing.T, opts ...CreateOption) string {
	t.Helper()
	signed, err := f.svc.CreateToken(context.Background(), domain.TokenInput{
		Type:      "TEST",
		UserID:    "u1",
		ExpiredAt: baseTime.Add(24 * time.Hour),
	}, opts...)
	require.NoError(t, err)
	return signed
}

func (f *tokenFixture) consume(signed, expectedType string) (*domain.Token, error) {
	return f.svc.ConsumeToken(context.Background(), domain.ConsumeInput{Token: signed, ExpectedType: expectedType})
}

func requireInvalidToken(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidOrExpiredToken), "got %v", err)
	assert.Contains(t, err.Error(), "Invalid or expired token")
}

func TestCreateAndConsumeToken(t *testing.T) {
	f := newTokenFixture()
	signed, err := f.svc.CreateToken(context.Background(), domain.TokenInput{
		Type:      "AUTH",
		UserID:    "u1",
		ExpiredAt: baseTime.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	claims, err := auth.NewJWTSigner(testTokenSecret, domain.TokenIDLength).Verify(signed)
	require.NoError(t, err)
	assert.Len(t, claims.TokenID, domain.TokenIDLength)

	token, err := f.consume(signed, "AUTH")
	require.NoError(t, err)
	assert.Equal(t, &domain.Token{ID: claims.TokenID, Type: "AUTH", UserID: "u1"}, token)

	_, err = f.consume(signed, "AUTH")
	requireInvalidToken(t, err)

	assert.Equal(t, []string{"TOKEN/CREATED", "TOKEN/CONSUMED"}, f.events.names())
	consumed := f.events.last()
	assert.Equal(t, claims.TokenID, consumed.EntityID)
	assert.Equal(t, "u1", *consumed.AuthorUserID)
	assert.Equal(t, baseTime, consumed.CreatedAt)
}

func TestCreateTokenEvent(t *testing.T) {
	f := newTokenFixture()
	f.create(t)

	require.Len(t, f.events.names(), 1)
	created := f.events.last()
	assert.Equal(t, events.EntityToken, created.EntityType)
	assert.Equal(t, events.TypeCreated, created.Type)
	assert.Equal(t, baseTime, created.CreatedAt)
	assert.Nil(t, created.AuthorUserID)
	assert.Equal(t, "u1", *created.TargetUserID)
	payload, ok := created.Payload.(events.TokenCreatedPayload)
	require.True(t, ok)
	assert.True(t, payload.DiscardPreviousTokens)
}

func TestSigningIsDeterministic(t *testing.T) {
	signer := auth.NewJWTSigner(testTokenSecret, domain.TokenIDLength)
	claims := auth.TokenClaims{TokenID: "abcdefghijklmnopqrstuvwxyz012345", Type: "AUTH", UserID: "u1"}

	first, err := signer.Sign(claims)
	require.NoError(t, err)
	second, err := signer.Sign(claims)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestConsumeTokenTypeBinding(t *testing.T) {
	f := newTokenFixture()
	signed := f.create(t)

	_, err := f.consume(signed, "TEST2")
	requireInvalidToken(t, err)

	assert.Equal(t, 1, f.repo.count(), "a type mismatch must not touch the row")
	_, err = f.consume(signed, "TEST")
	require.NoError(t, err)
}

func TestConsumeTokenExpiredButNotSwept(t *testing.T) {
	f := newTokenFixture()
	signed := f.create(t)
	f.clock.Advance(48 * time.Hour)

	_, err := f.consume(signed, "TEST")
	requireInvalidToken(t, err)
	assert.Zero(t, f.repo.count(), "expired row is deleted by the failed attempt")

	_, err = f.consume(signed, "TEST")
	requireInvalidToken(t, err)
	assert.Equal(t, []string{"TOKEN/CREATED"}, f.events.names())
}

func TestConsumeTokenExpiredAndSwept(t *testing.T) {
	f := newTokenFixture()
	signed := f.create(t)
	f.clock.Advance(48 * time.Hour)

	count, err := f.svc.DeleteAllExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = f.consume(signed, "TEST")
	requireInvalidToken(t, err)
}

func TestSweepKeepsLiveTokens(t *testing.T) {
	f := newTokenFixture()
	f.create(t)

	count, err := f.svc.DeleteAllExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, f.repo.count())
}

func TestCreateTokenDiscardsPrevious(t *testing.T) {
	f := newTokenFixture()
	first := f.create(t)
	second := f.create(t)

	_, err := f.consume(first, "TEST")
	requireInvalidToken(t, err)

	_, err = f.consume(second, "TEST")
	require.NoError(t, err)
}

func TestCreateTokenKeepPrevious(t *testing.T) {
	f := newTokenFixture()
	first := f.create(t)
	second := f.create(t, KeepPreviousTokens())

	_, err := f.consume(first, "TEST")
	require.NoError(t, err)
	_, err = f.consume(second, "TEST")
	require.NoError(t, err)

	payload := f.events.events[1].Payload.(events.TokenCreatedPayload)
	assert.False(t, payload.DiscardPreviousTokens)
}

func TestCreateTokenValidation(t *testing.T) {
	f := newTokenFixture()

	_, err := f.svc.CreateToken(context.Background(), domain.TokenInput{Type: "TEST"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, f.repo.count())
	assert.Empty(t, f.events.names())
}

func TestConsumeTokenBadSignature(t *testing.T) {
	f := newTokenFixture()

	_, err := f.consume("badtoken", "TEST")
	requireInvalidToken(t, err)

	forged, err := auth.NewJWTSigner("another-secret", domain.TokenIDLength).
		Sign(auth.TokenClaims{TokenID: "abcdefghijklmnopqrstuvwxyz012345", Type: "TEST", UserID: "u1"})
	require.NoError(t, err)
	_, err = f.consume(forged, "TEST")
	requireInvalidToken(t, err)
}

func TestConsumeTokenRequiresInput(t *testing.T) {
	f := newTokenFixture()

	_, err := f.consume("", "TEST")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestConsumeTokenConcurrentRedemption(t *testing.T) {
	f := newTokenFixture()
	signed := f.create(t)

	const attempts = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.consume(signed, "TEST")
			if err == nil {
				successes.Add(1)
				return
			}
			if apperrors.HasCode(err, apperrors.CodeInvalidOrExpiredToken) {
				failures.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, attempts-1, failures.Load())
}

func TestConsumeTokenLostRaceIsInvalid(t *testing.T) {
	f := newTokenFixture()
	signed := f.create(t)
	f.repo.txConflict = true

	_, err := f.consume(signed, "TEST")
	requireInvalidToken(t, err)
}

func TestConsumeTokenCancelledContext(t *testing.T) {
	f := newTokenFixture()
	signed := f.create(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.ConsumeToken(ctx, domain.ConsumeInput{Token: signed, ExpectedType: "TEST"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, f.repo.count(), "cancelled consumption leaves the row in place")
	assert.Equal(t, []string{"TOKEN/CREATED"}, f.events.names())

	_, err = f.consume(signed, "TEST")
	require.NoError(t, err)
}

func TestDeleteToken(t *testing.T) {
	f := newTokenFixture()
	signed := f.create(t)

	require.NoError(t, f.svc.DeleteToken(context.Background(), signed))
	assert.Zero(t, f.repo.count())

	_, err := f.consume(signed, "TEST")
	requireInvalidToken(t, err)
}

func TestDeleteTokenSwallowsInvalidToken(t *testing.T) {
	f := newTokenFixture()

	require.NoError(t, f.svc.DeleteToken(context.Background(), "badtoken"))
	assert.Zero(t, f.repo.deleteCalls)
}
