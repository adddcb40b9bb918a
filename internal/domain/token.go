package domain

import "time"

// Token types minted by the identity service.
const (
	TokenTypeAuth          = "AUTH"
	TokenTypePasswordReset = "PASSWORD_RESET"
)

// TokenIDLength is the length of the opaque id generated for every stored token.
const TokenIDLength = 32

// Token is an outstanding single-use capability. A row exists until it is consumed,
// abandoned or swept; its presence alone does not make it valid.
type Token struct {
	ID        string
	Type      string
	UserID    string
	CreatedAt time.Time
	ExpiredAt time.Time
}

// IsExpired reports whether the deadline is strictly before now, matching the sweep predicate.
func (t *Token) IsExpired(now time.Time) bool {
	return t.ExpiredAt.Before(now)
}

// Stripped returns a copy without timestamps, the shape handed back after consumption.
func (t *Token) Stripped() *Token {
	return &Token{ID: t.ID, Type: t.Type, UserID: t.UserID}
}

// TokenInput describes a token to mint.
type TokenInput struct {
	Type      string
	UserID    string
	ExpiredAt time.Time
}

// ConsumeInput carries a signed token and the purpose the caller expects it to have.
type ConsumeInput struct {
	Token        string
	ExpectedType string
}
