package auth

import (
	"errors"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrBadSignature is returned for any value that does not verify against the secret.
	ErrBadSignature = errors.New("bad signed token")
	// ErrMalformedClaims is returned when a correctly signed value lacks required fields.
	ErrMalformedClaims = errors.New("malformed token claims")
)

// TokenClaims is the signed part of a capability token. Timestamps are never signed so the
// same stored row always yields the same signature.
type TokenClaims struct {
	TokenID string `json:"id"`
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies capability tokens.
type TokenSigner interface {
	Sign(claims TokenClaims) (string, error)
	Verify(signed string) (*TokenClaims, error)
}

// JWTSigner signs capability tokens as HS256 JWTs.
type JWTSigner struct {
	secret   []byte
	idLength int
}

// NewJWTSigner returns a signer expecting token ids of idLength characters.
func NewJWTSigner(secret string, idLength int) *JWTSigner {
	return &JWTSigner{secret: []byte(secret), idLength: idLength}
}

func (s *JWTSigner) Sign(claims TokenClaims) (string, error) {
	payload := TokenClaims{TokenID: claims.TokenID, Type: claims.Type, UserID: claims.UserID}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(s.secret)
}

func (s *JWTSigner) Verify(signed string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(signed, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrBadSignature
	}
	if claims.Type == "" || claims.UserID == "" || len(claims.TokenID) != s.idLength {
		return nil, ErrMalformedClaims
	}
	return claims, nil
}
