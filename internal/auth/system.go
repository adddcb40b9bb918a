package auth

import (
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"
)

// SystemClaims identifies a trusted peer service.
type SystemClaims struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	InstanceID string `json:"instanceId"`
	jwt.RegisteredClaims
}

// SystemIdentity issues and checks the long-lived credentials of peer services.
type SystemIdentity struct {
	secret []byte
}

// NewSystemIdentity builds a verifier around the shared system secret.
func NewSystemIdentity(secret string) *SystemIdentity {
	return &SystemIdentity{secret: []byte(secret)}
}

// Sign returns the bearer value a peer presents in X-System-Authorization.
func (s *SystemIdentity) Sign(name, version, instanceID string) (string, error) {
	claims := SystemClaims{Name: name, Version: version, InstanceID: instanceID}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies a system credential.
func (s *SystemIdentity) Parse(tokenStr string) (*SystemClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &SystemClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*SystemClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid system claims")
	}
	return claims, nil
}
