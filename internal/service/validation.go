package service

import (
	"net/mail"
	"strings"

	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

const (
	maxEmailLength    = 255
	minPasswordLength = 5
	maxPasswordLength = 100
)

// fieldErrors collects per-field validation failures.
type fieldErrors map[string]any

func (f fieldErrors) add(field, reason string) {
	if _, exists := f[field]; !exists {
		f[field] = reason
	}
}

func (f fieldErrors) err(message string) error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError(message, map[string]any(f))
}

func checkEmail(f fieldErrors, field, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		f.add(field, "required")
	case len(email) > maxEmailLength:
		f.add(field, "too long")
	case !isEmail(email):
		f.add(field, "invalid email")
	}
}

func checkPassword(f fieldErrors, field, password string) {
	switch n := len(password); {
	case n < minPasswordLength:
		f.add(field, "too short")
	case n > maxPasswordLength:
		f.add(field, "too long")
	}
}

func checkLength(f fieldErrors, field, value string, min, max int) {
	switch n := len(strings.TrimSpace(value)); {
	case n == 0 && min > 0:
		f.add(field, "required")
	case n < min:
		f.add(field, "too short")
	case max > 0 && n > max:
		f.add(field, "too long")
	}
}

// isEmail accepts a bare address only; "Name <a@b.co>" is rejected.
func isEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
