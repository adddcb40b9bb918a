package dto

import (
	"time"

	"github.com/spec-kit/identity-service/internal/domain"
)

// CredentialsRequest payload for sign up and log in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailRequest payload for flows started from an email address.
type EmailRequest struct {
	Email string `json:"email"`
}

// TokenRequest payload for redeeming a mailed token.
type TokenRequest struct {
	Token string `json:"token"`
}

// PasswordResetRequest payload for completing a password reset.
type PasswordResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// PasswordUpdateRequest payload for changing a known password.
type PasswordUpdateRequest struct {
	FormerPassword string `json:"formerPassword"`
	Password       string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewUserResponse strips credentials from user.
func NewUserResponse(user *domain.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt, UpdatedAt: user.UpdatedAt}
}
