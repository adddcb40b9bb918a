package domain

import "time"

// User is an account able to log in. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserInput is the sign-up payload.
type UserInput struct {
	Email    string
	Password string
}

// Credentials is the login payload.
type Credentials struct {
	Email    string
	Password string
}

// PasswordUpdate changes the password of UserID after checking FormerPassword.
type PasswordUpdate struct {
	UserID         string
	FormerPassword string
	Password       string
}
