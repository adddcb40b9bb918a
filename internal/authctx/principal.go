package authctx

import (
	"strings"
	"time"
)

// Kind discriminates the principal attached to a call.
type Kind int

const (
	KindAnonymous Kind = iota
	KindUser
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindSystem:
		return "system"
	default:
		return "anonymous"
	}
}

// Principal is one of Anonymous, User or System.
type Principal interface {
	Kind() Kind
}

// Anonymous is the principal of unauthenticated calls.
type Anonymous struct{}

func (Anonymous) Kind() Kind { return KindAnonymous }

// User is a logged-in account.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) Kind() Kind { return KindUser }

func (u User) valid() bool {
	return strings.TrimSpace(u.ID) != "" &&
		strings.TrimSpace(u.Email) != "" &&
		!u.CreatedAt.IsZero() &&
		!u.UpdatedAt.IsZero()
}

// System is a trusted peer service.
type System struct {
	Name       string
	Version    string
	InstanceID string
}

func (System) Kind() Kind { return KindSystem }

func (s System) valid() bool {
	return strings.TrimSpace(s.Name) != "" &&
		strings.TrimSpace(s.Version) != "" &&
		strings.TrimSpace(s.InstanceID) != ""
}
