// Package authctx represents who is calling a service operation and provides the assertions
// every privileged operation starts with.
package authctx

import (
	"context"

	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// Translator resolves a message key for the caller's locale.
type Translator func(key string) string

func identity(key string) string { return key }

// Context is the immutable authorization context of one call.
type Context struct {
	requestID string
	principal Principal
	translate Translator
}

// Option customizes a Context at construction.
type Option func(*Context)

// WithTranslator sets the locale lookup. A nil translator keeps the identity function.
func WithTranslator(t Translator) Option {
	return func(c *Context) {
		if t != nil {
			c.translate = t
		}
	}
}

// New builds a context for the given principal. A nil principal means Anonymous.
func New(requestID string, principal Principal, opts ...Option) *Context {
	if principal == nil {
		principal = Anonymous{}
	}
	c := &Context{requestID: requestID, principal: principal, translate: identity}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source is what the transport layer extracted from a request.
type Source struct {
	RequestID string
	User      *User
	System    *System
	Translate Translator
}

// FromTransport builds a context from transport data. Having both a user and a system means
// the request was authenticated twice, which is a defect upstream, not a caller mistake.
func FromTransport(src Source) (*Context, error) {
	var principal Principal = Anonymous{}
	switch {
	case src.User != nil && src.System != nil:
		return nil, apperrors.NewInvariantViolation("authorization context cannot be both user and system")
	case src.User != nil:
		if !src.User.valid() {
			return nil, apperrors.NewInvariantViolation("authorization context user is incomplete")
		}
		principal = *src.User
	case src.System != nil:
		if !src.System.valid() {
			return nil, apperrors.NewInvariantViolation("authorization context system is incomplete")
		}
		principal = *src.System
	}
	return New(src.RequestID, principal, WithTranslator(src.Translate)), nil
}

// AsSystem derives a context acting as system, keeping the request id and translator.
func (c *Context) AsSystem(system System) *Context {
	return &Context{requestID: c.requestID, principal: system, translate: c.translate}
}

func (c *Context) RequestID() string { return c.requestID }

func (c *Context) Principal() Principal { return c.principal }

// User returns the logged user, if any.
func (c *Context) User() (User, bool) {
	u, ok := c.principal.(User)
	return u, ok
}

// System returns the calling system, if any.
func (c *Context) System() (System, bool) {
	s, ok := c.principal.(System)
	return s, ok
}

// UserID returns the logged user id or nil.
func (c *Context) UserID() *string {
	if u, ok := c.User(); ok {
		id := u.ID
		return &id
	}
	return nil
}

// T translates key for the caller.
func (c *Context) T(key string) string {
	return c.translate(key)
}

func (c *Context) IsLogged() bool { return c.principal.Kind() == KindUser }

func (c *Context) IsSystem() bool { return c.principal.Kind() == KindSystem }

func (c *Context) IsAuthenticated() bool { return c.IsLogged() || c.IsSystem() }

// AssertNotLogged fails when a user is already logged in.
func (c *Context) AssertNotLogged() error {
	if u, ok := c.User(); ok {
		return apperrors.NewAlreadyLogged(u.Email)
	}
	return nil
}

// AssertLogged fails unless a user is logged in.
func (c *Context) AssertLogged() error {
	if !c.IsLogged() {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	return nil
}

// AssertToBeUser fails unless the logged user is userID.
func (c *Context) AssertToBeUser(userID string) error {
	if err := c.AssertLogged(); err != nil {
		return err
	}
	if u, _ := c.User(); u.ID != userID {
		return apperrors.NewForbidden("Forbidden", map[string]any{"userId": u.ID})
	}
	return nil
}

// AssertAuthenticated fails unless a user or a system is calling.
func (c *Context) AssertAuthenticated() error {
	if !c.IsAuthenticated() {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	return nil
}

// AssertIsSystem fails for users with Forbidden and for anonymous callers with Unauthorized.
func (c *Context) AssertIsSystem() error {
	if u, ok := c.User(); ok {
		return apperrors.NewForbidden("Forbidden", map[string]any{"userId": u.ID})
	}
	if !c.IsSystem() {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	return nil
}

type ctxKey struct{}

// WithContext attaches ac to ctx.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext returns the attached authorization context, or an anonymous one.
func FromContext(ctx context.Context) *Context {
	if ac, ok := ctx.Value(ctxKey{}).(*Context); ok && ac != nil {
		return ac
	}
	return New("", Anonymous{})
}
