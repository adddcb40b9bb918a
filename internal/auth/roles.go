package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/authctx"
)

func guard(assert func(*authctx.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := assert(AuthContext(c)); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireUser rejects requests without a logged user.
func RequireUser() fiber.Handler {
	return guard((*authctx.Context).AssertLogged)
}

// RequireSystem rejects requests not made by a peer service.
func RequireSystem() fiber.Handler {
	return guard((*authctx.Context).AssertIsSystem)
}

// RequireAnyPrincipal rejects anonymous requests.
func RequireAnyPrincipal() fiber.Handler {
	return guard((*authctx.Context).AssertAuthenticated)
}

// RequireAnonymous rejects requests from a logged user.
func RequireAnonymous() fiber.Handler {
	return guard((*authctx.Context).AssertNotLogged)
}
