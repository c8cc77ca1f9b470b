package middleware

import (
	"strings"

	"medvault/app/api"
	"medvault/auth"

	"github.com/gofiber/fiber/v2"
)

// Authenticate resolves the bearer credential once per request and parks
// the principal in the request locals for the handlers.
func Authenticate(authn auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return api.ErrUnAuthorized("missing bearer token")
		}

		principal, err := authn.CurrentUser(token)
		if err != nil {
			return api.ErrUnAuthorized("invalid credentials")
		}

		c.Locals(auth.PrincipalKey, principal)
		return c.Next()
	}
}
