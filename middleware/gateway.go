// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// BearerAuthMiddleware validates the Bearer token sent by the local node (cloud side) or by the UI
// (local side). An empty expected token disables the check.
func BearerAuthMiddleware(expectedToken string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Next()
		}
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Warn("🚫 [AUTH] missing Authorization header", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication token missing",
			})
		}

		// Parse "Bearer <token>", falling back to the raw header value.
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if !tokenMatches(token, expectedToken) {
			log.Warn("❌ [AUTH] invalid token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authentication token",
			})
		}
		return c.Next()
	}
}

func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
