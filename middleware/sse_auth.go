// middleware/sse_auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SSEAuthMiddleware validates the `token` query parameter. EventSource clients cannot set headers,
// so the stream route takes the API token from the query instead of Authorization.
//
// Usage:
//
//	app.Get("/user/stream", middleware.SSEAuthMiddleware(token, log), h.Stream)
func SSEAuthMiddleware(expectedToken string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Next()
		}
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}
		if !tokenMatches(token, expectedToken) {
			log.Warn("[SSEAuth] ❌ invalid token", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
