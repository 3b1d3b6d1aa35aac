// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	HeaderUserID       = "X-User-ID"
	HeaderSessionToken = "X-Session-Token"

	LocalUserID       = "user_id"
	LocalSessionToken = "session_token"
)

// UserContextMiddleware extracts the account the local node is acting for. Requests without
// X-User-ID, or on behalf of the guest account, are rejected.
func UserContextMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(HeaderUserID))
		if userID == "" || userID == "guest" {
			log.Warn("❌ [USER_CTX] X-User-ID required", zap.String("path", c.Path()), zap.String("user_id", userID))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID for a signed-in account",
			})
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalSessionToken, c.Get(HeaderSessionToken))

		log.Debug("👤 [USER_CTX] request", zap.String("user_id", userID), zap.String("path", c.Path()))
		return c.Next()
	}
}

// UserID returns the account id set by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
