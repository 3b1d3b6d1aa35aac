package handlers

import (
	"initium-core/middleware"
	"initium-core/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupCloudRoutes mounts the account service the local nodes sync against. Every route needs the
// service token and the account in X-User-ID.
func SetupCloudRoutes(app *fiber.App, cloud *services.CloudAccountService, serviceToken string, log *zap.Logger) {
	secured := app.Group("/", middleware.BearerAuthMiddleware(serviceToken, log), middleware.UserContextMiddleware(log))

	secured.Post(services.SyncEndpoint, func(c *fiber.Ctx) error {
		var req services.PushRequest
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		snap, err := cloud.Push(c.UserContext(), middleware.UserID(c), req.Snapshot)
		if err != nil {
			return writeError(c, "sync failed", err)
		}
		return c.JSON(services.PushResponse{Snapshot: snap})
	})

	secured.Post(services.MigrateEndpoint, func(c *fiber.Ctx) error {
		var req services.PushRequest
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		n, err := cloud.Migrate(c.UserContext(), middleware.UserID(c), req.Snapshot)
		if err != nil {
			return writeError(c, "migration failed", err)
		}
		return c.JSON(services.MigrateResponse{Accepted: n})
	})

	secured.Get("/api/v1/snapshot", func(c *fiber.Ctx) error {
		snap, err := cloud.Snapshot(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return writeError(c, "failed to load snapshot", err)
		}
		return c.JSON(snap)
	})
}
