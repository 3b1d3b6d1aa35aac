package handlers

import (
	"initium-core/services"
	"initium-core/workers"

	"github.com/gofiber/fiber/v2"
)

func SetupSyncRoutes(router fiber.Router, session *services.SessionState, state *services.AppState, sync *services.SyncCoordinator, auto *workers.AutoSyncScheduler) {
	router.Get("/sync/status", func(c *fiber.Ctx) error {
		return c.JSON(session.Status())
	})

	router.Post("/sync", func(c *fiber.Ctx) error {
		res, err := sync.SyncAll(c.UserContext())
		if err != nil {
			return writeError(c, "sync failed", err)
		}
		if err := state.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.JSON(res)
	})

	router.Post("/sync/migrate", func(c *fiber.Ctx) error {
		res, err := sync.MigrateToCloud(c.UserContext())
		if err != nil {
			return writeError(c, "migration failed", err)
		}
		return c.JSON(res)
	})

	// Runs the auto-sync eligibility check now, as the UI does when it mounts.
	router.Post("/sync/auto", func(c *fiber.Ctx) error {
		if auto == nil {
			return c.JSON(fiber.Map{"fired": false, "reason": "auto-sync disabled"})
		}
		fired, err := auto.Evaluate(c.UserContext())
		if err != nil {
			return writeError(c, "auto-sync failed", err)
		}
		if !fired {
			_, reason, _ := auto.Eligible(c.UserContext())
			return c.JSON(fiber.Map{"fired": false, "reason": reason})
		}
		if err := state.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.JSON(fiber.Map{"fired": fired})
	})
}
