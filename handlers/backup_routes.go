package handlers

import (
	"bytes"

	"initium-core/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBackupRoutes(router fiber.Router, state *services.AppState, backups *services.BackupService) {
	router.Get("/backup/export", func(c *fiber.Ctx) error {
		b, err := backups.Export(c.UserContext())
		if err != nil {
			return writeError(c, "export failed", err)
		}
		c.Attachment(services.FileName(b.Meta.Date))
		return c.JSON(b)
	})

	router.Post("/backup/import", func(c *fiber.Ctx) error {
		if err := backups.Import(c.UserContext(), bytes.NewReader(c.Body())); err != nil {
			return writeError(c, "import failed", err)
		}
		if err := state.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.JSON(fiber.Map{"imported": true})
	})

	router.Post("/backup/upload", func(c *fiber.Ctx) error {
		userID, _ := state.CurrentUserID()
		url, err := backups.Upload(c.UserContext(), userID)
		if err != nil {
			return writeError(c, "upload failed", err)
		}
		return c.JSON(fiber.Map{"url": url})
	})

	// Wipes everything; the caller must confirm explicitly.
	router.Post("/backup/reset", func(c *fiber.Ctx) error {
		if c.Query("confirm") != "true" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "factory reset requires ?confirm=true",
			})
		}
		if err := backups.FactoryReset(c.UserContext()); err != nil {
			return writeError(c, "factory reset failed", err)
		}
		return c.JSON(fiber.Map{"reset": true})
	})
}
