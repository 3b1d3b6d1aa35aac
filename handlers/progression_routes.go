// handlers/progression_routes.go
package handlers

import (
	"initium-core/models"
	"initium-core/services"

	"github.com/gofiber/fiber/v2"
)

type ProgressionDeps struct {
	State       *services.AppState
	Session     *services.SessionState
	Progression *services.ProgressionService
	Habits      *services.HabitService
	Settings    *services.SettingsService
}

func SetupProgressionRoutes(router fiber.Router, d ProgressionDeps) {
	// Session: who the node acts for. Guests stay local-only.
	router.Post("/session", func(c *fiber.Ctx) error {
		var body struct {
			UserID string `json:"user_id"`
			Name   string `json:"name"`
			Token  string `json:"token"`
			Guest  bool   `json:"guest"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		if body.Guest || body.UserID == "" {
			body.UserID, body.Guest, body.Token = models.GuestUserID, true, ""
		}
		if _, err := d.Progression.EnsureUser(c.UserContext(), body.UserID, body.Name); err != nil {
			return writeError(c, "failed to create user", err)
		}
		if err := d.State.Load(c.UserContext(), body.UserID); err != nil {
			return writeError(c, "failed to load user", err)
		}
		d.Session.SetIdentity(services.Identity{UserID: body.UserID, Token: body.Token, Guest: body.Guest})
		return c.JSON(fiber.Map{
			"session": d.Session.Status(),
			"user":    d.State.User(),
		})
	})

	router.Delete("/session", func(c *fiber.Ctx) error {
		if err := d.State.Load(c.UserContext(), models.GuestUserID); err != nil {
			return writeError(c, "failed to load guest user", err)
		}
		d.Session.SetIdentity(services.Identity{UserID: models.GuestUserID, Guest: true})
		return c.JSON(fiber.Map{"session": d.Session.Status()})
	})

	router.Get("/user", func(c *fiber.Ctx) error {
		if _, err := d.State.CurrentUserID(); err != nil {
			return writeError(c, "no user loaded", err)
		}
		return c.JSON(d.State.User())
	})

	router.Get("/user/today", func(c *fiber.Ctx) error {
		day, err := d.Progression.Today(c.UserContext())
		if err != nil {
			return writeError(c, "failed to read analytics", err)
		}
		return c.JSON(day)
	})

	router.Post("/user/xp", func(c *fiber.Ctx) error {
		var body struct {
			Amount float64 `json:"amount"`
			Source string  `json:"source"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		userID, err := d.State.CurrentUserID()
		if err != nil {
			return writeError(c, "no user loaded", err)
		}
		user, err := d.Progression.AwardXP(c.UserContext(), userID, body.Amount, body.Source)
		if err != nil {
			return writeError(c, "failed to award xp", err)
		}
		if err := d.State.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.JSON(user)
	})

	router.Post("/user/favorites", func(c *fiber.Ctx) error {
		var body struct {
			Target string `json:"target"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		user, err := d.State.ToggleFavorite(c.UserContext(), body.Target)
		if err != nil {
			return writeError(c, "failed to toggle favorite", err)
		}
		return c.JSON(user)
	})

	router.Get("/settings/theme", func(c *fiber.Ctx) error {
		theme, err := d.Settings.Theme(c.UserContext())
		if err != nil {
			return writeError(c, "failed to read theme", err)
		}
		return c.JSON(fiber.Map{"theme": theme, "available": services.Themes})
	})

	router.Put("/settings/theme", func(c *fiber.Ctx) error {
		var body struct {
			Theme string `json:"theme"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		if err := d.Settings.ChangeTheme(c.UserContext(), body.Theme); err != nil {
			return writeError(c, "failed to change theme", err)
		}
		return c.JSON(fiber.Map{"theme": body.Theme})
	})

	// Habits
	router.Get("/habits", func(c *fiber.Ctx) error {
		return c.JSON(d.State.HabitList())
	})

	router.Post("/habits", func(c *fiber.Ctx) error {
		var in services.HabitInput
		if err := c.BodyParser(&in); err != nil {
			return badBody(c, err)
		}
		h, err := d.Habits.Create(c.UserContext(), in)
		if err != nil {
			return writeError(c, "failed to create habit", err)
		}
		if err := d.State.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.Status(fiber.StatusCreated).JSON(h)
	})

	router.Get("/habits/:id", func(c *fiber.Ctx) error {
		h, err := d.Habits.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeError(c, "habit not found", err)
		}
		return c.JSON(h)
	})

	router.Delete("/habits/:id", func(c *fiber.Ctx) error {
		if err := d.Habits.Delete(c.UserContext(), c.Params("id")); err != nil {
			return writeError(c, "failed to delete habit", err)
		}
		if err := d.State.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	router.Post("/habits/:id/complete", func(c *fiber.Ctx) error {
		res, err := d.State.CompleteHabit(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeError(c, "failed to complete habit", err)
		}
		return c.JSON(res)
	})
}
