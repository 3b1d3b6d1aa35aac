package handlers

import (
	"fmt"
	"time"

	"initium-core/models"
	"initium-core/services"

	"github.com/gofiber/fiber/v2"
)

// scheduleRequest names a template either by id or inline.
type scheduleRequest struct {
	TemplateID string                   `json:"template_id"`
	Template   *models.TrainingTemplate `json:"template"`
	Start      time.Time                `json:"start"`
	Recurrence models.Recurrence        `json:"recurrence"`
}

func SetupTrainingRoutes(router fiber.Router, state *services.AppState, training *services.TrainingService) {
	resolve := func(c *fiber.Ctx, req scheduleRequest) (models.TrainingTemplate, error) {
		if req.TemplateID != "" {
			t, err := training.GetTemplate(c.UserContext(), req.TemplateID)
			if err != nil {
				return models.TrainingTemplate{}, err
			}
			return *t, nil
		}
		if req.Template == nil {
			return models.TrainingTemplate{}, fmt.Errorf("%w: template_id or template is required", services.ErrValidation)
		}
		return *req.Template, nil
	}

	router.Get("/training/templates", func(c *fiber.Ctx) error {
		out, err := training.ListTemplates(c.UserContext())
		if err != nil {
			return writeError(c, "failed to list templates", err)
		}
		return c.JSON(out)
	})

	router.Post("/training/templates", func(c *fiber.Ctx) error {
		var tmpl models.TrainingTemplate
		if err := c.BodyParser(&tmpl); err != nil {
			return badBody(c, err)
		}
		out, err := training.CreateTemplate(c.UserContext(), tmpl)
		if err != nil {
			return writeError(c, "failed to create template", err)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	})

	router.Get("/training", func(c *fiber.Ctx) error {
		out, err := training.List(c.UserContext(), models.TrainingStatus(c.Query("status")))
		if err != nil {
			return writeError(c, "failed to list sessions", err)
		}
		return c.JSON(out)
	})

	router.Post("/training/schedule", func(c *fiber.Ctx) error {
		var req scheduleRequest
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		tmpl, err := resolve(c, req)
		if err != nil {
			return writeError(c, "template required", err)
		}
		if req.Recurrence == "" {
			req.Recurrence = models.RecurrenceNone
		}
		out, err := training.ScheduleRecurring(c.UserContext(), tmpl, req.Start, req.Recurrence)
		if err != nil {
			return writeError(c, "failed to schedule sessions", err)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	})

	router.Post("/training/start", func(c *fiber.Ctx) error {
		var req scheduleRequest
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		tmpl, err := resolve(c, req)
		if err != nil {
			return writeError(c, "template required", err)
		}
		userID, err := state.CurrentUserID()
		if err != nil {
			return writeError(c, "no user loaded", err)
		}
		res, err := training.StartNow(c.UserContext(), userID, tmpl)
		if err != nil {
			return writeError(c, "failed to record session", err)
		}
		if err := state.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.JSON(res)
	})

	router.Post("/training/:id/complete", func(c *fiber.Ctx) error {
		userID, err := state.CurrentUserID()
		if err != nil {
			return writeError(c, "no user loaded", err)
		}
		res, err := training.CompleteScheduled(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return writeError(c, "failed to complete session", err)
		}
		if err := state.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.JSON(res)
	})

	router.Delete("/training/:id", func(c *fiber.Ctx) error {
		if err := training.Delete(c.UserContext(), c.Params("id")); err != nil {
			return writeError(c, "failed to delete session", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
