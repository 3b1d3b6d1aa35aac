package handlers

import (
	"initium-core/models"
	"initium-core/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuestRoutes(router fiber.Router, state *services.AppState, quests *services.QuestService) {
	router.Get("/quests", func(c *fiber.Ctx) error {
		out, err := quests.ListQuests(c.UserContext(), models.QuestStatus(c.Query("status")))
		if err != nil {
			return writeError(c, "failed to list quests", err)
		}
		return c.JSON(out)
	})

	router.Post("/quests", func(c *fiber.Ctx) error {
		var in services.QuestInput
		if err := c.BodyParser(&in); err != nil {
			return badBody(c, err)
		}
		q, err := quests.CreateQuest(c.UserContext(), in)
		if err != nil {
			return writeError(c, "failed to create quest", err)
		}
		return c.Status(fiber.StatusCreated).JSON(q)
	})

	router.Post("/quests/:id/complete", func(c *fiber.Ctx) error {
		userID, err := state.CurrentUserID()
		if err != nil {
			return writeError(c, "no user loaded", err)
		}
		res, err := quests.CompleteQuest(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return writeError(c, "failed to complete quest", err)
		}
		if err := state.Reload(c.UserContext()); err != nil {
			return writeError(c, "failed to reload state", err)
		}
		return c.JSON(res)
	})

	router.Post("/projects", func(c *fiber.Ctx) error {
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Color       string `json:"color"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		p, err := quests.CreateProject(c.UserContext(), body.Title, body.Description, body.Color)
		if err != nil {
			return writeError(c, "failed to create project", err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	router.Post("/notes", func(c *fiber.Ctx) error {
		var body struct {
			Title   string   `json:"title"`
			Content string   `json:"content"`
			Tags    []string `json:"tags"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		n, err := quests.CreateNote(c.UserContext(), body.Title, body.Content, body.Tags)
		if err != nil {
			return writeError(c, "failed to create note", err)
		}
		return c.Status(fiber.StatusCreated).JSON(n)
	})

	router.Get("/search", func(c *fiber.Ctx) error {
		out, err := quests.Search(c.UserContext(), c.Query("q"), c.QueryInt("limit", 20))
		if err != nil {
			return writeError(c, "search failed", err)
		}
		return c.JSON(out)
	})
}
