package handlers

import (
	"exam-platform/middleware"
	"exam-platform/models"
	"exam-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuestionRoutes(app *fiber.App, auth *services.AuthService, questions *services.QuestionService) {
	secured := app.Group("/questions", middleware.RequireAuth(auth))

	secured.Get("/", func(c *fiber.Ctx) error {
		page, limit := pageParams(c)
		list, total, err := questions.ListQuestions(c.UserContext(), services.QuestionFilter{
			Subject:  c.Query("subject"),
			Category: c.Query("category"),
			Search:   c.Query("q"),
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			return respondError(c, err)
		}
		if middleware.UserRole(c) == models.RoleAdmin {
			return respond(c, fiber.StatusOK, pageResult{Items: list, Total: total, Page: page, Limit: limit})
		}
		public := make([]services.PublicQuestion, len(list))
		for i, q := range list {
			public[i] = services.ToPublicQuestion(q)
		}
		return respond(c, fiber.StatusOK, pageResult{Items: public, Total: total, Page: page, Limit: limit})
	})

	secured.Get("/subjects", func(c *fiber.Ctx) error {
		subjects, err := questions.Subjects(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, subjects)
	})
}
