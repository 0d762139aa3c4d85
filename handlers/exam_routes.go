package handlers

import (
	"exam-platform/middleware"
	"exam-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupExamRoutes(app *fiber.App, auth *services.AuthService, exams *services.ExamService) {
	secured := middleware.RequireAuth(auth)

	app.Post("/exams/practice", secured, func(c *fiber.Ctx) error {
		var in services.PracticeSubmission
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		attempt, err := exams.SubmitPractice(c.UserContext(), middleware.UserID(c), in.Answers)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusAccepted, attempt)
	})

	app.Get("/exams/attempts/:id", secured, func(c *fiber.Ctx) error {
		attempt, err := exams.GetAttempt(c.UserContext(), c.Params("id"), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, attempt)
	})

	app.Get("/results/me", secured, func(c *fiber.Ctx) error {
		summary, err := exams.ResultsForUser(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, summary)
	})
}
