package handlers

import (
	"exam-platform/middleware"
	"exam-platform/models"
	"exam-platform/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type creditRequest struct {
	UserID string          `json:"user_id" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type AdminDeps struct {
	Auth      *services.AuthService
	Questions *services.QuestionService
	Ads       *services.AdService
}

func SetupAdminRoutes(app *fiber.App, d AdminDeps) {
	admin := app.Group("/admin", middleware.RequireAuth(d.Auth), middleware.RequireRole(models.RoleAdmin))

	admin.Get("/users", func(c *fiber.Ctx) error {
		users, err := d.Auth.SearchUsers(c.UserContext(), c.Query("q"), c.QueryInt("limit", 50))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, users)
	})

	admin.Post("/questions", func(c *fiber.Ctx) error {
		var in services.CreateQuestionInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		q, err := d.Questions.CreateQuestion(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusCreated, q)
	})

	admin.Get("/ads/pricing", func(c *fiber.Ctx) error {
		return respond(c, fiber.StatusOK, d.Ads.Pricing.Snapshot())
	})

	admin.Put("/ads/pricing", func(c *fiber.Ctx) error {
		var in services.PricingConfig
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		if err := d.Ads.Pricing.Update(in); err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, d.Ads.Pricing.Snapshot())
	})

	admin.Post("/wallet/credit", func(c *fiber.Ctx) error {
		var in creditRequest
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		user, err := d.Ads.CreditWallet(c.UserContext(), in.UserID, in.Amount)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, user)
	})
}
