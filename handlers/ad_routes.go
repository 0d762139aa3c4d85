package handlers

import (
	"context"
	"fmt"

	"exam-platform/middleware"
	"exam-platform/models"
	"exam-platform/services"

	"github.com/gofiber/fiber/v2"
)

type trackRequest struct {
	Placement string `json:"placement"`
}

type adStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused"`
}

func SetupAdRoutes(app *fiber.App, auth *services.AuthService, ads *services.AdService) {
	secured := middleware.RequireAuth(auth)
	sponsorOnly := middleware.RequireRole(models.RoleSponsor)

	// Public: ad slots are filled for anonymous visitors too.
	app.Get("/ads/serve", func(c *fiber.Ctx) error {
		ad, err := ads.ServeAd(c.UserContext(), c.Query("placement"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, ad)
	})

	app.Post("/ads/:id/view", func(c *fiber.Ctx) error {
		return track(c, ads.RecordView)
	})

	app.Post("/ads/:id/click", func(c *fiber.Ctx) error {
		return track(c, ads.RecordClick)
	})

	app.Post("/ads", secured, sponsorOnly, func(c *fiber.Ctx) error {
		var in services.CreateAdInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		ad, err := ads.CreateAd(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusCreated, ad)
	})

	app.Get("/ads/mine", secured, sponsorOnly, func(c *fiber.Ctx) error {
		list, err := ads.ListSponsorAds(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, list)
	})

	app.Patch("/ads/:id/status", secured, sponsorOnly, func(c *fiber.Ctx) error {
		var in adStatusRequest
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		ad, err := ads.SetAdStatus(c.UserContext(), c.Params("id"), middleware.UserID(c), middleware.UserRole(c), in.Status)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, ad)
	})

	app.Get("/ads/:id/metrics", secured, sponsorOnly, func(c *fiber.Ctx) error {
		stats, err := ads.AdMetrics(c.UserContext(), c.Params("id"), middleware.UserID(c), middleware.UserRole(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, stats)
	})

	app.Get("/wallet", secured, func(c *fiber.Ctx) error {
		wallet, err := ads.Wallet(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, wallet)
	})
}

type chargeFunc func(ctx context.Context, adID, placement string) (*models.AdMetric, error)

func track(c *fiber.Ctx, charge chargeFunc) error {
	var in trackRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return respondError(c, fmt.Errorf("invalid JSON: %w", services.ErrValidation))
		}
	}
	if in.Placement == "" {
		in.Placement = c.Query("placement")
	}
	metric, err := charge(c.UserContext(), c.Params("id"), in.Placement)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, metric)
}
