package handlers

import (
	"exam-platform/middleware"
	"exam-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app *fiber.App, auth *services.AuthService) {
	group := app.Group("/auth")

	group.Post("/register", func(c *fiber.Ctx) error {
		var in services.RegisterInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		user, token, err := auth.Register(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusCreated, fiber.Map{"user": user, "token": token})
	})

	group.Post("/login", func(c *fiber.Ctx) error {
		var in services.LoginInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		user, token, err := auth.Login(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, fiber.Map{"user": user, "token": token})
	})

	group.Get("/me", middleware.RequireAuth(auth), func(c *fiber.Ctx) error {
		user, err := auth.GetUser(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, user)
	})
}
