package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// SocketAuth authenticates websocket upgrades. Browsers cannot set headers on
// the upgrade request, so the token comes from the `token` query param.
//
// Usage:
//
//	app.Get("/ws", middleware.SocketAuth(authService), handler)
func SocketAuth(auth TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
				"success": false,
				"message": "websocket upgrade required",
			})
		}

		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token = strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer "))
		}
		if token == "" {
			log.Printf("[SocketAuth] ❌ Missing token from %s", c.IP())
			return unauthorized(c, "missing token in query")
		}

		claims, err := auth.ParseToken(token)
		if err != nil {
			log.Printf("[SocketAuth] ❌ Validation failed for token (prefix: %s...): %v",
				token[:min(10, len(token))], err)
			return unauthorized(c, "Unauthorized")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUserRole, claims.Role)
		return c.Next()
	}
}
