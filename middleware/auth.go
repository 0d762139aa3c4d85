package middleware

import (
	"log"
	"strings"

	"exam-platform/models"
	"exam-platform/services"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
)

// TokenParser validates an access token.
type TokenParser interface {
	ParseToken(token string) (*services.Claims, error)
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

// RequireAuth validates the "Authorization: Bearer <jwt>" header and stores
// the caller's id and role in c.Locals.
func RequireAuth(auth TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "authentication token missing")
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || strings.TrimSpace(token) == "" {
			return unauthorized(c, "authorization header must be a Bearer token")
		}

		claims, err := auth.ParseToken(strings.TrimSpace(token))
		if err != nil {
			log.Printf("❌ [AUTH] Invalid token for %s: %v", c.Path(), err)
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUserRole, claims.Role)
		return c.Next()
	}
}

// RequireRole allows only callers whose role is one of roles. Admins always pass.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := UserRole(c)
		if role == models.RoleAdmin {
			return c.Next()
		}
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		log.Printf("🚫 [AUTH] role %q denied on %s", role, c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "insufficient permissions",
		})
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func UserRole(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalUserRole).(string)
	return role
}
