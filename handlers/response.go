package handlers

import (
	"fmt"
	"log"
	"strconv"

	"exam-platform/services"
	"exam-platform/utils"

	"github.com/gofiber/fiber/v2"
)

func respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondError(c *fiber.Ctx, err error) error {
	status := services.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ [%s %s] %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": services.PublicMessage(err),
	})
}

// parseBody decodes the JSON body into out and runs its validate tags.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("invalid JSON: %w", services.ErrValidation)
	}
	if err := utils.ValidateStruct(out); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), services.ErrValidation)
	}
	return nil
}

func pageParams(c *fiber.Ctx) (int, int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

type pageResult struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
