package handlers

import (
	"exam-platform/middleware"
	"exam-platform/realtime"
	"exam-platform/services"

	"github.com/gofiber/fiber/v2"
)

type joinRoomRequest struct {
	Code     string `json:"code" validate:"required,len=6"`
	Password string `json:"password"`
}

func SetupRoomRoutes(app *fiber.App, auth *services.AuthService, rooms *services.RoomService, hub *realtime.Hub) {
	group := app.Group("/rooms", middleware.RequireAuth(auth))

	group.Post("/", func(c *fiber.Ctx) error {
		var in services.CreateRoomInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		room, err := rooms.CreateRoom(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusCreated, room)
	})

	group.Get("/", func(c *fiber.Ctx) error {
		page, limit := pageParams(c)
		list, total, err := rooms.ListRooms(c.UserContext(), services.ListRoomsParams{
			Page:   page,
			Limit:  limit,
			Status: c.Query("status"),
		})
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, pageResult{Items: list, Total: total, Page: page, Limit: limit})
	})

	group.Post("/join", func(c *fiber.Ctx) error {
		var in joinRoomRequest
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		userID := middleware.UserID(c)
		room, err := rooms.JoinRoom(c.UserContext(), userID, in.Code, in.Password)
		if err != nil {
			return respondError(c, err)
		}
		hub.EmitToRoom(room.ID, "participant_joined", fiber.Map{"room_id": room.ID, "user_id": userID})
		return respond(c, fiber.StatusOK, room)
	})

	group.Get("/:id", func(c *fiber.Ctx) error {
		room, err := rooms.GetRoom(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, room)
	})

	group.Get("/:id/leaderboard", func(c *fiber.Ctx) error {
		board, err := rooms.Leaderboard(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, board)
	})

	// Idempotent: deleting a missing room still succeeds.
	group.Delete("/:id", func(c *fiber.Ctx) error {
		roomID := c.Params("id")
		deleted, err := rooms.DeleteRoom(c.UserContext(), roomID, middleware.UserID(c), middleware.UserRole(c))
		if err != nil {
			return respondError(c, err)
		}
		if deleted {
			hub.EmitToRoom(roomID, "room_closed", fiber.Map{"room_id": roomID, "reason": "deleted"})
		}
		return respond(c, fiber.StatusOK, fiber.Map{"room_id": roomID, "deleted": deleted})
	})
}
