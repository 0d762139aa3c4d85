package handlers

import (
	"log"

	"exam-platform/middleware"
	"exam-platform/realtime"
	"exam-platform/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SetupSocketRoutes mounts the real-time endpoint at /ws?token=<jwt>.
// Every connection is subscribed to its own user channel.
func SetupSocketRoutes(app *fiber.App, auth *services.AuthService, hub *realtime.Hub, events *services.RoomEvents) {
	app.Use("/ws", middleware.SocketAuth(auth))

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(middleware.LocalUserID).(string)
		role, _ := conn.Locals(middleware.LocalUserRole).(string)

		client := realtime.NewClient(uuid.NewString(), userID, role, conn)
		hub.Subscribe(client, realtime.UserChannel(userID))
		log.Printf("[Socket] client %s connected for user %s", client.ID, userID)

		done := make(chan struct{})
		go func() {
			client.WritePump()
			close(done)
		}()
		client.ReadPump(hub, events.Handle)
		<-done
	}))
}
