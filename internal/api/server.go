package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketchat/internal/auth"
	"github.com/fathima-sithara/marketchat/internal/metrics"
	"github.com/fathima-sithara/marketchat/internal/ws"
)

// NewServer assembles the fiber app: REST chat endpoints behind JWT auth,
// the websocket upgrade, health and metrics.
func NewServer(h *Handlers, wsHandler *ws.Handler, validator *auth.Validator, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(Recovery(log))
	app.Use(RequestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := app.Group("/v1")

	v1.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(wsHandler.Handle))

	rooms := v1.Group("/rooms", JWTAuth(validator))
	rooms.Post("/", h.CreateRoom)
	rooms.Get("/", h.ListRooms)
	rooms.Get("/:room_id/messages", h.ListMessages)
	rooms.Post("/:room_id/messages", h.SendMessage)
	rooms.Post("/:room_id/read", h.MarkRead)
	rooms.Delete("/:room_id", h.LeaveRoom)

	return app
}
