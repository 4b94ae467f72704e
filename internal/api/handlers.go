package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketchat/internal/apperr"
	"github.com/fathima-sithara/marketchat/internal/models"
	"github.com/fathima-sithara/marketchat/internal/service"
)

type Handlers struct {
	svc *service.ChatService
	log *zap.SugaredLogger
}

func NewHandlers(svc *service.ChatService, log *zap.SugaredLogger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

// CreateRoom opens (or returns) the caller's room for a listing. The
// caller is the buyer; the seller comes from the request.
func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	type req struct {
		ListingID string `json:"listing_id"`
		SellerID  string `json:"seller_id"`
	}
	var body req
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if body.ListingID == "" || body.SellerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "listing_id and seller_id required"})
	}

	claims := claimsFrom(c)
	room, err := h.svc.GetOrCreateRoom(c.UserContext(), body.ListingID, claims.UserUUID, body.SellerID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"room": room})
}

// ListRooms returns the caller's room summaries, most recent first.
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	sums, err := h.svc.RoomSummaries(c.UserContext(), claims.UserUUID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"rooms": sums})
}

// ListMessages returns the room history visible to the caller, oldest
// first.
func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	msgs, err := h.svc.ListMessages(c.UserContext(), c.Params("room_id"), claims.UserUUID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// SendMessage is the REST send path, for clients without a live socket.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	type req struct {
		Body          *string            `json:"body,omitempty"`
		AttachmentURL *string            `json:"attachment_url,omitempty"`
		Kind          models.MessageKind `json:"kind"`
	}
	var body req
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if body.Kind == "" {
		body.Kind = models.KindText
	}
	if body.Kind == models.KindSystem {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "system messages are server-authored"})
	}

	claims := claimsFrom(c)
	msg, err := h.svc.SendMessage(c.UserContext(), c.Params("room_id"), claims.UserUUID, body.Body, body.AttachmentURL, body.Kind)
	if err != nil && msg == nil {
		return h.fail(c, err)
	}
	resp := fiber.Map{"message": msg, "delivered": err == nil}
	if err != nil {
		// stored but not yet live-delivered; recipients catch up on fetch
		return c.Status(fiber.StatusAccepted).JSON(resp)
	}
	return c.JSON(resp)
}

// MarkRead clears the caller's unread state for the room.
func (h *Handlers) MarkRead(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	if err := h.svc.MarkRead(c.UserContext(), c.Params("room_id"), claims.UserUUID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// LeaveRoom hides the room's history for the caller's side.
func (h *Handlers) LeaveRoom(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	if err := h.svc.LeaveRoom(c.UserContext(), c.Params("room_id"), claims.UserUUID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	switch {
	case apperr.IsAccessDenied(err):
		// Forbidden and NotFound are indistinguishable on purpose
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cannot access this room"})
	case errors.Is(err, apperr.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	case errors.Is(err, apperr.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
	case errors.Is(err, apperr.ErrBrokerUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "broker unavailable"})
	default:
		h.log.Errorw("request failed", "path", c.Path(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
