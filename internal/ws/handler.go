package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketchat/internal/apperr"
	"github.com/fathima-sithara/marketchat/internal/auth"
	"github.com/fathima-sithara/marketchat/internal/metrics"
	"github.com/fathima-sithara/marketchat/internal/models"
	"github.com/fathima-sithara/marketchat/internal/presence"
	"github.com/fathima-sithara/marketchat/internal/service"
)

const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameMessage = "message"
	FrameJoined  = "joined"
	FrameLeft    = "left"
	FrameAck     = "ack"
	FrameError   = "error"
)

// Frame is the JSON envelope exchanged with clients over the socket.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	RoomID string `json:"room_id"`
}

type sendPayload struct {
	RoomID        string             `json:"room_id"`
	Body          *string            `json:"body,omitempty"`
	AttachmentURL *string            `json:"attachment_url,omitempty"`
	Kind          models.MessageKind `json:"kind"`
}

type ackPayload struct {
	RoomID    string    `json:"room_id"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
	Delivered bool      `json:"delivered"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Config holds the connection-level knobs the handler needs.
type Config struct {
	PingInterval      time.Duration
	WriteDeadline     time.Duration
	MaxMessageSize    int64
	SendRatePerMinute int
	PresenceTTL       time.Duration
}

// Handler is the websocket side of the connection gateway. It binds an
// authenticated connection to its user, tracks room subscriptions through
// the hub and runs the send path.
type Handler struct {
	hub      *Hub
	svc      *service.ChatService
	auth     *auth.Validator
	presence *presence.Store // optional
	cfg      Config
	log      *zap.SugaredLogger
}

func NewHandler(hub *Hub, svc *service.ChatService, av *auth.Validator, ps *presence.Store, cfg Config, log *zap.SugaredLogger) *Handler {
	if cfg.PresenceTTL == 0 {
		cfg.PresenceTTL = 24 * time.Hour
	}
	return &Handler{hub: hub, svc: svc, auth: av, presence: ps, cfg: cfg, log: log}
}

// Handle serves one websocket connection: /v1/ws?token=<jwt>.
func (h *Handler) Handle(conn *websocket.Conn) {
	token := conn.Query("token")
	if token == "" {
		h.closeWith(conn, "unauthenticated", "missing token")
		return
	}
	claims, err := h.auth.Validate(token)
	if err != nil {
		h.closeWith(conn, "unauthenticated", "invalid token")
		return
	}

	c := NewClient(conn, uuid.NewString(), claims.UserUUID, claims.DisplayName, h.cfg.SendRatePerMinute)
	metrics.ConnectionsOpen.Inc()
	if h.presence != nil {
		_ = h.presence.SetOnline(context.Background(), c.UserID, h.cfg.PresenceTTL)
	}

	go c.WritePump(h.cfg.PingInterval, h.cfg.WriteDeadline)
	h.readLoop(c)

	h.hub.Disconnect(c)
	if h.presence != nil {
		_ = h.presence.SetOffline(context.Background(), c.UserID, h.cfg.PresenceTTL)
	}
	metrics.ConnectionsOpen.Dec()
}

func (h *Handler) readLoop(c *Client) {
	conn := c.conn
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.pushError(c, "invalid_frame", "malformed frame")
			continue
		}

		switch frame.Type {
		case FrameJoin:
			h.handleJoin(c, frame.Payload)
		case FrameLeave:
			h.handleLeave(c, frame.Payload)
		case FrameMessage:
			h.handleSend(c, frame.Payload)
		default:
			// unknown frame types are ignored for forward compatibility
		}
	}
}

func (h *Handler) handleJoin(c *Client, payload json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" {
		h.pushError(c, "invalid_frame", "join needs a room_id")
		return
	}
	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()
	if err := h.svc.CheckParticipant(ctx, p.RoomID, c.UserID); err != nil {
		h.pushServiceError(c, err)
		return
	}
	if err := h.hub.Join(c, p.RoomID); err != nil {
		h.log.Warnw("ws: join subscription", "room_id", p.RoomID, "err", err)
		h.pushError(c, "broker_unavailable", "room subscription unavailable, retry")
		return
	}
	h.push(c, Frame{Type: FrameJoined, Payload: mustRaw(joinPayload{RoomID: p.RoomID})})
}

func (h *Handler) handleLeave(c *Client, payload json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" {
		h.pushError(c, "invalid_frame", "leave needs a room_id")
		return
	}
	h.hub.Leave(c, p.RoomID)
	h.push(c, Frame{Type: FrameLeft, Payload: mustRaw(joinPayload{RoomID: p.RoomID})})
}

func (h *Handler) handleSend(c *Client, payload json.RawMessage) {
	if !c.AllowSend() {
		h.pushError(c, "rate_limited", "sending too fast")
		return
	}
	var p sendPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RoomID == "" {
		h.pushError(c, "invalid_frame", "message needs a room_id")
		return
	}
	if !c.Joined(p.RoomID) {
		h.pushError(c, "not_joined", "join the room before sending")
		return
	}
	if p.Kind == "" {
		p.Kind = models.KindText
	}
	if p.Kind == models.KindSystem {
		h.pushError(c, "invalid_argument", "system messages are server-authored")
		return
	}

	// scoped to the connection: when the socket drops, the publish retry
	// loop stops instead of spinning for a client that is gone
	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()
	msg, err := h.svc.SendMessage(ctx, p.RoomID, c.UserID, p.Body, p.AttachmentURL, p.Kind)
	if err != nil && msg == nil {
		h.pushServiceError(c, err)
		return
	}

	// A publish failure is reported to the sender only: the message is
	// already durable and arrives on the next history fetch.
	ack := ackPayload{RoomID: msg.RoomID, MessageID: msg.ID, SentAt: msg.SentAt, Delivered: err == nil}
	h.push(c, Frame{Type: FrameAck, Payload: mustRaw(ack)})
	if err != nil {
		h.pushError(c, "broker_unavailable", "message stored, live delivery delayed")
	}
}

func (h *Handler) push(c *Client, frame Frame) {
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.Push(b)
}

func (h *Handler) pushError(c *Client, code, msg string) {
	h.push(c, Frame{Type: FrameError, Payload: mustRaw(errorPayload{Code: code, Message: msg})})
}

func (h *Handler) pushServiceError(c *Client, err error) {
	switch {
	case apperr.IsAccessDenied(err):
		// never distinguishable from a missing room
		h.pushError(c, "not_found", "cannot access this room")
	case errors.Is(err, apperr.ErrInvalidArgument):
		h.pushError(c, "invalid_argument", "invalid request")
	case errors.Is(err, apperr.ErrBrokerUnavailable):
		h.pushError(c, "broker_unavailable", "message stored, live delivery delayed")
	default:
		h.log.Errorw("ws: request failed", "err", err)
		h.pushError(c, "internal", "internal error")
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, code, msg string) {
	b, _ := json.Marshal(Frame{Type: FrameError, Payload: mustRaw(errorPayload{Code: code, Message: msg})})
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.Close()
}
