package bridge

import (
	"context"
	"time"

	"github.com/fathima-sithara/marketchat/internal/models"
)

// Envelope is the transport-agnostic payload fanned out to every process
// holding a live connection to the room. Clients dedupe on MessageID, so
// duplicate delivery is harmless.
type Envelope struct {
	MessageID         string             `json:"message_id"`
	RoomID            string             `json:"room_id"`
	SenderID          string             `json:"sender_id"`
	SenderDisplayName string             `json:"sender_display_name"`
	Body              *string            `json:"body,omitempty"`
	AttachmentURL     *string            `json:"attachment_url,omitempty"`
	Kind              models.MessageKind `json:"kind"`
	SentAt            time.Time          `json:"sent_at"`
}

// Handler is invoked for every envelope delivered on a subscribed topic.
type Handler func(env *Envelope)

// Bridge fans a freshly persisted message out to all server processes.
// One topic per room, derivable without a lookup. Delivery is
// at-least-once to every current subscriber; per-topic publish order is
// preserved.
type Bridge interface {
	// Publish hands the envelope to the transport. A transport failure or
	// timeout surfaces as apperr.ErrBrokerUnavailable; the message is
	// already durable, so the caller decides the retry policy.
	Publish(ctx context.Context, env *Envelope) error

	// Subscribe registers process-level interest in a room's topic.
	// Called once per process on the first local connection to the room;
	// the returned cancel func tears the subscription down again.
	Subscribe(roomID string, h Handler) (cancel func(), err error)

	Close() error
}

// Topic names the pub/sub channel for a room.
func Topic(roomID string) string {
	return "room:" + roomID
}
