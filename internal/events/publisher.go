package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	ListingID string    `json:"listing_id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RoomClosedEvent struct {
	RoomID   string    `json:"room_id"`
	ClosedAt time.Time `json:"closed_at"`
}

// Publisher emits room lifecycle events for downstream services. Events
// are best effort: a publish failure is logged, never surfaced to the
// chat path.
type Publisher struct {
	nc  *nats.Conn
	log *zap.SugaredLogger
}

func NewPublisher(natsURL string, log *zap.SugaredLogger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, log: log}, nil
}

func (p *Publisher) RoomCreated(ev RoomCreatedEvent) {
	if p == nil || p.nc == nil {
		return
	}
	b, _ := json.Marshal(ev)
	if err := p.nc.Publish("room.created", b); err != nil {
		p.log.Warnw("publish room.created", "room_id", ev.RoomID, "err", err)
	}
}

func (p *Publisher) RoomClosed(ev RoomClosedEvent) {
	if p == nil || p.nc == nil {
		return
	}
	b, _ := json.Marshal(ev)
	if err := p.nc.Publish("room.closed", b); err != nil {
		p.log.Warnw("publish room.closed", "room_id", ev.RoomID, "err", err)
	}
}

func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}
