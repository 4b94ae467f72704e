package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/fathima-sithara/marketchat/internal/bridge"
	"github.com/fathima-sithara/marketchat/internal/metrics"
)

// Hub owns this process's local fan-out sets: room id -> the live
// connections subscribed to it. It keeps exactly one bridge subscription
// per room with local members, shared by all of them, and re-dispatches
// every inbound broadcast to each member. The maps are the only shared
// mutable state in the gateway and are guarded here.
type Hub struct {
	bridge bridge.Bridge
	log    *zap.SugaredLogger

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	cancels map[string]func()
}

func NewHub(b bridge.Bridge, log *zap.SugaredLogger) *Hub {
	return &Hub{
		bridge:  b,
		log:     log,
		rooms:   make(map[string]map[*Client]struct{}),
		cancels: make(map[string]func()),
	}
}

// Join adds the connection to the room's local fan-out set, creating the
// process-level bridge subscription on the first local member.
func (h *Hub) Join(c *Client, roomID string) error {
	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	_, subscribed := h.cancels[roomID]
	h.mu.Unlock()

	c.trackJoin(roomID)

	if subscribed {
		return nil
	}
	cancel, err := h.bridge.Subscribe(roomID, h.onBroadcast)
	if err != nil {
		h.Leave(c, roomID)
		return err
	}
	h.mu.Lock()
	if _, dup := h.cancels[roomID]; dup {
		// another connection raced us to the first subscription
		h.mu.Unlock()
		cancel()
		return nil
	}
	h.cancels[roomID] = cancel
	h.mu.Unlock()
	return nil
}

// Leave removes the connection from the room's fan-out set. Tearing down
// the bridge subscription when the set empties is an optimization only; a
// duplicate subscribe on the next join is harmless.
func (h *Hub) Leave(c *Client, roomID string) {
	c.trackLeave(roomID)

	h.mu.Lock()
	var cancel func()
	if set, ok := h.rooms[roomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, roomID)
			cancel = h.cancels[roomID]
			delete(h.cancels, roomID)
		}
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Disconnect removes the connection from every room it belonged to.
func (h *Hub) Disconnect(c *Client) {
	for _, roomID := range c.joinedRooms() {
		h.Leave(c, roomID)
	}
	c.Close()
}

// onBroadcast is the bridge subscription callback: push the envelope to
// every local member of the room, skipping none. The sender's own other
// devices see their message echoed back; clients dedupe on message id.
func (h *Hub) onBroadcast(env *bridge.Envelope) {
	frame, err := json.Marshal(Frame{Type: FrameMessage, Payload: mustRaw(env)})
	if err != nil {
		h.log.Errorw("hub: marshal broadcast", "room_id", env.RoomID, "err", err)
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[env.RoomID]))
	for c := range h.rooms[env.RoomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if c.Push(frame) {
			metrics.BroadcastsDelivered.Inc()
		} else {
			h.log.Warnw("hub: slow client, frame dropped",
				"room_id", env.RoomID, "user_id", c.UserID, "socket_id", c.ID)
		}
	}
}

// LocalMembers reports the size of a room's local fan-out set.
func (h *Hub) LocalMembers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func mustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
