package bridge

import (
	"context"
	"sync"
)

// MemoryBridge is an in-process Bridge used by tests and single-process
// deployments. It dispatches synchronously in publish order, so the
// per-topic ordering guarantee holds trivially. Several subscribers on
// one topic model several server processes.
type MemoryBridge struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler // topic -> subscriber id -> handler
}

func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{subs: make(map[string]map[int]Handler)}
}

func (b *MemoryBridge) Publish(_ context.Context, env *Envelope) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[Topic(env.RoomID)]))
	for _, h := range b.subs[Topic(env.RoomID)] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
	return nil
}

func (b *MemoryBridge) Subscribe(roomID string, h Handler) (func(), error) {
	topic := Topic(roomID)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		if set, ok := b.subs[topic]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(b.subs, topic)
			}
		}
		b.mu.Unlock()
	}, nil
}

func (b *MemoryBridge) Close() error {
	b.mu.Lock()
	b.subs = make(map[string]map[int]Handler)
	b.mu.Unlock()
	return nil
}
