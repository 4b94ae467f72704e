package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketchat/internal/apperr"
)

// RedisBridge implements Bridge over Redis Pub/Sub. Every process
// subscribed to a room's channel receives each published envelope, which
// is exactly the fan-out the horizontally scaled gateway needs.
type RedisBridge struct {
	client         *redis.Client
	publishTimeout time.Duration
	log            *zap.SugaredLogger

	mu   sync.Mutex
	subs map[string]*redis.PubSub // topic -> subscription
}

func NewRedisBridge(client *redis.Client, publishTimeout time.Duration, log *zap.SugaredLogger) *RedisBridge {
	return &RedisBridge{
		client:         client,
		publishTimeout: publishTimeout,
		subs:           make(map[string]*redis.PubSub),
		log:            log,
	}
}

func (b *RedisBridge) Publish(ctx context.Context, env *Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, Topic(env.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrBrokerUnavailable, err)
	}
	return nil
}

func (b *RedisBridge) Subscribe(roomID string, h Handler) (func(), error) {
	topic := Topic(roomID)

	b.mu.Lock()
	if _, ok := b.subs[topic]; ok {
		b.mu.Unlock()
		return func() {}, nil
	}
	ps := b.client.Subscribe(context.Background(), topic)
	b.subs[topic] = ps
	b.mu.Unlock()

	// Receive once so the SUBSCRIBE is confirmed before we report success.
	if _, err := ps.Receive(context.Background()); err != nil {
		b.drop(topic)
		return nil, fmt.Errorf("%w: %v", apperr.ErrBrokerUnavailable, err)
	}

	go func() {
		for msg := range ps.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warnw("bridge: bad envelope", "topic", topic, "err", err)
				continue
			}
			h(&env)
		}
	}()

	return func() { b.drop(topic) }, nil
}

func (b *RedisBridge) drop(topic string) {
	b.mu.Lock()
	ps, ok := b.subs[topic]
	if ok {
		delete(b.subs, topic)
	}
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBridge) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*redis.PubSub)
	b.mu.Unlock()
	for _, ps := range subs {
		_ = ps.Close()
	}
	return nil
}
