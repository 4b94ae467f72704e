package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; presence tests need a live redis")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "marketchat-test"), client
}

func TestPresenceRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SetOnline(ctx, "user-1", time.Minute); err != nil {
		t.Fatal(err)
	}
	st, _, err := s.Get(ctx, "user-1")
	if err != nil || st != "online" {
		t.Fatalf("status = %q, err = %v", st, err)
	}

	if err := s.SetOffline(ctx, "user-1", time.Minute); err != nil {
		t.Fatal(err)
	}
	st, _, err = s.Get(ctx, "user-1")
	if err != nil || st != "offline" {
		t.Fatalf("status = %q, err = %v", st, err)
	}
}

func TestMarkersAlwaysExpire(t *testing.T) {
	s, client := newTestStore(t)
	ctx := context.Background()

	if err := s.SetOnline(ctx, "user-2", time.Minute); err != nil {
		t.Fatal(err)
	}
	if ttl := client.TTL(ctx, s.key("user-2")).Val(); ttl <= 0 {
		t.Fatalf("online marker ttl = %v, must expire", ttl)
	}

	// the offline marker must not outlive its retention either: a key
	// written without expiry would accumulate one entry per user forever
	if err := s.SetOffline(ctx, "user-2", time.Minute); err != nil {
		t.Fatal(err)
	}
	if ttl := client.TTL(ctx, s.key("user-2")).Val(); ttl <= 0 {
		t.Fatalf("offline marker ttl = %v, must expire", ttl)
	}
}
