package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps connection presence in Redis so other instances can see who
// is online. Keys expire so a crashed process leaks nothing permanent.
type Store struct {
	client *redis.Client
	prefix string
}

type status struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *Store) SetOnline(ctx context.Context, userID string, ttl time.Duration) error {
	b, _ := json.Marshal(status{Status: "online", LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.key(userID), b, ttl).Err()
}

// SetOffline records the last-seen marker. It carries a retention TTL
// like the online marker: the key only matters for "last seen" display
// and must not accumulate forever.
func (s *Store) SetOffline(ctx context.Context, userID string, retention time.Duration) error {
	b, _ := json.Marshal(status{Status: "offline", LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.key(userID), b, retention).Err()
}

func (s *Store) Get(ctx context.Context, userID string) (string, time.Time, error) {
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		return "", time.Time{}, err
	}
	var st status
	if err := json.Unmarshal(b, &st); err != nil {
		return "", time.Time{}, err
	}
	return st.Status, time.Unix(st.LastSeen, 0), nil
}
