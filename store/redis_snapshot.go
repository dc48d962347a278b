package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thegitsss/lets-para3-sub002/cases"
)

// Snapshot is the persisted form of the cache.
type Snapshot struct {
	Active   []cases.Case `json:"active"`
	Archived []cases.Case `json:"archived"`
	SavedAt  time.Time    `json:"saved_at"`
}

// RedisSnapshot persists cache snapshots per viewer so a restarted client
// can render lists before its first fetch completes.
type RedisSnapshot struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshot connects to redisURL and verifies the connection.
func NewRedisSnapshot(redisURL string) (*RedisSnapshot, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}

	return NewRedisSnapshotWithClient(client), nil
}

// NewRedisSnapshotWithClient builds a snapshot store from an existing client.
func NewRedisSnapshotWithClient(client *redis.Client) *RedisSnapshot {
	return &RedisSnapshot{
		client: client,
		prefix: "cases:snapshot:",
		ttl:    24 * time.Hour,
	}
}

func (s *RedisSnapshot) key(viewerID string) string {
	return s.prefix + viewerID
}

// Save stores the current cache contents for viewerID.
func (s *RedisSnapshot) Save(ctx context.Context, viewerID string, r Reader) error {
	snap := Snapshot{
		Active:   r.Active(),
		Archived: r.Archived(),
		SavedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(viewerID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// Load returns the last snapshot for viewerID. The boolean is false when
// none exists.
func (s *RedisSnapshot) Load(ctx context.Context, viewerID string) (Snapshot, bool, error) {
	data, err := s.client.Get(ctx, s.key(viewerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("store: load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("store: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// Close releases the underlying client.
func (s *RedisSnapshot) Close() error {
	return s.client.Close()
}
