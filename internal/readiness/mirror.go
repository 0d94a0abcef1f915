package readiness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zenlearn/helix/internal/tubes"
)

// Mirror is a write-through copy of cached bundles so a restarted
// process can serve instantly. A nil load result with nil error means
// "not mirrored".
type Mirror interface {
	Save(ctx context.Context, rs *ReadyStitch, tube tubes.ID, validUntil time.Time) error
	Load(ctx context.Context, userID string, tube tubes.ID) (*ReadyStitch, time.Time, error)
	Delete(ctx context.Context, userID string, tube tubes.ID) error
}

// mirrorEntry is the serialized form stored in redis.
type mirrorEntry struct {
	Stitch     *ReadyStitch `json:"stitch"`
	ValidUntil time.Time    `json:"valid_until"`
}

// RedisMirror mirrors bundles into redis with a TTL matching the cache
// validity window.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisMirror connects a mirror to the redis instance at addr.
func NewRedisMirror(addr string) *RedisMirror {
	return &RedisMirror{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "helix:ready",
	}
}

// Close releases the redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

// Ping verifies connectivity.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisMirror) key(userID string, tube tubes.ID) string {
	return fmt.Sprintf("%s:%s:%s", m.prefix, userID, tube)
}

func (m *RedisMirror) Save(ctx context.Context, rs *ReadyStitch, tube tubes.ID, validUntil time.Time) error {
	ttl := time.Until(validUntil)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(mirrorEntry{Stitch: rs, ValidUntil: validUntil})
	if err != nil {
		return fmt.Errorf("marshal mirror entry: %w", err)
	}
	if err := m.client.Set(ctx, m.key(rs.UserID, tube), data, ttl).Err(); err != nil {
		return fmt.Errorf("mirror set: %w", err)
	}
	return nil
}

func (m *RedisMirror) Load(ctx context.Context, userID string, tube tubes.ID) (*ReadyStitch, time.Time, error) {
	data, err := m.client.Get(ctx, m.key(userID, tube)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("mirror get: %w", err)
	}

	var entry mirrorEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal mirror entry: %w", err)
	}
	return entry.Stitch, entry.ValidUntil, nil
}

func (m *RedisMirror) Delete(ctx context.Context, userID string, tube tubes.ID) error {
	if err := m.client.Del(ctx, m.key(userID, tube)).Err(); err != nil {
		return fmt.Errorf("mirror del: %w", err)
	}
	return nil
}
