// Package idempotency deduplicates redelivered updates.
package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPattern = "idem:update:%d"
	defaultTTL = 24 * time.Hour
)

// Manager records seen update ids in Redis so a redelivered update is
// processed exactly once.
type Manager struct {
	rdb *goredis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewManager creates an idempotency manager with the given record TTL.
func NewManager(rdb *goredis.Client, ttl time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Manager{rdb: rdb, ttl: ttl, log: log}
}

// FirstSeen marks the update id and reports whether this is its first
// delivery. On Redis failure it reports true so a broken cache degrades to
// at-least-once rather than dropping updates.
func (m *Manager) FirstSeen(ctx context.Context, updateID int) (bool, error) {
	key := fmt.Sprintf(keyPattern, updateID)

	first, err := m.rdb.SetNX(ctx, key, 1, m.ttl).Result()
	if err != nil {
		m.log.Error("idempotency check failed", "update_id", updateID, "error", err)
		return true, err
	}

	return first, nil
}
