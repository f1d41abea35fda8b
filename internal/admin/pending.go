// Package admin implements the admin console: pending text actions, admin
// management, and broadcast kickoff.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ActionKind names a multi-message admin action awaiting its payload.
type ActionKind string

const (
	ActionBroadcast ActionKind = "broadcast"
	ActionAddAdmin  ActionKind = "add_admin"
)

const (
	pendingKeyPattern = "admin:action:%d"
	pendingTTL        = 10 * time.Minute
)

// ErrNoPendingAction indicates that the admin has no action awaiting input.
var ErrNoPendingAction = errors.New("no pending admin action")

// KV is the key-value contract for the pending-action store.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PendingStore holds at most one pending action per admin. Starting a new
// action replaces the previous one; entries expire so an abandoned prompt
// cannot swallow an unrelated message days later.
type PendingStore struct {
	kv  KV
	log *slog.Logger
}

// NewPendingStore creates a Redis-backed pending-action store.
func NewPendingStore(kv KV, log *slog.Logger) *PendingStore {
	if log == nil {
		log = slog.Default()
	}

	return &PendingStore{kv: kv, log: log}
}

// Set records the action awaiting the admin's next message.
func (s *PendingStore) Set(ctx context.Context, adminID int64, kind ActionKind) error {
	if err := s.kv.Set(ctx, pendingKey(adminID), string(kind), pendingTTL); err != nil {
		s.log.Error("failed to set pending admin action", "admin_id", adminID, "error", err)
		return err
	}

	return nil
}

// Get returns the pending action or ErrNoPendingAction.
func (s *PendingStore) Get(ctx context.Context, adminID int64) (ActionKind, error) {
	value, err := s.kv.Get(ctx, pendingKey(adminID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrNoPendingAction
		}

		s.log.Error("failed to get pending admin action", "admin_id", adminID, "error", err)
		return "", err
	}

	return ActionKind(value), nil
}

// Clear removes the pending action once consumed or canceled.
func (s *PendingStore) Clear(ctx context.Context, adminID int64) error {
	if err := s.kv.Delete(ctx, pendingKey(adminID)); err != nil {
		s.log.Error("failed to clear pending admin action", "admin_id", adminID, "error", err)
		return err
	}

	return nil
}

func pendingKey(adminID int64) string {
	return fmt.Sprintf(pendingKeyPattern, adminID)
}
