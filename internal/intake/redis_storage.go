package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const draftKeyPattern = "draft:%d"

// KV is the minimal key-value contract the Redis draft store needs. Both the
// plain and the metrics-instrumented Redis clients satisfy it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStorage persists drafts in Redis as JSON.
type RedisStorage struct {
	kv  KV
	ttl time.Duration
	log *slog.Logger
}

// NewRedisStorage initializes a Redis-backed Storage implementation. A
// non-positive ttl defaults to 72 hours so abandoned drafts eventually expire.
func NewRedisStorage(kv KV, ttl time.Duration, log *slog.Logger) Storage {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	return &RedisStorage{
		kv:  kv,
		ttl: ttl,
		log: log,
	}
}

// Get returns the stored draft or ErrDraftNotFound when absent.
func (s *RedisStorage) Get(ctx context.Context, userID int64) (*Draft, error) {
	data, err := s.kv.Get(ctx, draftKey(userID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrDraftNotFound
		}

		s.log.Error("failed to get draft from redis", "user_id", userID, "error", err)
		return nil, err
	}

	var draft Draft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		s.log.Error("failed to decode draft", "user_id", userID, "error", err)
		return nil, err
	}

	return &draft, nil
}

// Set saves the provided draft with the configured TTL.
func (s *RedisStorage) Set(ctx context.Context, userID int64, draft *Draft) error {
	draft.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(draft)
	if err != nil {
		s.log.Error("failed to encode draft", "user_id", userID, "error", err)
		return err
	}

	if err := s.kv.Set(ctx, draftKey(userID), data, s.ttl); err != nil {
		s.log.Error("failed to save draft in redis", "user_id", userID, "error", err)
		return err
	}

	return nil
}

// Clear removes the stored draft for the given requester.
func (s *RedisStorage) Clear(ctx context.Context, userID int64) error {
	if err := s.kv.Delete(ctx, draftKey(userID)); err != nil {
		s.log.Error("failed to clear draft", "user_id", userID, "error", err)
		return err
	}

	return nil
}

func draftKey(userID int64) string {
	return fmt.Sprintf(draftKeyPattern, userID)
}
