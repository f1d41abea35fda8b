package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type kvAdapter struct {
	client *redis.Client
}

func (k kvAdapter) Get(ctx context.Context, key string) (string, error) {
	return k.client.Get(ctx, key).Result()
}

func (k kvAdapter) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return k.client.Set(ctx, key, value, ttl).Err()
}

func (k kvAdapter) Delete(ctx context.Context, key string) error {
	return k.client.Del(ctx, key).Err()
}

func newTestStore(t *testing.T) (*PendingStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewPendingStore(kvAdapter{client: client}, testLogger()), mr
}

func TestPendingStore_SetGetClear(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, 42, ActionBroadcast); err != nil {
		t.Fatalf("set: %v", err)
	}

	kind, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if kind != ActionBroadcast {
		t.Fatalf("expected %s, got %s", ActionBroadcast, kind)
	}

	if err := store.Clear(ctx, 42); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if _, err := store.Get(ctx, 42); !errors.Is(err, ErrNoPendingAction) {
		t.Fatalf("expected ErrNoPendingAction after clear, got %v", err)
	}
}

func TestPendingStore_MissingAction(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), 99)
	if !errors.Is(err, ErrNoPendingAction) {
		t.Fatalf("expected ErrNoPendingAction, got %v", err)
	}
}

func TestPendingStore_NewActionReplacesOld(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, 42, ActionBroadcast); err != nil {
		t.Fatalf("set broadcast: %v", err)
	}
	if err := store.Set(ctx, 42, ActionAddAdmin); err != nil {
		t.Fatalf("set add_admin: %v", err)
	}

	kind, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if kind != ActionAddAdmin {
		t.Fatalf("expected the newer action, got %s", kind)
	}
}

func TestPendingStore_IsolatedPerAdmin(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, 1, ActionBroadcast); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := store.Get(ctx, 2); !errors.Is(err, ErrNoPendingAction) {
		t.Fatalf("expected no action for the other admin, got %v", err)
	}
}

func TestPendingStore_ActionExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, 42, ActionBroadcast); err != nil {
		t.Fatalf("set: %v", err)
	}

	ttl := mr.TTL(fmt.Sprintf(pendingKeyPattern, int64(42)))
	if ttl != pendingTTL {
		t.Fatalf("expected TTL %s on the action key, got %s", pendingTTL, ttl)
	}

	mr.FastForward(pendingTTL + time.Second)

	if _, err := store.Get(ctx, 42); !errors.Is(err, ErrNoPendingAction) {
		t.Fatalf("expected expired action, got %v", err)
	}
}
