package order

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

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

func newTestBinder(t *testing.T) (*ReceiptBinder, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewReceiptBinder(kvAdapter{client: client}, testLogger()), mr
}

func TestReceiptBinder_BindResolveClear(t *testing.T) {
	binder, _ := newTestBinder(t)
	ctx := context.Background()

	if err := binder.Bind(ctx, 42, 7); err != nil {
		t.Fatalf("bind: %v", err)
	}

	orderID, err := binder.Resolve(ctx, 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if orderID != 7 {
		t.Fatalf("expected order 7, got %d", orderID)
	}

	if err := binder.Clear(ctx, 42); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if _, err := binder.Resolve(ctx, 42); !errors.Is(err, ErrNoBinding) {
		t.Fatalf("expected ErrNoBinding after clear, got %v", err)
	}
}

func TestReceiptBinder_NewBindingReplacesOld(t *testing.T) {
	binder, _ := newTestBinder(t)
	ctx := context.Background()

	if err := binder.Bind(ctx, 42, 7); err != nil {
		t.Fatalf("bind first: %v", err)
	}
	if err := binder.Bind(ctx, 42, 9); err != nil {
		t.Fatalf("bind second: %v", err)
	}

	orderID, err := binder.Resolve(ctx, 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if orderID != 9 {
		t.Fatalf("expected the newer binding, got %d", orderID)
	}
}

func TestReceiptBinder_MissingBinding(t *testing.T) {
	binder, _ := newTestBinder(t)

	_, err := binder.Resolve(context.Background(), 99)
	if !errors.Is(err, ErrNoBinding) {
		t.Fatalf("expected ErrNoBinding, got %v", err)
	}
}

func TestReceiptBinder_BindingExpires(t *testing.T) {
	binder, mr := newTestBinder(t)
	ctx := context.Background()

	if err := binder.Bind(ctx, 42, 7); err != nil {
		t.Fatalf("bind: %v", err)
	}

	mr.FastForward(bindingTTL + time.Second)

	if _, err := binder.Resolve(ctx, 42); !errors.Is(err, ErrNoBinding) {
		t.Fatalf("expected expired binding, got %v", err)
	}
}
