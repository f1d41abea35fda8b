package idempotency

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(client, ttl, log), mr
}

func TestManager_FirstSeen(t *testing.T) {
	mgr, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	first, err := mgr.FirstSeen(ctx, 1001)
	if err != nil {
		t.Fatalf("first seen: %v", err)
	}
	if !first {
		t.Fatalf("expected first delivery to pass")
	}

	// The same update redelivered must be dropped.
	first, err = mgr.FirstSeen(ctx, 1001)
	if err != nil {
		t.Fatalf("second seen: %v", err)
	}
	if first {
		t.Fatalf("expected redelivery to be flagged as seen")
	}

	// A different update is unaffected.
	first, err = mgr.FirstSeen(ctx, 1002)
	if err != nil {
		t.Fatalf("other update: %v", err)
	}
	if !first {
		t.Fatalf("expected unrelated update to pass")
	}
}

func TestManager_RecordExpires(t *testing.T) {
	mgr, mr := newTestManager(t, time.Minute)
	ctx := context.Background()

	if _, err := mgr.FirstSeen(ctx, 55); err != nil {
		t.Fatalf("first seen: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	first, err := mgr.FirstSeen(ctx, 55)
	if err != nil {
		t.Fatalf("after expiry: %v", err)
	}
	if !first {
		t.Fatalf("expected expired record to be forgotten")
	}
}

func TestManager_FailsOpen(t *testing.T) {
	mgr, mr := newTestManager(t, time.Hour)
	mr.Close()

	first, err := mgr.FirstSeen(context.Background(), 77)
	if err == nil {
		t.Fatalf("expected an error from a dead redis")
	}
	if !first {
		t.Fatalf("broken cache must not drop updates")
	}
}
