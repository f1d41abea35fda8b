package order

import (
	"testing"
	"time"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

func TestCorrelator_OpenResolveRemove(t *testing.T) {
	c := NewCorrelator()
	ref := domain.MessageRef{ChatID: -100, MessageID: 5}

	c.Open(ref, 1, 77)

	corr, ok := c.Resolve(ref)
	if !ok {
		t.Fatalf("expected correlation for %+v", ref)
	}
	if corr.OrderID != 1 || corr.ExecutorID != 77 {
		t.Fatalf("unexpected correlation: %+v", corr)
	}

	// Resolve peeks without consuming.
	if _, ok := c.Resolve(ref); !ok {
		t.Fatalf("resolve consumed the correlation")
	}

	c.Remove(ref)
	if _, ok := c.Resolve(ref); ok {
		t.Fatalf("expected correlation removed")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty correlator, got %d", c.Len())
	}
}

func TestCorrelator_NewPromptSupersedesOld(t *testing.T) {
	c := NewCorrelator()
	oldRef := domain.MessageRef{ChatID: -100, MessageID: 5}
	newRef := domain.MessageRef{ChatID: -100, MessageID: 9}

	c.Open(oldRef, 1, 77)
	c.Open(newRef, 1, 88)

	if _, ok := c.Resolve(oldRef); ok {
		t.Fatalf("stale prompt still resolvable")
	}

	corr, ok := c.Resolve(newRef)
	if !ok {
		t.Fatalf("expected new prompt to resolve")
	}
	if corr.ExecutorID != 88 {
		t.Fatalf("expected executor 88, got %d", corr.ExecutorID)
	}
	if c.Len() != 1 {
		t.Fatalf("expected a single open prompt, got %d", c.Len())
	}
}

func TestCorrelator_SweepDropsOldPrompts(t *testing.T) {
	c := NewCorrelator()
	staleRef := domain.MessageRef{ChatID: -100, MessageID: 1}
	freshRef := domain.MessageRef{ChatID: -100, MessageID: 2}

	c.Open(staleRef, 1, 77)
	c.Open(freshRef, 2, 77)

	// Age the first prompt artificially.
	c.mu.Lock()
	corr := c.byRef[staleRef]
	corr.OpenedAt = time.Now().Add(-48 * time.Hour)
	c.byRef[staleRef] = corr
	c.mu.Unlock()

	removed := c.Sweep(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 swept prompt, got %d", removed)
	}
	if _, ok := c.Resolve(staleRef); ok {
		t.Fatalf("stale prompt survived the sweep")
	}
	if _, ok := c.Resolve(freshRef); !ok {
		t.Fatalf("fresh prompt was swept")
	}
}
