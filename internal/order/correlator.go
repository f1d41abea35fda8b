package order

import (
	"sync"
	"time"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

// Correlation ties a decline-reason prompt message to the order and the admin
// who must answer it.
type Correlation struct {
	OrderID    int64
	ExecutorID int64
	OpenedAt   time.Time
}

// Correlator matches free-text replies to outstanding decline-reason prompts.
// Entries are keyed by the prompt message, so a reply identifies its order by
// what it replies to. In-memory only: a restart drops open prompts and the
// admin declines again.
type Correlator struct {
	mu      sync.Mutex
	byRef   map[domain.MessageRef]Correlation
	byOrder map[int64]domain.MessageRef
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{
		byRef:   make(map[domain.MessageRef]Correlation),
		byOrder: make(map[int64]domain.MessageRef),
	}
}

// Open registers a prompt for the given order. A newer prompt for the same
// order supersedes the previous one, so only the latest reply counts.
func (c *Correlator) Open(ref domain.MessageRef, orderID, executorID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.byOrder[orderID]; ok {
		delete(c.byRef, prev)
	}

	c.byRef[ref] = Correlation{
		OrderID:    orderID,
		ExecutorID: executorID,
		OpenedAt:   time.Now(),
	}
	c.byOrder[orderID] = ref
}

// Resolve looks up the correlation for a replied-to message without removing
// it, so a reply from the wrong admin leaves the prompt open.
func (c *Correlator) Resolve(ref domain.MessageRef) (Correlation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	corr, ok := c.byRef[ref]
	return corr, ok
}

// Remove closes the correlation once the decline is finalized.
func (c *Correlator) Remove(ref domain.MessageRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if corr, ok := c.byRef[ref]; ok {
		delete(c.byRef, ref)
		if c.byOrder[corr.OrderID] == ref {
			delete(c.byOrder, corr.OrderID)
		}
	}
}

// Sweep drops correlations older than maxAge and returns how many were
// removed. The orders stay parked in awaiting_decline_reason and remain
// claimable.
func (c *Correlator) Sweep(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for ref, corr := range c.byRef {
		if corr.OpenedAt.Before(cutoff) {
			delete(c.byRef, ref)
			if c.byOrder[corr.OrderID] == ref {
				delete(c.byOrder, corr.OrderID)
			}
			removed++
		}
	}

	return removed
}

// Len returns the number of open prompts.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.byRef)
}
