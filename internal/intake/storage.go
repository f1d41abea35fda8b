package intake

import "context"

// Storage defines the persistence contract for drafts.
type Storage interface {
	// Get returns the draft for the specified requester.
	Get(ctx context.Context, userID int64) (*Draft, error)
	// Set saves the provided draft for the specified requester.
	Set(ctx context.Context, userID int64, draft *Draft) error
	// Clear removes the draft for the specified requester.
	Clear(ctx context.Context, userID int64) error
}
