package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	bindingKeyPattern = "payment:upload:%d"
	bindingTTL        = 24 * time.Hour
)

// ErrNoBinding indicates that the user has not armed a receipt upload.
var ErrNoBinding = errors.New("no receipt upload binding")

// KV is the key-value contract for the receipt binder.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReceiptBinder pins a requester's next attachment to a specific order. One
// binding per user; pressing the upload button on another order replaces it.
// Bindings expire so a forgotten button cannot capture an unrelated file
// weeks later.
type ReceiptBinder struct {
	kv  KV
	log *slog.Logger
}

// NewReceiptBinder creates a Redis-backed receipt binder.
func NewReceiptBinder(kv KV, log *slog.Logger) *ReceiptBinder {
	if log == nil {
		log = slog.Default()
	}

	return &ReceiptBinder{kv: kv, log: log}
}

// Bind arms the user's next attachment for the given order.
func (b *ReceiptBinder) Bind(ctx context.Context, userID, orderID int64) error {
	if err := b.kv.Set(ctx, bindingKey(userID), strconv.FormatInt(orderID, 10), bindingTTL); err != nil {
		b.log.Error("failed to set receipt binding", "user_id", userID, "order_id", orderID, "error", err)
		return err
	}

	return nil
}

// Resolve returns the bound order id or ErrNoBinding.
func (b *ReceiptBinder) Resolve(ctx context.Context, userID int64) (int64, error) {
	value, err := b.kv.Get(ctx, bindingKey(userID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, ErrNoBinding
		}

		b.log.Error("failed to get receipt binding", "user_id", userID, "error", err)
		return 0, err
	}

	orderID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		b.log.Error("corrupt receipt binding", "user_id", userID, "value", value)
		return 0, ErrNoBinding
	}

	return orderID, nil
}

// Clear removes the binding once the receipt has been routed.
func (b *ReceiptBinder) Clear(ctx context.Context, userID int64) error {
	if err := b.kv.Delete(ctx, bindingKey(userID)); err != nil {
		b.log.Error("failed to clear receipt binding", "user_id", userID, "error", err)
		return err
	}

	return nil
}

func bindingKey(userID int64) string {
	return fmt.Sprintf(bindingKeyPattern, userID)
}
