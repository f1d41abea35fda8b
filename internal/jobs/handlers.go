package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/orderdesk/orderdesk-bot/internal/order"
	"github.com/orderdesk/orderdesk-bot/internal/transport"
	"github.com/orderdesk/orderdesk-bot/pkg/metrics"
)

// perMessageDelay spaces deliveries to stay under the platform send limits.
const perMessageDelay = 50 * time.Millisecond

// ChatLister supplies the chat ids a broadcast targets.
type ChatLister interface {
	ListChatIDs(ctx context.Context) ([]int64, error)
}

// BroadcastHandler delivers an announcement to every known user and reports
// the tally back to the initiating admin.
type BroadcastHandler struct {
	profiles  ChatLister
	transport transport.Transport
	log       *slog.Logger
}

// NewBroadcastHandler creates the broadcast task handler.
func NewBroadcastHandler(profiles ChatLister, tr transport.Transport, log *slog.Logger) *BroadcastHandler {
	if log == nil {
		log = slog.Default()
	}

	return &BroadcastHandler{
		profiles:  profiles,
		transport: tr,
		log:       log,
	}
}

// ProcessTask implements asynq.Handler.
func (h *BroadcastHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload BroadcastPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal broadcast payload: %w", err)
	}

	chatIDs, err := h.profiles.ListChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("list broadcast targets: %w", err)
	}

	delivered, failed := 0, 0
	for _, chatID := range chatIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := h.transport.Send(ctx, chatID, payload.Text, nil); err != nil {
			// Blocked bots and deleted accounts are expected; skip and go on.
			h.log.Warn("broadcast delivery failed", "chat_id", chatID, "error", err)
			metrics.RecordBroadcastDelivery(false)
			failed++
			continue
		}

		metrics.RecordBroadcastDelivery(true)
		delivered++

		time.Sleep(perMessageDelay)
	}

	h.log.Info("broadcast finished",
		slog.Int64("initiator_id", payload.InitiatorID),
		slog.Int("delivered", delivered),
		slog.Int("failed", failed),
	)

	if payload.InitiatorID != 0 {
		summary := fmt.Sprintf("📢 Рассылка завершена.\nДоставлено: %d\nНе доставлено: %d", delivered, failed)
		if _, err := h.transport.Send(ctx, payload.InitiatorID, summary, nil); err != nil {
			h.log.Warn("failed to report broadcast summary", "initiator_id", payload.InitiatorID, "error", err)
		}
	}

	return nil
}

// SweepHandler expires decline prompts that never got an answer.
type SweepHandler struct {
	correlator *order.Correlator
	maxAge     time.Duration
	log        *slog.Logger
}

// NewSweepHandler creates the correlation sweep handler. Prompts older than
// maxAge (24h by default) are dropped.
func NewSweepHandler(correlator *order.Correlator, maxAge time.Duration, log *slog.Logger) *SweepHandler {
	if log == nil {
		log = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	return &SweepHandler{
		correlator: correlator,
		maxAge:     maxAge,
		log:        log,
	}
}

// ProcessTask implements asynq.Handler.
func (h *SweepHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	removed := h.correlator.Sweep(h.maxAge)
	if removed > 0 {
		h.log.Info("swept stale decline prompts", slog.Int("removed", removed))
	}

	return nil
}
