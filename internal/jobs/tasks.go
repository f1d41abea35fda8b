// Package jobs runs background work over asynq: broadcast fan-out and the
// periodic sweep of stale decline prompts.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypeBroadcast fans an announcement out to every known user.
	TypeBroadcast = "broadcast:fanout"
	// TypeCorrelationSweep drops decline prompts nobody answered.
	TypeCorrelationSweep = "correlation:sweep"
)

// BroadcastPayload is the serialized broadcast task.
type BroadcastPayload struct {
	Text        string `json:"text"`
	InitiatorID int64  `json:"initiator_id"`
}

// NewBroadcastTask builds a broadcast task for the given announcement.
func NewBroadcastTask(text string, initiatorID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(BroadcastPayload{
		Text:        text,
		InitiatorID: initiatorID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal broadcast payload: %w", err)
	}

	return asynq.NewTask(TypeBroadcast, payload, asynq.MaxRetry(3)), nil
}

// NewCorrelationSweepTask builds the periodic sweep task.
func NewCorrelationSweepTask() *asynq.Task {
	return asynq.NewTask(TypeCorrelationSweep, nil)
}
