package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

const (
	draftLockKeyPattern = "draft:lock:%d"
	lockTTL             = 5 * time.Second
)

var (
	// ErrDraftNotFound indicates that no draft exists for the requester.
	ErrDraftNotFound = errors.New("draft not found")
	// ErrDraftLocked indicates that a concurrent operation already holds the lock.
	ErrDraftLocked = errors.New("draft is locked, try again later")
	// ErrStaleStep indicates that the input was produced for a step the draft
	// has already left. Stale input is rejected, never silently applied.
	ErrStaleStep = errors.New("input does not match the current step")
	// ErrInvalidInput indicates that the input failed the step's validation.
	// The requester is re-prompted for the same step.
	ErrInvalidInput = errors.New("input not valid for this step")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe step transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Input carries one message's worth of data for a specific step. Step names
// the step the sender was prompted for, so late messages can be detected.
type Input struct {
	Step           Step
	OrderType      string
	OrderTypeLabel string
	Text           string
	Attachment     *domain.Attachment
}

// Machine describes the intake form controller.
type Machine interface {
	Get(ctx context.Context, userID int64) (*Draft, error)
	Begin(ctx context.Context, requester domain.UserRef) (*Draft, error)
	Apply(ctx context.Context, userID int64, in Input) (*Draft, error)
	Clear(ctx context.Context, userID int64) error
}

// machine is a concrete Machine backed by Storage and Redis locking.
type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *goredis.Client
}

// NewMachine creates an intake controller using the provided storage backend
// and redis client for per-requester locking.
func NewMachine(storage Storage, log *slog.Logger, redisClient *goredis.Client) Machine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
	}
}

// Get proxies to the underlying storage implementation.
func (m *machine) Get(ctx context.Context, userID int64) (*Draft, error) {
	return m.storage.Get(ctx, userID)
}

// Begin starts a fresh draft at the type-selection step, superseding any
// previous draft for the requester.
func (m *machine) Begin(ctx context.Context, requester domain.UserRef) (*Draft, error) {
	if err := m.lock(ctx, requester.ID); err != nil {
		return nil, err
	}
	defer m.unlock(ctx, requester.ID)

	draft := &Draft{
		UserID:    requester.ID,
		Requester: requester,
		Step:      StepSelectingType,
	}

	if err := m.storage.Set(ctx, requester.ID, draft); err != nil {
		return nil, err
	}

	transitionRecorder(string(StepNone), string(StepSelectingType))

	return draft, nil
}

// Apply validates in against the draft's current step, stores the collected
// field, and advances the step. The draft is persisted before Apply returns,
// so a crash between steps loses at most the in-flight message.
func (m *machine) Apply(ctx context.Context, userID int64, in Input) (*Draft, error) {
	if err := m.lock(ctx, userID); err != nil {
		return nil, err
	}
	defer m.unlock(ctx, userID)

	draft, err := m.storage.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if draft.Step != in.Step {
		m.log.Warn("stale intake input rejected",
			slog.Int64("user_id", userID),
			slog.String("input_step", string(in.Step)),
			slog.String("current_step", string(draft.Step)),
		)
		return nil, ErrStaleStep
	}

	if err := applyInput(draft, in); err != nil {
		return nil, err
	}

	next := NextStep(draft.Step)
	transitionRecorder(string(draft.Step), string(next))
	draft.Step = next

	if err := m.storage.Set(ctx, userID, draft); err != nil {
		return nil, err
	}

	return draft, nil
}

// Clear removes the stored draft while holding the lock.
func (m *machine) Clear(ctx context.Context, userID int64) error {
	if err := m.lock(ctx, userID); err != nil {
		return err
	}
	defer m.unlock(ctx, userID)

	return m.storage.Clear(ctx, userID)
}

func applyInput(draft *Draft, in Input) error {
	switch draft.Step {
	case StepSelectingType:
		if in.OrderType == "" || in.OrderTypeLabel == "" {
			return ErrInvalidInput
		}
		draft.Fields.OrderType = in.OrderType
		draft.Fields.OrderTypeLabel = in.OrderTypeLabel

	case StepEnteringSubject:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return ErrInvalidInput
		}
		draft.Fields.Subject = text

	case StepEnteringDescription:
		if in.Attachment != nil {
			draft.Fields.Attachment = in.Attachment
			draft.Fields.Description = "Файл прикреплен"
			break
		}

		text := strings.TrimSpace(in.Text)
		if text == "" {
			return ErrInvalidInput
		}
		draft.Fields.Description = text
		draft.Fields.Attachment = nil

	case StepEnteringExtra:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return ErrInvalidInput
		}
		draft.Fields.ExtraNotes = text

	case StepEnteringDeadline:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return ErrInvalidInput
		}
		draft.Fields.Deadline = text

	case StepEnteringBudget:
		budget, ok := NormalizeBudget(in.Text)
		if !ok {
			return ErrInvalidInput
		}
		draft.Fields.Budget = budget

	default:
		return ErrInvalidInput
	}

	return nil
}

func (m *machine) lock(ctx context.Context, userID int64) error {
	if m.redisClient == nil {
		return nil
	}

	key := fmt.Sprintf(draftLockKeyPattern, userID)
	acquired, err := m.redisClient.SetNX(ctx, key, 1, lockTTL).Result()
	if err != nil {
		m.log.Error("failed to acquire draft lock", "user_id", userID, "error", err)
		return err
	}

	if !acquired {
		m.log.Warn("draft lock already held", "user_id", userID)
		return ErrDraftLocked
	}

	return nil
}

func (m *machine) unlock(ctx context.Context, userID int64) {
	if m.redisClient == nil {
		return
	}

	key := fmt.Sprintf(draftLockKeyPattern, userID)
	if err := m.redisClient.Del(ctx, key).Err(); err != nil {
		m.log.Error("failed to release draft lock", "user_id", userID, "error", err)
	}
}
