package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
	"github.com/orderdesk/orderdesk-bot/internal/intake"
)

// DraftRepository is a Postgres-backed intake.Storage. Selected via the
// drafts.backend config switch when drafts must survive a Redis flush.
type DraftRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewDraftRepository creates a Postgres draft store.
func NewDraftRepository(db *sql.DB, log *slog.Logger) *DraftRepository {
	if log == nil {
		log = slog.Default()
	}

	return &DraftRepository{db: db, log: log}
}

type draftRecord struct {
	Requester domain.UserRef `json:"requester"`
	Fields    intake.Fields  `json:"fields"`
}

// Get returns the stored draft or intake.ErrDraftNotFound when absent.
func (r *DraftRepository) Get(ctx context.Context, userID int64) (*intake.Draft, error) {
	query := `SELECT step, fields, updated_at FROM drafts WHERE user_id = $1`

	var (
		step    string
		payload []byte
		draft   intake.Draft
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&step, &payload, &draft.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, intake.ErrDraftNotFound
		}

		r.log.Error("failed to get draft", "user_id", userID, "error", err)
		return nil, fmt.Errorf("get draft %d: %w", userID, err)
	}

	var record draftRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		r.log.Error("failed to decode draft", "user_id", userID, "error", err)
		return nil, fmt.Errorf("decode draft %d: %w", userID, err)
	}

	draft.UserID = userID
	draft.Step = intake.Step(step)
	draft.Requester = record.Requester
	draft.Fields = record.Fields

	return &draft, nil
}

// Set saves the provided draft, replacing any previous one.
func (r *DraftRepository) Set(ctx context.Context, userID int64, draft *intake.Draft) error {
	payload, err := json.Marshal(draftRecord{
		Requester: draft.Requester,
		Fields:    draft.Fields,
	})
	if err != nil {
		return fmt.Errorf("encode draft %d: %w", userID, err)
	}

	query := `
		INSERT INTO drafts (user_id, step, fields, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			step = EXCLUDED.step,
			fields = EXCLUDED.fields,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, string(draft.Step), payload); err != nil {
		r.log.Error("failed to save draft", "user_id", userID, "error", err)
		return fmt.Errorf("save draft %d: %w", userID, err)
	}

	return nil
}

// Clear removes the stored draft for the given requester.
func (r *DraftRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE user_id = $1`, userID); err != nil {
		r.log.Error("failed to clear draft", "user_id", userID, "error", err)
		return fmt.Errorf("clear draft %d: %w", userID, err)
	}

	return nil
}
