package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

// ProfileRepository persists user profiles. Profiles are refreshed on every
// private-chat interaction so broadcasts reach current chat ids.
type ProfileRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewProfileRepository creates a profile repository over the given connection.
func NewProfileRepository(db *sql.DB, log *slog.Logger) *ProfileRepository {
	if log == nil {
		log = slog.Default()
	}

	return &ProfileRepository{db: db, log: log}
}

// Upsert inserts or refreshes a profile by user id.
func (r *ProfileRepository) Upsert(ctx context.Context, profile domain.Profile) error {
	query := `
		INSERT INTO user_profiles (user_id, username, first_name, last_name, chat_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			chat_id = EXCLUDED.chat_id,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		profile.UserID,
		profile.Username,
		profile.FirstName,
		profile.LastName,
		profile.ChatID,
	)
	if err != nil {
		r.log.Error("failed to upsert profile", "user_id", profile.UserID, "error", err)
		return fmt.Errorf("upsert profile %d: %w", profile.UserID, err)
	}

	return nil
}

// GetByID returns the profile for the given user or ErrNotFound.
func (r *ProfileRepository) GetByID(ctx context.Context, userID int64) (*domain.Profile, error) {
	query := `
		SELECT user_id, username, first_name, last_name, chat_id, updated_at
		FROM user_profiles WHERE user_id = $1`

	var (
		profile                       domain.Profile
		username, firstName, lastName sql.NullString
		chatID                        sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&username,
		&firstName,
		&lastName,
		&chatID,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.log.Error("failed to get profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("get profile %d: %w", userID, err)
	}

	profile.Username = username.String
	profile.FirstName = firstName.String
	profile.LastName = lastName.String
	profile.ChatID = chatID.Int64

	return &profile, nil
}

// ListChatIDs returns every known private chat id for broadcast fan-out.
func (r *ProfileRepository) ListChatIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT chat_id FROM user_profiles WHERE chat_id IS NOT NULL AND chat_id != 0`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.log.Error("failed to list chat ids", "error", err)
		return nil, fmt.Errorf("list chat ids: %w", err)
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		chatIDs = append(chatIDs, chatID)
	}

	return chatIDs, rows.Err()
}

// Count returns the number of known users.
func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles`).Scan(&count); err != nil {
		r.log.Error("failed to count profiles", "error", err)
		return 0, fmt.Errorf("count profiles: %w", err)
	}

	return count, nil
}
