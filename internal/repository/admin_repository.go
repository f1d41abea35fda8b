package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

const adminCacheTTL = time.Minute

// AdminRepository persists the authorized admin set. Membership checks run on
// every admin-gated update, so results are cached briefly in memory.
type AdminRepository struct {
	db  *sql.DB
	log *slog.Logger

	mu       sync.RWMutex
	cache    map[int64]bool
	cachedAt time.Time
}

// NewAdminRepository creates an admin repository over the given connection.
func NewAdminRepository(db *sql.DB, log *slog.Logger) *AdminRepository {
	if log == nil {
		log = slog.Default()
	}

	return &AdminRepository{
		db:    db,
		log:   log,
		cache: make(map[int64]bool),
	}
}

// Seed inserts the bootstrap admin if it is not already present. Safe to run
// on every startup.
func (r *AdminRepository) Seed(ctx context.Context, userID int64) error {
	if userID == 0 {
		return nil
	}

	query := `
		INSERT INTO admins (user_id, added_by)
		VALUES ($1, $1)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		r.log.Error("failed to seed bootstrap admin", "user_id", userID, "error", err)
		return fmt.Errorf("seed admin %d: %w", userID, err)
	}

	return nil
}

// Add inserts a new admin. Adding an existing admin is a no-op.
func (r *AdminRepository) Add(ctx context.Context, admin domain.Admin) error {
	query := `
		INSERT INTO admins (user_id, username, first_name, last_name, added_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		admin.UserID,
		admin.Username,
		admin.FirstName,
		admin.LastName,
		admin.AddedBy,
	)
	if err != nil {
		r.log.Error("failed to add admin", "user_id", admin.UserID, "error", err)
		return fmt.Errorf("add admin %d: %w", admin.UserID, err)
	}

	r.invalidate()

	return nil
}

// Remove deletes an admin from the set.
func (r *AdminRepository) Remove(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = $1`, userID); err != nil {
		r.log.Error("failed to remove admin", "user_id", userID, "error", err)
		return fmt.Errorf("remove admin %d: %w", userID, err)
	}

	r.invalidate()

	return nil
}

// IsAdmin reports whether the user belongs to the authorized set.
func (r *AdminRepository) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	r.mu.RLock()
	if time.Since(r.cachedAt) < adminCacheTTL {
		isAdmin, ok := r.cache[userID]
		r.mu.RUnlock()
		if ok {
			return isAdmin, nil
		}
	} else {
		r.mu.RUnlock()
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM admins WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		r.log.Error("failed to check admin membership", "user_id", userID, "error", err)
		return false, fmt.Errorf("check admin %d: %w", userID, err)
	}

	r.mu.Lock()
	if time.Since(r.cachedAt) >= adminCacheTTL {
		r.cache = make(map[int64]bool)
		r.cachedAt = time.Now()
	}
	r.cache[userID] = exists
	r.mu.Unlock()

	return exists, nil
}

// List returns every admin ordered by join time.
func (r *AdminRepository) List(ctx context.Context) ([]domain.Admin, error) {
	query := `
		SELECT user_id, username, first_name, last_name, added_by, added_at
		FROM admins ORDER BY added_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.log.Error("failed to list admins", "error", err)
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []domain.Admin
	for rows.Next() {
		var (
			admin                         domain.Admin
			username, firstName, lastName sql.NullString
			addedBy                       sql.NullInt64
		)
		if err := rows.Scan(&admin.UserID, &username, &firstName, &lastName, &addedBy, &admin.AddedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admin.Username = username.String
		admin.FirstName = firstName.String
		admin.LastName = lastName.String
		admin.AddedBy = addedBy.Int64
		admins = append(admins, admin)
	}

	return admins, rows.Err()
}

func (r *AdminRepository) invalidate() {
	r.mu.Lock()
	r.cache = make(map[int64]bool)
	r.cachedAt = time.Time{}
	r.mu.Unlock()
}
