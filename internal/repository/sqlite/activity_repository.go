package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

// ActivityRepository implements domain.ActivityRepository using SQLite
type ActivityRepository struct {
	db *Database
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *Database) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// LogActivity appends an entry to the activity log
func (r *ActivityRepository) LogActivity(ctx context.Context, entry *domain.ActivityLog) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal activity details: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.db.GetDB().ExecContext(ctx,
		`INSERT INTO activity_log (user_id, type, details_json, created_at) VALUES (?, ?, ?, ?)`,
		entry.UserID, entry.Type, string(payload), toMillis(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get activity ID: %w", err)
	}
	entry.ID = id

	return nil
}

// ListActivity returns a user's entries created at or after since, oldest first
func (r *ActivityRepository) ListActivity(ctx context.Context, userID int64, since time.Time) ([]*domain.ActivityLog, error) {
	rows, err := r.db.GetDB().QueryContext(ctx, `
		SELECT id, user_id, type, details_json, created_at
		FROM activity_log
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at, id
	`, userID, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ActivityLog
	for rows.Next() {
		var (
			entry     domain.ActivityLog
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Type, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to decode activity details: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
