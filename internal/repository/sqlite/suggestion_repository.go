package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebk/wellness-bot/internal/clock"
	"github.com/glebk/wellness-bot/internal/domain"
)

// SuggestionRepository implements domain.SuggestionRepository using SQLite
type SuggestionRepository struct {
	db    *Database
	clock clock.Clock
}

// NewSuggestionRepository creates a new SuggestionRepository. clk anchors lookback windows.
func NewSuggestionRepository(db *Database, clk clock.Clock) *SuggestionRepository {
	if clk == nil {
		clk = clock.System{}
	}
	return &SuggestionRepository{db: db, clock: clk}
}

const suggestionColumns = `id, user_id, type, message, reason, urgency, status, suggested_at, accepted, accepted_at`

func scanSuggestion(row rowScanner) (*domain.BreakSuggestion, error) {
	s := &domain.BreakSuggestion{}
	var (
		suggestedAt int64
		acceptedAt  sql.NullInt64
		accepted    int
	)

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Type,
		&s.Message,
		&s.Reason,
		&s.Urgency,
		&s.Status,
		&suggestedAt,
		&accepted,
		&acceptedAt,
	)
	if err != nil {
		return nil, err
	}

	s.SuggestedAt = fromMillis(suggestedAt)
	s.Accepted = intToBool(accepted)
	s.AcceptedAt = timePtr(acceptedAt)

	return s, nil
}

// CreateBreakSuggestion stores a new suggestion
func (r *SuggestionRepository) CreateBreakSuggestion(ctx context.Context, s *domain.BreakSuggestion) error {
	query := `INSERT INTO break_suggestions (` + suggestionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.GetDB().ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.Type,
		s.Message,
		s.Reason,
		s.Urgency,
		s.Status,
		toMillis(s.SuggestedAt),
		boolToInt(s.Accepted),
		nullableMillis(s.AcceptedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create break suggestion: %w", err)
	}

	return nil
}

// UpdateBreakSuggestion updates the outcome of a suggestion
func (r *SuggestionRepository) UpdateBreakSuggestion(ctx context.Context, s *domain.BreakSuggestion) error {
	query := `
		UPDATE break_suggestions
		SET status = ?, accepted = ?, accepted_at = ?
		WHERE id = ?
	`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		s.Status,
		boolToInt(s.Accepted),
		nullableMillis(s.AcceptedAt),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update break suggestion: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update break suggestion %s: %w", s.ID, domain.ErrNotFound)
	}

	return nil
}

// GetBreakSuggestion retrieves a suggestion by ID
func (r *SuggestionRepository) GetBreakSuggestion(ctx context.Context, id string) (*domain.BreakSuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM break_suggestions WHERE id = ?`

	s, err := scanSuggestion(r.db.GetDB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get break suggestion: %w", err)
	}

	return s, nil
}

// GetRecentBreakSuggestions returns suggestions from the last lookbackHours, newest first
func (r *SuggestionRepository) GetRecentBreakSuggestions(ctx context.Context, userID int64, lookbackHours int) ([]*domain.BreakSuggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM break_suggestions
		WHERE user_id = ? AND suggested_at >= ?
		ORDER BY suggested_at DESC
	`

	since := r.clock.Now().Add(-time.Duration(lookbackHours) * time.Hour)
	rows, err := r.db.GetDB().QueryContext(ctx, query, userID, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to get recent break suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []*domain.BreakSuggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan break suggestion: %w", err)
		}
		suggestions = append(suggestions, s)
	}

	return suggestions, rows.Err()
}
