package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

// SessionRepository implements domain.SessionRepository using SQLite
type SessionRepository struct {
	db *Database
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *Database) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, user_id, kind, duration_minutes, start_time, end_time, status,
	status_synced, status_set, suggestion_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	session := &domain.Session{}
	var (
		startTime, createdAt, updatedAt int64
		endTime                         sql.NullInt64
		synced, set                     int
	)

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Kind,
		&session.DurationMinutes,
		&startTime,
		&endTime,
		&session.Status,
		&synced,
		&set,
		&session.SuggestionID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.StartTime = fromMillis(startTime)
	session.EndTime = timePtr(endTime)
	session.StatusSynced = intToBool(synced)
	session.StatusSet = intToBool(set)
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)

	return session, nil
}

// CreateSession creates a new session
func (r *SessionRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	_, err := r.db.GetDB().ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Kind,
		session.DurationMinutes,
		toMillis(session.StartTime),
		nullableMillis(session.EndTime),
		session.Status,
		boolToInt(session.StatusSynced),
		boolToInt(session.StatusSet),
		session.SuggestionID,
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// UpdateSession updates a session
func (r *SessionRepository) UpdateSession(ctx context.Context, session *domain.Session) error {
	query := `
		UPDATE sessions
		SET status = ?, end_time = ?, status_synced = ?, status_set = ?, updated_at = ?
		WHERE id = ?
	`

	session.UpdatedAt = time.Now()
	result, err := r.db.GetDB().ExecContext(ctx, query,
		session.Status,
		nullableMillis(session.EndTime),
		boolToInt(session.StatusSynced),
		boolToInt(session.StatusSet),
		toMillis(session.UpdatedAt),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update session %s: %w", session.ID, domain.ErrNotFound)
	}

	return nil
}

// GetSession retrieves a session by ID
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	session, err := scanSession(r.db.GetDB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// GetActiveSession retrieves the user's current active session of the given kind
func (r *SessionRepository) GetActiveSession(ctx context.Context, userID int64, kind domain.SessionKind) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = ? AND kind = ? AND status = ?
		ORDER BY start_time DESC
		LIMIT 1
	`

	session, err := scanSession(r.db.GetDB().QueryRowContext(ctx, query, userID, kind, domain.SessionStatusActive))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	return session, nil
}

// ListSessionsByStatus retrieves all sessions in the given status
func (r *SessionRepository) ListSessionsByStatus(ctx context.Context, status domain.SessionStatus) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = ? ORDER BY start_time`
	return r.list(ctx, query, status)
}

// ListSessionsForUser retrieves a user's sessions that started at or after since
func (r *SessionRepository) ListSessionsForUser(ctx context.Context, userID int64, since time.Time) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ? AND start_time >= ? ORDER BY start_time`
	return r.list(ctx, query, userID, toMillis(since))
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Session, error) {
	rows, err := r.db.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}
