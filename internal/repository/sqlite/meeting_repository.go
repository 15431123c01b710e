package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

// MeetingRepository implements domain.MeetingRepository using SQLite
type MeetingRepository struct {
	db *Database
}

// NewMeetingRepository creates a new MeetingRepository
func NewMeetingRepository(db *Database) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// AddMeeting stores a calendar entry
func (r *MeetingRepository) AddMeeting(ctx context.Context, m *domain.Meeting) error {
	query := `
		INSERT INTO meetings (user_id, title, start_time, end_time, duration_minutes, attendee_count, meeting_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if m.DurationMinutes == 0 {
		m.DurationMinutes = timewindow.MinutesBetween(m.StartTime, m.EndTime)
	}

	result, err := r.db.GetDB().ExecContext(ctx, query,
		m.UserID,
		m.Title,
		toMillis(m.StartTime),
		toMillis(m.EndTime),
		m.DurationMinutes,
		m.AttendeeCount,
		m.MeetingType,
	)
	if err != nil {
		return fmt.Errorf("failed to add meeting: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get meeting ID: %w", err)
	}
	m.ID = id

	return nil
}

// GetMeetingsForUserOnDate returns the meetings starting on date's calendar day
// (in date's location), ordered by start time
func (r *MeetingRepository) GetMeetingsForUserOnDate(ctx context.Context, userID int64, date time.Time) ([]domain.Meeting, error) {
	query := `
		SELECT id, user_id, title, start_time, end_time, duration_minutes, attendee_count, meeting_type
		FROM meetings
		WHERE user_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time
	`

	from := timewindow.StartOfDay(date)
	to := from.AddDate(0, 0, 1)

	rows, err := r.db.GetDB().QueryContext(ctx, query, userID, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("failed to get meetings: %w", err)
	}
	defer rows.Close()

	var meetings []domain.Meeting
	for rows.Next() {
		var (
			m          domain.Meeting
			start, end int64
		)
		err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.Title,
			&start,
			&end,
			&m.DurationMinutes,
			&m.AttendeeCount,
			&m.MeetingType,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		m.StartTime = fromMillis(start).In(date.Location())
		m.EndTime = fromMillis(end).In(date.Location())
		meetings = append(meetings, m)
	}

	return meetings, rows.Err()
}
