package domain

import (
	"context"
	"time"
)

// Meeting is a read-only calendar entry
type Meeting struct {
	ID              int64
	UserID          int64
	Title           string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	AttendeeCount   int
	MeetingType     string
}

// MeetingRepository defines the interface for calendar storage
type MeetingRepository interface {
	GetMeetingsForUserOnDate(ctx context.Context, userID int64, date time.Time) ([]Meeting, error)
	AddMeeting(ctx context.Context, meeting *Meeting) error
}
