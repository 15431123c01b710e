package domain

import (
	"context"
	"time"
)

// SessionKind distinguishes focus sessions from breaks
type SessionKind string

const (
	SessionKindFocus SessionKind = "focus"
	SessionKindBreak SessionKind = "break"
)

// Valid reports whether the kind is known
func (k SessionKind) Valid() bool {
	return k == SessionKindFocus || k == SessionKindBreak
}

// SessionStatus represents the current status of a focus or break session
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// Session represents a focus or break session
type Session struct {
	ID              string
	UserID          int64
	Kind            SessionKind
	DurationMinutes int
	StartTime       time.Time
	EndTime         *time.Time
	Status          SessionStatus
	// StatusSynced is false when the last presence update for this session failed.
	StatusSynced bool
	// StatusSet records that a presence status is currently shown for this session.
	StatusSet    bool
	SuggestionID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PlannedEnd returns when the session is expected to finish
func (s *Session) PlannedEnd() time.Time {
	return s.StartTime.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Clone returns a copy that does not share the EndTime pointer
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return &c
}

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	UpdateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetActiveSession(ctx context.Context, userID int64, kind SessionKind) (*Session, error)
	ListSessionsByStatus(ctx context.Context, status SessionStatus) ([]*Session, error)
	ListSessionsForUser(ctx context.Context, userID int64, since time.Time) ([]*Session, error)
}
