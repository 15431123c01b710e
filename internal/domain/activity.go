package domain

import (
	"context"
	"time"
)

// Activity log entry types
const (
	ActivityBreakSuggested = "proactive_break_suggested"
	ActivityBreakDeferred  = "proactive_break_deferred"
	ActivityBreakAccepted  = "break_accepted"
	ActivityBreakDelayed   = "break_delayed"
	ActivityBreakDismissed = "break_dismissed"
)

// ActivityLog is an append-only record of what the assistant did for a user
type ActivityLog struct {
	ID        int64
	UserID    int64
	Type      string
	Details   map[string]any
	CreatedAt time.Time
}

// ActivityRepository defines the interface for activity log storage
type ActivityRepository interface {
	LogActivity(ctx context.Context, entry *ActivityLog) error
	ListActivity(ctx context.Context, userID int64, since time.Time) ([]*ActivityLog, error)
}
