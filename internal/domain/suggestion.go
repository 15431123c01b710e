package domain

import (
	"context"
	"time"
)

// BreakType is the kind of break the monitor proposes
type BreakType string

const (
	BreakHydration  BreakType = "hydration"
	BreakStretch    BreakType = "stretch"
	BreakWalk       BreakType = "walk"
	BreakMeditation BreakType = "meditation"
)

// BreakRotation is the fixed order proactive suggestions cycle through.
var BreakRotation = []BreakType{BreakHydration, BreakStretch, BreakWalk, BreakMeditation}

// DefaultMinutes returns how long a break of this type usually lasts
func (t BreakType) DefaultMinutes() int {
	switch t {
	case BreakWalk:
		return 15
	case BreakMeditation:
		return 10
	default:
		return 5
	}
}

// Urgency ranks how overdue a break is
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// SuggestionStatus tracks the outcome of a break suggestion
type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionAccepted  SuggestionStatus = "accepted"
	SuggestionDeclined  SuggestionStatus = "declined"
	SuggestionCancelled SuggestionStatus = "cancelled"
)

// BreakSuggestion represents a proposed or accepted break
type BreakSuggestion struct {
	ID          string
	UserID      int64
	Type        BreakType
	Message     string
	Reason      string
	Urgency     Urgency
	Status      SuggestionStatus
	SuggestedAt time.Time
	Accepted    bool
	AcceptedAt  *time.Time
}

// SuggestionRepository defines the interface for break suggestion storage
type SuggestionRepository interface {
	CreateBreakSuggestion(ctx context.Context, suggestion *BreakSuggestion) error
	UpdateBreakSuggestion(ctx context.Context, suggestion *BreakSuggestion) error
	GetBreakSuggestion(ctx context.Context, id string) (*BreakSuggestion, error)
	GetRecentBreakSuggestions(ctx context.Context, userID int64, lookbackHours int) ([]*BreakSuggestion, error)
}
