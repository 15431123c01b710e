package httpapi

import (
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/slotfinder"
)

// Request payloads

type SlotRequest struct {
	DurationMinutes int    `json:"duration_minutes" doc:"Activity length in minutes"`
	ActivityType    string `json:"activity_type,omitempty" doc:"walk, lunch, coffee, stretch, meditation, break or general"`
	TimePreference  string `json:"time_preference,omitempty" doc:"morning, afternoon or anytime"`
}

type StartFocusRequest struct {
	DurationMinutes int `json:"duration_minutes"`
	// StartTime accepts RFC 3339 or a time of day such as "14:30"; empty starts now.
	StartTime string `json:"start_time,omitempty" example:"14:30"`
}

// Response payloads

type SlotsResponse struct {
	Slots       []domain.TimeSlot `json:"slots"`
	Insights    []string          `json:"insights"`
	Source      string            `json:"source"`
	Packed      bool              `json:"packed"`
	Summary     string            `json:"summary"`
	Recommended *domain.TimeSlot  `json:"recommended,omitempty"`
}

type SessionResponse struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"user_id"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	DurationMinutes int        `json:"duration_minutes"`
	StartTime       time.Time  `json:"start_time"`
	PlannedEnd      time.Time  `json:"planned_end"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	StatusSynced    bool       `json:"status_synced"`
	SuggestionID    string     `json:"suggestion_id,omitempty"`
}

type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func slotsResponse(r slotfinder.Result) SlotsResponse {
	out := SlotsResponse{
		Slots:    nonNilSlice(r.Slots),
		Insights: nonNilSlice(r.Insights),
		Source:   r.Source,
		Packed:   r.Packed,
		Summary:  r.Summary(),
	}
	if slot, ok := r.Recommended(); ok {
		out.Recommended = &slot
	}
	return out
}

func sessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		Kind:            string(s.Kind),
		Status:          string(s.Status),
		DurationMinutes: s.DurationMinutes,
		StartTime:       s.StartTime,
		PlannedEnd:      s.PlannedEnd(),
		EndTime:         s.EndTime,
		StatusSynced:    s.StatusSynced,
		SuggestionID:    s.SuggestionID,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
