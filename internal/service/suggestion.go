package service

import (
	"context"
	"fmt"

	"github.com/glebk/wellness-bot/internal/domain"
)

// SuggestBreakInput describes a break proposal
type SuggestBreakInput struct {
	UserID  int64
	Type    domain.BreakType
	Message string
	Reason  string
	Urgency domain.Urgency
}

// SuggestBreak records a pending break suggestion
func (s *SessionService) SuggestBreak(ctx context.Context, in SuggestBreakInput) (*domain.BreakSuggestion, error) {
	if in.Type == "" {
		return nil, fmt.Errorf("%w: break type is required", domain.ErrInvalidRequest)
	}
	if in.Urgency == "" {
		in.Urgency = domain.UrgencyLow
	}

	suggestion := &domain.BreakSuggestion{
		ID:          s.newID(),
		UserID:      in.UserID,
		Type:        in.Type,
		Message:     in.Message,
		Reason:      in.Reason,
		Urgency:     in.Urgency,
		Status:      domain.SuggestionPending,
		SuggestedAt: s.clock.Now(),
	}

	err := s.store(ctx, "create break suggestion", func(ctx context.Context) error {
		return s.suggestions.CreateBreakSuggestion(ctx, suggestion)
	})
	if err != nil {
		return nil, err
	}
	return suggestion, nil
}

// AcceptSuggestion marks a suggestion accepted and starts the matching break
// session. Only the first accept of a pending suggestion starts a break.
func (s *SessionService) AcceptSuggestion(ctx context.Context, suggestionID string) (*domain.Session, error) {
	suggestion, err := s.claimSuggestion(ctx, suggestionID, domain.SuggestionAccepted)
	if err != nil {
		return nil, err
	}

	return s.Create(ctx, CreateSessionInput{
		UserID:          suggestion.UserID,
		Kind:            domain.SessionKindBreak,
		DurationMinutes: suggestion.Type.DefaultMinutes(),
		SuggestionID:    suggestion.ID,
	})
}

// DeclineSuggestion records that the user turned a suggestion down
func (s *SessionService) DeclineSuggestion(ctx context.Context, suggestionID string) (*domain.BreakSuggestion, error) {
	return s.claimSuggestion(ctx, suggestionID, domain.SuggestionDeclined)
}

// CancelSuggestion withdraws a pending suggestion, e.g. when the user delays it
func (s *SessionService) CancelSuggestion(ctx context.Context, suggestionID string) (*domain.BreakSuggestion, error) {
	return s.claimSuggestion(ctx, suggestionID, domain.SuggestionCancelled)
}

// StartBreak starts a break the user asked for without a prior suggestion.
// An accepted suggestion is recorded so the monitor's cooldown sees it.
func (s *SessionService) StartBreak(ctx context.Context, userID int64, breakType domain.BreakType) (*domain.Session, error) {
	suggestion, err := s.SuggestBreak(ctx, SuggestBreakInput{
		UserID:  userID,
		Type:    breakType,
		Message: "Break requested by user",
		Reason:  "requested",
	})
	if err != nil {
		return nil, err
	}
	return s.AcceptSuggestion(ctx, suggestion.ID)
}

// RecentBreaks returns the user's suggestions from the last lookbackHours
func (s *SessionService) RecentBreaks(ctx context.Context, userID int64, lookbackHours int) ([]*domain.BreakSuggestion, error) {
	var recent []*domain.BreakSuggestion
	err := s.store(ctx, "get recent break suggestions", func(ctx context.Context) error {
		var err error
		recent, err = s.suggestions.GetRecentBreakSuggestions(ctx, userID, lookbackHours)
		return err
	})
	return recent, err
}

// Suggestion returns a break suggestion by ID
func (s *SessionService) Suggestion(ctx context.Context, suggestionID string) (*domain.BreakSuggestion, error) {
	var suggestion *domain.BreakSuggestion
	err := s.store(ctx, "get break suggestion", func(ctx context.Context) error {
		var err error
		suggestion, err = s.suggestions.GetBreakSuggestion(ctx, suggestionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if suggestion == nil {
		return nil, fmt.Errorf("suggestion %s: %w", suggestionID, domain.ErrNotFound)
	}
	return suggestion, nil
}

// claimSuggestion moves a pending suggestion to status exactly once
func (s *SessionService) claimSuggestion(ctx context.Context, suggestionID string, status domain.SuggestionStatus) (*domain.BreakSuggestion, error) {
	suggestion, err := s.Suggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}

	st := s.userState(suggestion.UserID)
	st.mu.Lock()
	if _, claimed := st.handled[suggestionID]; claimed || suggestion.Status != domain.SuggestionPending {
		st.mu.Unlock()
		return nil, fmt.Errorf("%w: suggestion %s was already handled", domain.ErrInvalidRequest, suggestionID)
	}
	st.handled[suggestionID] = s.clock.Now()
	st.mu.Unlock()

	suggestion.Status = status
	if status == domain.SuggestionAccepted {
		now := s.clock.Now()
		suggestion.Accepted = true
		suggestion.AcceptedAt = &now
	}

	err = s.store(ctx, "update break suggestion", func(ctx context.Context) error {
		return s.suggestions.UpdateBreakSuggestion(ctx, suggestion)
	})
	if err != nil {
		st.mu.Lock()
		delete(st.handled, suggestionID)
		st.mu.Unlock()
		return nil, err
	}
	return suggestion, nil
}
