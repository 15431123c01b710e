package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

// Response is a user's answer to a break alert
type Response struct {
	UserID       int64
	SuggestionID string
	Action       domain.AlertAction
}

// HandleResponse applies the user's answer to an alert. Accepting returns
// the break session that was started; the other actions return nil.
func (m *Monitor) HandleResponse(ctx context.Context, r Response) (*domain.Session, error) {
	if !r.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown alert action %q", domain.ErrInvalidRequest, r.Action)
	}
	if r.SuggestionID == "" {
		return nil, fmt.Errorf("%w: suggestion id is required", domain.ErrInvalidRequest)
	}
	suggestion, err := m.Sessions.Suggestion(ctx, r.SuggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.UserID != r.UserID {
		// someone else's alert looks the same as a missing one
		return nil, fmt.Errorf("suggestion %s for user %d: %w", r.SuggestionID, r.UserID, domain.ErrNotFound)
	}

	switch r.Action {
	case domain.ActionAcceptNow:
		return m.acceptNow(ctx, r)
	case domain.ActionDelay30:
		return nil, m.delay(ctx, r, 30*time.Minute)
	case domain.ActionDelay60:
		return nil, m.delay(ctx, r, 60*time.Minute)
	default:
		if _, err := m.Sessions.DeclineSuggestion(ctx, r.SuggestionID); err != nil {
			return nil, err
		}
		m.logActivity(ctx, r.UserID, domain.ActivityBreakDismissed, map[string]any{
			"suggestion_id": r.SuggestionID,
		})
		return nil, nil
	}
}

func (m *Monitor) acceptNow(ctx context.Context, r Response) (*domain.Session, error) {
	session, err := m.Sessions.AcceptSuggestion(ctx, r.SuggestionID)
	if session == nil {
		return nil, err
	}

	m.breakStarted(ctx, session)
	return session, err
}

// StartBreak starts a break the user asked for outside of an alert
func (m *Monitor) StartBreak(ctx context.Context, userID int64, breakType domain.BreakType) (*domain.Session, error) {
	session, err := m.Sessions.StartBreak(ctx, userID, breakType)
	if session == nil {
		return nil, err
	}
	m.breakStarted(ctx, session)
	return session, err
}

// breakStarted drops stale rechecks and arms the auto-complete timer
func (m *Monitor) breakStarted(ctx context.Context, session *domain.Session) {
	m.Scheduler.Cancel(recheckKey(session.UserID))
	m.Scheduler.Cancel(delayKey(session.UserID))

	id := session.ID
	m.Scheduler.Schedule(breakEndKey(id), session.PlannedEnd(), func(ctx context.Context) error {
		_, err := m.Sessions.Complete(ctx, id)
		return err
	})

	m.logActivity(ctx, session.UserID, domain.ActivityBreakAccepted, map[string]any{
		"suggestion_id": session.SuggestionID,
		"session_id":    id,
		"minutes":       session.DurationMinutes,
	})
}

// delay withdraws the suggestion and schedules exactly one more evaluation
func (m *Monitor) delay(ctx context.Context, r Response, d time.Duration) error {
	if _, err := m.Sessions.CancelSuggestion(ctx, r.SuggestionID); err != nil {
		return err
	}
	at := m.Clock.Now().Add(d)
	m.Scheduler.Schedule(delayKey(r.UserID), at, m.evaluateTask(r.UserID))

	m.logActivity(ctx, r.UserID, domain.ActivityBreakDelayed, map[string]any{
		"suggestion_id": r.SuggestionID,
		"minutes":       int(d / time.Minute),
	})
	return nil
}
