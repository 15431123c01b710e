package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

func TestAcceptSuggestionStartsBreak(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	suggestion, err := h.svc.SuggestBreak(ctx, SuggestBreakInput{
		UserID: 1, Type: domain.BreakWalk, Reason: "2.5h of work", Urgency: domain.UrgencyMedium,
	})
	if err != nil {
		t.Fatalf("SuggestBreak() error = %v", err)
	}
	if suggestion.Status != domain.SuggestionPending {
		t.Fatalf("status = %s, want pending", suggestion.Status)
	}

	session, err := h.svc.AcceptSuggestion(ctx, suggestion.ID)
	if err != nil {
		t.Fatalf("AcceptSuggestion() error = %v", err)
	}
	if session.Kind != domain.SessionKindBreak || session.Status != domain.SessionStatusActive {
		t.Errorf("session = %+v, want active break", session)
	}
	if session.DurationMinutes != 15 || session.SuggestionID != suggestion.ID {
		t.Errorf("duration=%d suggestion=%q", session.DurationMinutes, session.SuggestionID)
	}

	stored, _ := h.suggestions.GetBreakSuggestion(ctx, suggestion.ID)
	if !stored.Accepted || stored.AcceptedAt == nil || !stored.AcceptedAt.Equal(monday) {
		t.Errorf("stored suggestion = %+v", stored)
	}

	if _, err := h.svc.AcceptSuggestion(ctx, suggestion.ID); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("second AcceptSuggestion() error = %v, want ErrInvalidRequest", err)
	}
}

func TestDeclineAndCancelSuggestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name   string
		act    func(context.Context, string) (*domain.BreakSuggestion, error)
		status domain.SuggestionStatus
	}{
		{"decline", h.svc.DeclineSuggestion, domain.SuggestionDeclined},
		{"cancel", h.svc.CancelSuggestion, domain.SuggestionCancelled},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, err := h.svc.SuggestBreak(ctx, SuggestBreakInput{UserID: 1, Type: domain.BreakStretch})
			if err != nil {
				t.Fatalf("SuggestBreak() error = %v", err)
			}
			got, err := tc.act(ctx, s.ID)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got.Status != tc.status || got.Accepted {
				t.Errorf("suggestion = %+v, want %s", got, tc.status)
			}
		})
	}
}

func TestAcceptUnknownSuggestion(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.AcceptSuggestion(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStartBreakRecordsAcceptedSuggestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.svc.StartBreak(ctx, 4, domain.BreakMeditation)
	if err != nil {
		t.Fatalf("StartBreak() error = %v", err)
	}
	if session.DurationMinutes != 10 {
		t.Errorf("duration = %d, want 10", session.DurationMinutes)
	}

	recent, err := h.svc.RecentBreaks(ctx, 4, 3)
	if err != nil {
		t.Fatalf("RecentBreaks() error = %v", err)
	}
	if len(recent) != 1 || !recent[0].Accepted {
		t.Errorf("recent = %+v, want one accepted suggestion", recent)
	}
}

func TestSweepPrunesOldSuggestionClaims(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.svc.SuggestBreak(ctx, SuggestBreakInput{UserID: 1, Type: domain.BreakHydration})
	if err != nil {
		t.Fatalf("SuggestBreak() error = %v", err)
	}
	if _, err := h.svc.DeclineSuggestion(ctx, s.ID); err != nil {
		t.Fatalf("DeclineSuggestion() error = %v", err)
	}
	claims := func() int {
		st := h.svc.userState(1)
		st.mu.Lock()
		defer st.mu.Unlock()
		return len(st.handled)
	}
	if n := claims(); n != 1 {
		t.Fatalf("claims = %d, want 1", n)
	}

	h.clock.Advance(terminalRetention + time.Minute)
	if _, err := h.svc.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n := claims(); n != 0 {
		t.Errorf("claims after sweep = %d, want 0", n)
	}
	if _, err := h.svc.DeclineSuggestion(ctx, s.ID); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("second decline error = %v, want ErrInvalidRequest", err)
	}
}
