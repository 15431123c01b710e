package slotfinder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

type fakeAdvisor struct {
	ranking Ranking
	err     error
	delay   time.Duration
	calls   int
}

func (f *fakeAdvisor) RankSlots(ctx context.Context, _ []domain.Meeting, _ domain.ActivityRequest) (Ranking, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Ranking{}, ctx.Err()
		}
	}
	return f.ranking, f.err
}

func scenarioMeetings() []domain.Meeting {
	return []domain.Meeting{
		meeting("Standup", 9, 0, 9, 30),
		meeting("Client Call", 10, 0, 11, 0),
	}
}

func TestPlanWithoutAdvisorIsDeterministic(t *testing.T) {
	p := NewPlanner(nil, 0)
	res, err := p.Plan(context.Background(), scenarioMeetings(), request(15, domain.ActivityWalk, domain.PreferAnytime, at(9, 0)))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if res.Source != SourceDeterministic || res.Packed {
		t.Fatalf("unexpected result %+v", res)
	}
	slot, ok := res.Recommended()
	if !ok || !slot.Start.Equal(at(9, 30)) {
		t.Fatalf("expected 09:30 recommendation, got %+v", slot)
	}
	if got := res.Summary(); got != "09:30–09:45 (Between Standup and Client Call)" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestPlanUsesValidAdvisorRanking(t *testing.T) {
	advisor := &fakeAdvisor{ranking: Ranking{
		Slots: []domain.TimeSlot{{
			Start: at(11, 0), End: at(11, 15), DurationMinutes: 15,
			Kind: domain.SlotAfterLast, Description: "After Client Call", Confidence: 0.95,
			Reasoning: "longer stretch of free time",
		}},
		Insights: []string{"your mornings are busy"},
	}}
	res, err := NewPlanner(advisor, time.Second).Plan(context.Background(), scenarioMeetings(), request(15, domain.ActivityWalk, domain.PreferAnytime, at(9, 0)))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if res.Source != SourceAdvisor || len(res.Insights) != 1 || !res.Slots[0].Start.Equal(at(11, 0)) {
		t.Fatalf("expected advisor ranking, got %+v", res)
	}
}

func TestPlanFallsBackWhenAdvisorFails(t *testing.T) {
	overlapping := Ranking{Slots: []domain.TimeSlot{{
		Start: at(9, 15), End: at(9, 30), DurationMinutes: 15, Confidence: 0.9,
	}}}
	wrongLength := Ranking{Slots: []domain.TimeSlot{{
		Start: at(11, 0), End: at(11, 45), DurationMinutes: 45, Confidence: 0.9,
	}}}

	tests := []struct {
		name    string
		advisor *fakeAdvisor
	}{
		{"unavailable", &fakeAdvisor{err: domain.ErrAdvisorUnavailable}},
		{"other error", &fakeAdvisor{err: errors.New("boom")}},
		{"empty", &fakeAdvisor{}},
		{"overlaps meeting", &fakeAdvisor{ranking: overlapping}},
		{"wrong duration", &fakeAdvisor{ranking: wrongLength}},
		{"timeout", &fakeAdvisor{delay: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(tt.advisor, 20*time.Millisecond)
			res, err := p.Plan(context.Background(), scenarioMeetings(), request(15, domain.ActivityWalk, domain.PreferAnytime, at(9, 0)))
			if err != nil {
				t.Fatalf("advisor failure must not surface: %v", err)
			}
			if tt.advisor.calls != 1 {
				t.Fatalf("expected advisor to be asked once, got %d", tt.advisor.calls)
			}
			if res.Source != SourceDeterministic || !res.Slots[0].Start.Equal(at(9, 30)) {
				t.Fatalf("expected deterministic fallback, got %+v", res)
			}
		})
	}
}

func TestPlanRejectsInvalidRequestBeforeAskingAdvisor(t *testing.T) {
	advisor := &fakeAdvisor{}
	_, err := NewPlanner(advisor, time.Second).Plan(context.Background(), nil, request(0, domain.ActivityWalk, domain.PreferAnytime, at(9, 0)))
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if advisor.calls != 0 {
		t.Fatalf("advisor must not be called for invalid input")
	}
}

func TestPlanPackedDaySummary(t *testing.T) {
	req := request(30, domain.ActivityLunch, domain.PreferAnytime, at(9, 0))
	req.WorkEnd = at(17, 0)
	res, err := NewPlanner(nil, 0).Plan(context.Background(), []domain.Meeting{meeting("Offsite", 8, 0, 17, 0)}, req)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !res.Packed || res.Summary() != "Your day is packed - no free slot fits that activity today." {
		t.Fatalf("expected packed result, got %+v", res)
	}
}
