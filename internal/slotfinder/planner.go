package slotfinder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

// Result sources
const (
	SourceAdvisor       = "advisor"
	SourceDeterministic = "deterministic"
)

const defaultAdvisorTimeout = 3 * time.Second

// Ranking is what a narrative advisor returns.
type Ranking struct {
	Slots    []domain.TimeSlot `json:"slots"`
	Insights []string          `json:"insights"`
}

// Advisor produces a richer, reasoned ranking of slots. Implementations return
// domain.ErrAdvisorUnavailable when they cannot answer.
type Advisor interface {
	RankSlots(ctx context.Context, meetings []domain.Meeting, req domain.ActivityRequest) (Ranking, error)
}

// Result is the outcome of a slot search.
type Result struct {
	Slots    []domain.TimeSlot `json:"slots"`
	Insights []string          `json:"insights,omitempty"`
	Source   string            `json:"source"`
	Packed   bool              `json:"packed"`
}

// Recommended returns the first slot, if any.
func (r Result) Recommended() (domain.TimeSlot, bool) {
	if len(r.Slots) == 0 {
		return domain.TimeSlot{}, false
	}
	return r.Slots[0], true
}

// Summary is a one-line human answer for the result.
func (r Result) Summary() string {
	slot, ok := r.Recommended()
	if !ok {
		return "Your day is packed - no free slot fits that activity today."
	}
	return fmt.Sprintf("%s (%s)", timewindow.FormatRange(slot.Start, slot.End), slot.Description)
}

// Planner asks the optional advisor first and always falls back to Find.
type Planner struct {
	advisor Advisor
	timeout time.Duration
}

// NewPlanner creates a Planner. advisor may be nil.
func NewPlanner(advisor Advisor, timeout time.Duration) *Planner {
	if timeout <= 0 {
		timeout = defaultAdvisorTimeout
	}
	return &Planner{advisor: advisor, timeout: timeout}
}

// Plan returns ranked slots for req. Only invalid requests produce an error;
// advisor failures are logged and replaced by the deterministic result.
func (p *Planner) Plan(ctx context.Context, meetings []domain.Meeting, req domain.ActivityRequest) (Result, error) {
	req, err := Normalize(req)
	if err != nil {
		return Result{}, err
	}

	if p.advisor != nil {
		ranking, err := p.askAdvisor(ctx, meetings, req)
		if err == nil {
			return Result{Slots: ranking.Slots, Insights: ranking.Insights, Source: SourceAdvisor}, nil
		}
		log.Printf("slotfinder: advisor fallback: %v", err)
	}

	slots, err := Find(meetings, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Slots: slots, Source: SourceDeterministic, Packed: len(slots) == 0}, nil
}

func (p *Planner) askAdvisor(ctx context.Context, meetings []domain.Meeting, req domain.ActivityRequest) (Ranking, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ranking, err := p.advisor.RankSlots(ctx, meetings, req)
	if err != nil {
		if errors.Is(err, domain.ErrAdvisorUnavailable) {
			return Ranking{}, err
		}
		return Ranking{}, fmt.Errorf("%w: %v", domain.ErrAdvisorUnavailable, err)
	}
	if err := validateRanking(ranking, meetings, req); err != nil {
		return Ranking{}, fmt.Errorf("%w: malformed ranking: %v", domain.ErrAdvisorUnavailable, err)
	}
	return ranking, nil
}

// validateRanking holds advisor output to the same guarantees Find gives.
func validateRanking(r Ranking, meetings []domain.Meeting, req domain.ActivityRequest) error {
	if len(r.Slots) == 0 {
		return errors.New("no slots")
	}
	work := timewindow.Window{Start: req.WorkStart, End: req.WorkEnd}
	for i, slot := range r.Slots {
		w := timewindow.Window{Start: slot.Start, End: slot.End}
		if !slot.End.After(slot.Start) {
			return fmt.Errorf("slot %d ends before it starts", i)
		}
		if w.Minutes() != req.DurationMinutes || slot.End.Sub(slot.Start) != req.Duration() {
			return fmt.Errorf("slot %d lasts %d minutes, want %d", i, w.Minutes(), req.DurationMinutes)
		}
		if !work.Covers(w) {
			return fmt.Errorf("slot %d is outside the work window", i)
		}
		if slot.Confidence < 0.1 || slot.Confidence > 1.0 {
			return fmt.Errorf("slot %d confidence %.2f out of range", i, slot.Confidence)
		}
		for _, m := range meetings {
			if timewindow.Overlaps(w, window(m)) {
				return fmt.Errorf("slot %d overlaps %q", i, m.Title)
			}
		}
	}
	return nil
}
