package monitor

import (
	"fmt"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

// Action is the outcome of one evaluation
type Action string

const (
	ActionOutsideHours Action = "outside_hours"
	ActionNotNeeded    Action = "not_needed"
	ActionCooldown     Action = "cooldown"
	ActionDeferred     Action = "deferred"
	ActionInFocus      Action = "in_focus"
	ActionAlerted      Action = "alerted"
)

// Decision describes what an evaluation did and why
type Decision struct {
	Action  Action
	At      time.Time
	Elapsed time.Duration
	Type    domain.BreakType
	Urgency domain.Urgency
	Reason  string
	// Meeting and RecheckAt are set for deferred decisions, FocusID and
	// RecheckAt for in_focus ones. A zero RecheckAt means the recheck was
	// too far out and was dropped.
	Meeting      string
	FocusID      string
	RecheckAt    time.Time
	SuggestionID string
}

func (d Decision) String() string {
	switch d.Action {
	case ActionAlerted:
		return fmt.Sprintf("alerted %s break (%s urgency) after %.1fh", d.Type, d.Urgency, d.Elapsed.Hours())
	case ActionDeferred:
		if d.RecheckAt.IsZero() {
			return fmt.Sprintf("deferred for %q, recheck dropped", d.Meeting)
		}
		return fmt.Sprintf("deferred for %q until %s", d.Meeting, timewindow.Format(d.RecheckAt))
	case ActionInFocus:
		if d.RecheckAt.IsZero() {
			return "held for focus session " + d.FocusID
		}
		return fmt.Sprintf("held for focus session %s until %s", d.FocusID, timewindow.Format(d.RecheckAt))
	default:
		return string(d.Action)
	}
}

type breakHistory struct {
	lastAccepted  *time.Time
	lastToday     *time.Time
	acceptedToday int
}

// summarize reduces recent suggestions to what the cycle needs. now carries
// the user's location, so "today" is the user's local day.
func summarize(suggestions []*domain.BreakSuggestion, now time.Time) breakHistory {
	var h breakHistory
	for _, s := range suggestions {
		if !s.Accepted || s.AcceptedAt == nil || s.AcceptedAt.After(now) {
			continue
		}
		at := s.AcceptedAt.In(now.Location())
		if h.lastAccepted == nil || at.After(*h.lastAccepted) {
			h.lastAccepted = &at
		}
		if timewindow.SameDay(at, now) {
			h.acceptedToday++
			if h.lastToday == nil || at.After(*h.lastToday) {
				h.lastToday = &at
			}
		}
	}
	return h
}
