// Package monitor runs the per-user proactive break cycle.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/glebk/wellness-bot/internal/clock"
	"github.com/glebk/wellness-bot/internal/domain"
	"github.com/glebk/wellness-bot/internal/schedule"
	"github.com/glebk/wellness-bot/internal/service"
	"github.com/glebk/wellness-bot/internal/slotfinder"
	"github.com/glebk/wellness-bot/internal/timewindow"
)

const historyLookbackHours = 24

// Sessions is the part of the session service the monitor drives
type Sessions interface {
	RecentBreaks(ctx context.Context, userID int64, lookbackHours int) ([]*domain.BreakSuggestion, error)
	Suggestion(ctx context.Context, suggestionID string) (*domain.BreakSuggestion, error)
	SuggestBreak(ctx context.Context, in service.SuggestBreakInput) (*domain.BreakSuggestion, error)
	AcceptSuggestion(ctx context.Context, suggestionID string) (*domain.Session, error)
	DeclineSuggestion(ctx context.Context, suggestionID string) (*domain.BreakSuggestion, error)
	CancelSuggestion(ctx context.Context, suggestionID string) (*domain.BreakSuggestion, error)
	StartBreak(ctx context.Context, userID int64, breakType domain.BreakType) (*domain.Session, error)
	Active(ctx context.Context, userID int64, kind domain.SessionKind) (*domain.Session, error)
	Complete(ctx context.Context, sessionID string) (*domain.Session, error)
	OnTransition(l service.TransitionListener)
}

// Profiles resolves per-user time zone and work hours
type Profiles interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	Location(user *domain.User) *time.Location
	WorkHours(user *domain.User) (int, int)
}

// Deps are the collaborators a Monitor needs
type Deps struct {
	Sessions  Sessions
	Profiles  Profiles
	Meetings  domain.MeetingRepository
	Activity  domain.ActivityRepository
	Notifier  domain.Notifier
	Scheduler *schedule.Scheduler
	Clock     clock.Clock
}

// Monitor evaluates break need for tracked users and reacts to their answers
type Monitor struct {
	Deps
	cfg Config

	mu      sync.Mutex
	workers map[int64]context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// New creates a Monitor and subscribes it to session transitions
func New(deps Deps, cfg Config) *Monitor {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = schedule.New(deps.Clock)
	}
	m := &Monitor{
		Deps:    deps,
		cfg:     cfg.withDefaults(),
		workers: make(map[int64]context.CancelFunc),
	}
	deps.Sessions.OnTransition(m.onTransition)
	return m
}

// Track starts the periodic cycle for a user. Tracking twice is a no-op.
func (m *Monitor) Track(ctx context.Context, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if _, ok := m.workers[userID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.workers[userID] = cancel
	m.wg.Add(1)
	go m.run(ctx, userID)
}

// Untrack stops the periodic cycle and pending rechecks for a user
func (m *Monitor) Untrack(userID int64) {
	m.mu.Lock()
	cancel, ok := m.workers[userID]
	delete(m.workers, userID)
	m.mu.Unlock()
	if ok {
		cancel()
	}
	m.Scheduler.Cancel(recheckKey(userID))
	m.Scheduler.Cancel(delayKey(userID))
}

// Tracked reports whether a user has a running cycle
func (m *Monitor) Tracked(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.workers[userID]
	return ok
}

// Stop ends every worker and cancels all pending timers
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	for id, cancel := range m.workers {
		cancel()
		delete(m.workers, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.Scheduler.Stop()
}

func (m *Monitor) run(ctx context.Context, userID int64) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			decision, err := m.Evaluate(ctx, userID)
			if err != nil {
				log.Printf("monitor: evaluation for user %d failed: %v", userID, err)
				continue
			}
			if decision.Action == ActionAlerted || decision.Action == ActionDeferred {
				log.Printf("monitor: user %d: %s", userID, decision)
			}
		}
	}
}

// Evaluate runs one break-need check for the user at the current time
func (m *Monitor) Evaluate(ctx context.Context, userID int64) (Decision, error) {
	user, err := m.Profiles.GetUser(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	loc := m.Profiles.Location(user)
	startHour, endHour := m.workHours(user)
	now := m.Clock.Now().In(loc)

	if !m.cfg.workday(now.Weekday()) || now.Hour() < startHour || now.Hour() >= endHour {
		return Decision{Action: ActionOutsideHours, At: now}, nil
	}

	breaks, err := m.Sessions.RecentBreaks(ctx, userID, historyLookbackHours)
	if err != nil {
		return Decision{}, err
	}
	history := summarize(breaks, now)

	if history.lastAccepted != nil && now.Sub(*history.lastAccepted) < m.cfg.Cooldown {
		return Decision{Action: ActionCooldown, At: now, Elapsed: now.Sub(*history.lastAccepted)}, nil
	}

	anchor := timewindow.On(now, startHour, 0)
	if history.lastToday != nil {
		anchor = *history.lastToday
	}
	elapsed := now.Sub(anchor)
	if elapsed < m.cfg.Threshold {
		return Decision{Action: ActionNotNeeded, At: now, Elapsed: elapsed}, nil
	}

	decision := Decision{
		At:      now,
		Elapsed: elapsed,
		Type:    domain.BreakRotation[history.acceptedToday%len(domain.BreakRotation)],
		Urgency: m.urgency(elapsed),
	}
	decision.Reason = fmt.Sprintf("You've been working for %.1f hours without a break", elapsed.Hours())

	focus, err := m.Sessions.Active(ctx, userID, domain.SessionKindFocus)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to get focus session: %w", err)
	}
	if focus != nil {
		return m.holdForFocus(ctx, userID, decision, focus), nil
	}

	meetings, err := m.Meetings.GetMeetingsForUserOnDate(ctx, userID, now)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: failed to get meetings: %w", domain.ErrStorageUnavailable, err)
	}
	if meeting, busy := slotfinder.FindConflict(meetings, now, m.cfg.ConflictLookahead); busy {
		return m.deferAlert(ctx, userID, decision, meeting), nil
	}

	return m.alert(ctx, userID, decision)
}

func (m *Monitor) workHours(user *domain.User) (int, int) {
	if user == nil {
		return m.cfg.WorkStartHour, m.cfg.WorkEndHour
	}
	return m.Profiles.WorkHours(user)
}

func (m *Monitor) urgency(elapsed time.Duration) domain.Urgency {
	switch {
	case elapsed < m.cfg.MediumAfter:
		return domain.UrgencyLow
	case elapsed < m.cfg.HighAfter:
		return domain.UrgencyMedium
	default:
		return domain.UrgencyHigh
	}
}

// deferAlert replaces any pending recheck with one shortly after the
// conflicting meeting ends. Rechecks further out than MaxDefer are dropped.
func (m *Monitor) deferAlert(ctx context.Context, userID int64, decision Decision, meeting domain.Meeting) Decision {
	decision.Action = ActionDeferred
	decision.Meeting = meeting.Title

	recheckAt := meeting.EndTime.Add(m.cfg.RecheckDelay)
	if recheckAt.Sub(decision.At) > m.cfg.MaxDefer {
		log.Printf("monitor: user %d busy in %q until %s, recheck dropped", userID, meeting.Title, meeting.EndTime)
		m.Scheduler.Cancel(recheckKey(userID))
	} else {
		decision.RecheckAt = recheckAt
		m.Scheduler.Schedule(recheckKey(userID), recheckAt, m.evaluateTask(userID))
	}

	m.logActivity(ctx, userID, domain.ActivityBreakDeferred, map[string]any{
		"meeting":    meeting.Title,
		"break_type": string(decision.Type),
		"recheck_at": decision.RecheckAt,
	})
	return decision
}

// holdForFocus keeps the alert back until the focus session is over
func (m *Monitor) holdForFocus(ctx context.Context, userID int64, decision Decision, focus *domain.Session) Decision {
	decision.Action = ActionInFocus
	decision.FocusID = focus.ID

	recheckAt := focus.PlannedEnd().Add(m.cfg.RecheckDelay)
	if recheckAt.Sub(decision.At) > m.cfg.MaxDefer {
		m.Scheduler.Cancel(recheckKey(userID))
	} else {
		decision.RecheckAt = recheckAt
		m.Scheduler.Schedule(recheckKey(userID), recheckAt, m.evaluateTask(userID))
	}

	m.logActivity(ctx, userID, domain.ActivityBreakDeferred, map[string]any{
		"focus_session": focus.ID,
		"break_type":    string(decision.Type),
		"recheck_at":    decision.RecheckAt,
	})
	return decision
}

func (m *Monitor) alert(ctx context.Context, userID int64, decision Decision) (Decision, error) {
	suggestion, err := m.Sessions.SuggestBreak(ctx, service.SuggestBreakInput{
		UserID:  userID,
		Type:    decision.Type,
		Message: breakMessage(decision.Type),
		Reason:  decision.Reason,
		Urgency: decision.Urgency,
	})
	if err != nil {
		return Decision{}, err
	}
	decision.SuggestionID = suggestion.ID

	notifyCtx, cancel := context.WithTimeout(ctx, m.cfg.NotifyTimeout)
	defer cancel()
	err = m.Notifier.SendBreakAlert(notifyCtx, domain.BreakAlert{
		UserID:       userID,
		SuggestionID: suggestion.ID,
		Reason:       decision.Reason,
		Type:         decision.Type,
		Urgency:      decision.Urgency,
		Actions:      domain.AlertActions,
	})
	if err != nil {
		if _, cerr := m.Sessions.CancelSuggestion(ctx, suggestion.ID); cerr != nil {
			log.Printf("monitor: failed to withdraw suggestion %s: %v", suggestion.ID, cerr)
		}
		return Decision{}, fmt.Errorf("failed to send break alert: %w", err)
	}

	decision.Action = ActionAlerted
	m.logActivity(ctx, userID, domain.ActivityBreakSuggested, map[string]any{
		"suggestion_id": suggestion.ID,
		"break_type":    string(decision.Type),
		"urgency":       string(decision.Urgency),
		"elapsed_hours": decision.Elapsed.Hours(),
	})
	return decision, nil
}

func (m *Monitor) evaluateTask(userID int64) schedule.Func {
	return func(ctx context.Context) error {
		_, err := m.Evaluate(ctx, userID)
		return err
	}
}

// onTransition drops the auto-complete timer of a session that already ended
func (m *Monitor) onTransition(_ context.Context, session domain.Session) {
	if session.Status.Terminal() {
		m.Scheduler.Cancel(breakEndKey(session.ID))
	}
}

func (m *Monitor) logActivity(ctx context.Context, userID int64, kind string, details map[string]any) {
	if m.Activity == nil {
		return
	}
	entry := &domain.ActivityLog{
		UserID:    userID,
		Type:      kind,
		Details:   details,
		CreatedAt: m.Clock.Now(),
	}
	if err := m.Activity.LogActivity(ctx, entry); err != nil {
		log.Printf("monitor: failed to log %s for user %d: %v", kind, userID, err)
	}
}

func recheckKey(userID int64) string { return fmt.Sprintf("recheck:%d", userID) }

func delayKey(userID int64) string { return fmt.Sprintf("delay:%d", userID) }

func breakEndKey(sessionID string) string { return "break-end:" + sessionID }

func breakMessage(t domain.BreakType) string {
	switch t {
	case domain.BreakHydration:
		return "Time for a glass of water 💧"
	case domain.BreakStretch:
		return "Stand up and stretch for a few minutes 🧘"
	case domain.BreakWalk:
		return "Take a 15-minute walk 🚶"
	case domain.BreakMeditation:
		return "Take 10 minutes to breathe and reset 🌿"
	default:
		return "Time for a short break"
	}
}
