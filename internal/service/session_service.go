package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glebk/wellness-bot/internal/clock"
	"github.com/glebk/wellness-bot/internal/domain"
)

const (
	defaultSyncTimeout  = time.Second
	defaultStoreTimeout = time.Second
	// terminal sessions stay in memory this long so repeated ends stay no-ops
	terminalRetention = time.Hour
)

// Config holds the external call budgets of the session service
type Config struct {
	SyncTimeout  time.Duration
	StoreTimeout time.Duration
}

// TransitionListener is called after a session changes state
type TransitionListener func(ctx context.Context, session domain.Session)

// CreateSessionInput describes a new focus or break session
type CreateSessionInput struct {
	UserID          int64
	Kind            domain.SessionKind
	DurationMinutes int
	// StartTime zero means now.
	StartTime    time.Time
	SuggestionID string
}

// SessionService owns the focus and break session lifecycle
type SessionService struct {
	sessions    domain.SessionRepository
	suggestions domain.SuggestionRepository
	status      domain.StatusSync
	clock       clock.Clock
	cfg         Config
	newID       func() string

	mu    sync.Mutex
	users map[int64]*userState
	index map[string]int64

	listenersMu sync.RWMutex
	listeners   []TransitionListener
}

// NewSessionService creates a new session service
func NewSessionService(
	sessions domain.SessionRepository,
	suggestions domain.SuggestionRepository,
	status domain.StatusSync,
	clk clock.Clock,
	cfg Config,
) *SessionService {
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaultSyncTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &SessionService{
		sessions:    sessions,
		suggestions: suggestions,
		status:      status,
		clock:       clk,
		cfg:         cfg,
		newID:       uuid.NewString,
		users:       make(map[int64]*userState),
		index:       make(map[string]int64),
	}
}

// OnTransition registers a listener for session state changes
func (s *SessionService) OnTransition(l TransitionListener) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersMu.Unlock()
}

func (s *SessionService) notify(ctx context.Context, session *domain.Session) {
	s.listenersMu.RLock()
	listeners := append([]TransitionListener(nil), s.listeners...)
	s.listenersMu.RUnlock()
	for _, l := range listeners {
		l(ctx, *session.Clone())
	}
}

// Create starts a session now or schedules it for a future start.
// A storage failure still returns the session alongside the error.
func (s *SessionService) Create(ctx context.Context, in CreateSessionInput) (*domain.Session, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown session kind %q", domain.ErrInvalidRequest, in.Kind)
	}
	if in.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", domain.ErrInvalidRequest, in.DurationMinutes)
	}

	st, err := s.hydrate(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	start := in.StartTime
	if start.IsZero() {
		start = now
	}
	status := domain.SessionStatusActive
	if start.After(now) {
		status = domain.SessionStatusScheduled
	}

	session := &domain.Session{
		ID:              s.newID(),
		UserID:          in.UserID,
		Kind:            in.Kind,
		DurationMinutes: in.DurationMinutes,
		StartTime:       start,
		Status:          status,
		StatusSynced:    true,
		SuggestionID:    in.SuggestionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	st.mu.Lock()
	if in.Kind == domain.SessionKindFocus && status == domain.SessionStatusActive {
		if running := st.activeFocus(""); running != nil {
			err := fmt.Errorf("%w: session %s is running until %s",
				domain.ErrActiveSessionConflict, running.ID, running.PlannedEnd().Format("15:04"))
			st.mu.Unlock()
			return nil, err
		}
	}
	st.sessions[session.ID] = session
	snapshot := session.Clone()
	st.mu.Unlock()
	s.remember(session.ID, session.UserID)

	if status == domain.SessionStatusActive {
		snapshot = s.applySync(ctx, st, snapshot, syncSet)
	}

	if snapshot.Status.Terminal() {
		// ended while the status was being set; that transition may have stored it already
		err = s.persist(ctx, snapshot)
	} else {
		err = s.store(ctx, "create session", func(ctx context.Context) error {
			return s.sessions.CreateSession(ctx, snapshot.Clone())
		})
		if err != nil {
			log.Printf("service: session %s kept in memory: %v", snapshot.ID, err)
		}
	}

	s.notify(ctx, snapshot)
	return snapshot, err
}

// Activate moves a due scheduled session to active. Calling it early, twice
// or on a finished session does nothing.
func (s *SessionService) Activate(ctx context.Context, id string) (*domain.Session, error) {
	return s.transition(ctx, id, func(st *userState, sess *domain.Session, now time.Time) (bool, syncOp, error) {
		if sess.Status != domain.SessionStatusScheduled || now.Before(sess.StartTime) {
			return false, syncNone, nil
		}
		if sess.Kind == domain.SessionKindFocus {
			if running := st.activeFocus(sess.ID); running != nil {
				return false, syncNone, fmt.Errorf("%w: session %s is already running",
					domain.ErrActiveSessionConflict, running.ID)
			}
		}
		sess.Status = domain.SessionStatusActive
		return true, syncSet, nil
	})
}

// Complete finishes an active session. Completing a finished session is a no-op.
func (s *SessionService) Complete(ctx context.Context, id string) (*domain.Session, error) {
	return s.transition(ctx, id, func(_ *userState, sess *domain.Session, now time.Time) (bool, syncOp, error) {
		switch {
		case sess.Status.Terminal():
			return false, syncNone, nil
		case sess.Status != domain.SessionStatusActive:
			return false, syncNone, fmt.Errorf("%w: session %s has not started", domain.ErrInvalidRequest, sess.ID)
		}
		sess.Status = domain.SessionStatusCompleted
		sess.EndTime = &now
		return true, syncClear, nil
	})
}

// Cancel stops a scheduled or active session. Cancelling a finished session is a no-op.
func (s *SessionService) Cancel(ctx context.Context, id string) (*domain.Session, error) {
	return s.transition(ctx, id, func(_ *userState, sess *domain.Session, now time.Time) (bool, syncOp, error) {
		if sess.Status.Terminal() {
			return false, syncNone, nil
		}
		op := syncNone
		// an unsynced session may carry a set that is still landing
		if sess.StatusSet || !sess.StatusSynced {
			op = syncClear
		}
		sess.Status = domain.SessionStatusCancelled
		sess.EndTime = &now
		return true, op, nil
	})
}

// EndActive completes the user's running session of the given kind
func (s *SessionService) EndActive(ctx context.Context, userID int64, kind domain.SessionKind) (*domain.Session, error) {
	st, err := s.hydrate(ctx, userID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	running := st.active(kind)
	st.mu.Unlock()
	if running == nil {
		return nil, fmt.Errorf("no active %s session: %w", kind, domain.ErrNotFound)
	}
	return s.Complete(ctx, running.ID)
}

// Active returns the user's running session of the given kind, or nil
func (s *SessionService) Active(ctx context.Context, userID int64, kind domain.SessionKind) (*domain.Session, error) {
	st, err := s.hydrate(ctx, userID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active(kind).Clone(), nil
}

// Get returns a session by ID
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	st, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

// RetrySync re-applies the presence update that last failed for a session
func (s *SessionService) RetrySync(ctx context.Context, id string) (*domain.Session, error) {
	st, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	sess, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	snapshot := sess.Clone()
	st.mu.Unlock()
	if snapshot.StatusSynced {
		return snapshot, nil
	}

	op := syncClear
	if snapshot.Status == domain.SessionStatusActive {
		op = syncSet
	}
	snapshot = s.applySync(ctx, st, snapshot, op)
	return snapshot, s.persist(ctx, snapshot)
}

// ListSessions returns the user's sessions that started after since
func (s *SessionService) ListSessions(ctx context.Context, userID int64, since time.Time) ([]*domain.Session, error) {
	var sessions []*domain.Session
	err := s.store(ctx, "list sessions", func(ctx context.Context) error {
		var err error
		sessions, err = s.sessions.ListSessionsForUser(ctx, userID, since)
		return err
	})
	return sessions, err
}

// Sweep activates due scheduled sessions and completes sessions whose
// planned duration has elapsed. It returns the sessions it changed.
func (s *SessionService) Sweep(ctx context.Context) ([]*domain.Session, error) {
	for _, status := range []domain.SessionStatus{domain.SessionStatusScheduled, domain.SessionStatusActive} {
		var stored []*domain.Session
		err := s.store(ctx, "list sessions by status", func(ctx context.Context) error {
			var err error
			stored, err = s.sessions.ListSessionsByStatus(ctx, status)
			return err
		})
		if err != nil {
			log.Printf("service: sweep continues with in-memory sessions: %v", err)
			continue
		}
		for _, sess := range stored {
			st := s.userState(sess.UserID)
			st.mu.Lock()
			st.adopt(sess)
			st.mu.Unlock()
			s.remember(sess.ID, sess.UserID)
		}
	}

	now := s.clock.Now()
	var toActivate, toComplete []string
	s.mu.Lock()
	states := make([]*userState, 0, len(s.users))
	for _, st := range s.users {
		states = append(states, st)
	}
	s.mu.Unlock()

	for _, st := range states {
		st.mu.Lock()
		for id, sess := range st.sessions {
			switch {
			case sess.Status == domain.SessionStatusScheduled && !now.Before(sess.StartTime):
				toActivate = append(toActivate, id)
			case sess.Status == domain.SessionStatusActive && !now.Before(sess.PlannedEnd()):
				toComplete = append(toComplete, id)
			}
		}
		dropped := st.prune(now.Add(-terminalRetention))
		st.mu.Unlock()
		s.forget(dropped)
	}

	var changed []*domain.Session
	var firstErr error
	collect := func(sess *domain.Session, err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if sess != nil {
			changed = append(changed, sess)
		}
	}
	for _, id := range toActivate {
		collect(s.Activate(ctx, id))
	}
	for _, id := range toComplete {
		collect(s.Complete(ctx, id))
	}
	return changed, firstErr
}

type transitionFunc func(st *userState, sess *domain.Session, now time.Time) (changed bool, op syncOp, err error)

// transition applies fn under the user's lock, then syncs and persists the
// result outside of it. Unchanged sessions are returned without side effects.
func (s *SessionService) transition(ctx context.Context, id string, fn transitionFunc) (*domain.Session, error) {
	st, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	changed, op, err := fn(st, sess, now)
	if changed {
		sess.UpdatedAt = now
	}
	snapshot := sess.Clone()
	st.mu.Unlock()

	if err != nil || !changed {
		return snapshot, err
	}

	snapshot = s.applySync(ctx, st, snapshot, op)
	err = s.persist(ctx, snapshot)
	s.notify(ctx, snapshot)
	return snapshot, err
}

// applySync performs the presence update and records its outcome on the
// in-memory session. A set that lands after the session ended is cleared
// again so the status never outlives it.
func (s *SessionService) applySync(ctx context.Context, st *userState, snapshot *domain.Session, op syncOp) *domain.Session {
	if op == syncNone {
		return snapshot
	}
	var late func(error)
	if op == syncSet {
		id := snapshot.ID
		late = func(err error) {
			if err != nil {
				log.Printf("service: late status set for session %s: %v", id, err)
				return
			}
			s.setLanded(context.Background(), st, id)
		}
	}
	ok := s.syncStatus(ctx, snapshot, op, late)

	st.mu.Lock()
	sess, found := st.sessions[snapshot.ID]
	if !found {
		sess = snapshot
	}
	stale := ok && op == syncSet && sess.Status.Terminal()
	if !stale {
		sess.StatusSynced = ok
		if ok {
			sess.StatusSet = op == syncSet
		}
	}
	out := sess.Clone()
	st.mu.Unlock()

	if stale {
		return s.clearEnded(ctx, st, out)
	}
	return out
}

// setLanded records a status set that finished after its budget
func (s *SessionService) setLanded(ctx context.Context, st *userState, id string) {
	st.mu.Lock()
	sess, found := st.sessions[id]
	if !found {
		st.mu.Unlock()
		return
	}
	if !sess.Status.Terminal() {
		sess.StatusSet = true
		sess.StatusSynced = true
		st.mu.Unlock()
		return
	}
	snapshot := sess.Clone()
	st.mu.Unlock()

	log.Printf("service: status set for session %s landed after it ended, clearing", id)
	s.clearEnded(ctx, st, snapshot)
}

// clearEnded clears the presence of a session that already ended
func (s *SessionService) clearEnded(ctx context.Context, st *userState, snapshot *domain.Session) *domain.Session {
	ok := s.syncStatus(ctx, snapshot, syncClear, nil)

	st.mu.Lock()
	defer st.mu.Unlock()
	sess, found := st.sessions[snapshot.ID]
	if !found {
		sess = snapshot
	}
	sess.StatusSet = false
	sess.StatusSynced = ok
	return sess.Clone()
}

func (s *SessionService) persist(ctx context.Context, snapshot *domain.Session) error {
	err := s.store(ctx, "update session", func(ctx context.Context) error {
		err := s.sessions.UpdateSession(ctx, snapshot.Clone())
		if errors.Is(err, domain.ErrNotFound) {
			// the initial insert failed earlier
			return s.sessions.CreateSession(ctx, snapshot.Clone())
		}
		return err
	})
	if err != nil {
		log.Printf("service: session %s state not persisted: %v", snapshot.ID, err)
	}
	return err
}
