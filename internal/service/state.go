package service

import (
	"context"
	"sync"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

// userState is the authoritative in-memory view of one user's sessions.
// mu serialises every guard check with the change it guards.
type userState struct {
	mu       sync.Mutex
	hydrated bool
	sessions map[string]*domain.Session
	// handled maps claimed suggestion IDs to the claim time.
	handled  map[string]time.Time
}

func newUserState() *userState {
	return &userState{
		sessions: make(map[string]*domain.Session),
		handled:  make(map[string]time.Time),
	}
}

// activeFocus returns the running focus session other than exceptID.
func (st *userState) activeFocus(exceptID string) *domain.Session {
	for id, sess := range st.sessions {
		if id != exceptID && sess.Kind == domain.SessionKindFocus && sess.Status == domain.SessionStatusActive {
			return sess
		}
	}
	return nil
}

func (st *userState) active(kind domain.SessionKind) *domain.Session {
	var found *domain.Session
	for _, sess := range st.sessions {
		if sess.Kind == kind && sess.Status == domain.SessionStatusActive {
			if found == nil || sess.StartTime.After(found.StartTime) {
				found = sess
			}
		}
	}
	return found
}

// adopt inserts a stored session unless memory already knows it.
func (st *userState) adopt(sess *domain.Session) {
	if _, ok := st.sessions[sess.ID]; !ok {
		st.sessions[sess.ID] = sess.Clone()
	}
}

// prune drops terminal sessions that ended before cutoff and suggestion
// claims made before it. A stored claim is no longer pending, which keeps
// it from being claimed twice.
func (st *userState) prune(cutoff time.Time) []string {
	for id, at := range st.handled {
		if at.Before(cutoff) {
			delete(st.handled, id)
		}
	}
	var dropped []string
	for id, sess := range st.sessions {
		if sess.Status.Terminal() && sess.EndTime != nil && sess.EndTime.Before(cutoff) {
			delete(st.sessions, id)
			dropped = append(dropped, id)
		}
	}
	return dropped
}

func (s *SessionService) userState(userID int64) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		st = newUserState()
		s.users[userID] = st
	}
	return st
}

func (s *SessionService) remember(sessionID string, userID int64) {
	s.mu.Lock()
	s.index[sessionID] = userID
	s.mu.Unlock()
}

func (s *SessionService) forget(ids []string) {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.index, id)
	}
	s.mu.Unlock()
}

// hydrate loads the user's active focus session from the store once, so the
// guard also sees sessions started before this process.
func (s *SessionService) hydrate(ctx context.Context, userID int64) (*userState, error) {
	st := s.userState(userID)

	st.mu.Lock()
	done := st.hydrated
	st.mu.Unlock()
	if done {
		return st, nil
	}

	var active *domain.Session
	err := s.store(ctx, "get active session", func(ctx context.Context) error {
		var err error
		active, err = s.sessions.GetActiveSession(ctx, userID, domain.SessionKindFocus)
		return err
	})
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	if !st.hydrated {
		if active != nil {
			st.adopt(active)
		}
		st.hydrated = true
	}
	st.mu.Unlock()
	if active != nil {
		s.remember(active.ID, userID)
	}
	return st, nil
}

// lookup finds the state holding sessionID, loading the session from the
// store when this process has not seen it.
func (s *SessionService) lookup(ctx context.Context, sessionID string) (*userState, error) {
	s.mu.Lock()
	userID, ok := s.index[sessionID]
	s.mu.Unlock()
	if ok {
		return s.hydrate(ctx, userID)
	}

	var stored *domain.Session
	err := s.store(ctx, "get session", func(ctx context.Context) error {
		var err error
		stored, err = s.sessions.GetSession(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, domain.ErrNotFound
	}

	st, err := s.hydrate(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.adopt(stored)
	st.mu.Unlock()
	s.remember(stored.ID, stored.UserID)
	return st, nil
}
