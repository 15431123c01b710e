package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

var errDiskFull = errors.New("disk full")

type fakeSessionRepo struct {
	mu         sync.Mutex
	sessions   map[string]*domain.Session
	failWrites bool
	failReads  bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *fakeSessionRepo) CreateSession(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errDiskFull
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *fakeSessionRepo) UpdateSession(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errDiskFull
	}
	if _, ok := r.sessions[s.ID]; !ok {
		return domain.ErrNotFound
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *fakeSessionRepo) GetSession(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errDiskFull
	}
	return r.sessions[id].Clone(), nil
}

func (r *fakeSessionRepo) GetActiveSession(_ context.Context, userID int64, kind domain.SessionKind) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errDiskFull
	}
	for _, s := range r.sessions {
		if s.UserID == userID && s.Kind == kind && s.Status == domain.SessionStatusActive {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) ListSessionsByStatus(_ context.Context, status domain.SessionStatus) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errDiskFull
	}
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.Status == status {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) ListSessionsForUser(_ context.Context, userID int64, since time.Time) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && !s.StartTime.Before(since) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *fakeSessionRepo) get(id string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id].Clone()
}

type fakeSuggestionRepo struct {
	mu          sync.Mutex
	suggestions map[string]*domain.BreakSuggestion
}

func newFakeSuggestionRepo() *fakeSuggestionRepo {
	return &fakeSuggestionRepo{suggestions: make(map[string]*domain.BreakSuggestion)}
}

func (r *fakeSuggestionRepo) CreateBreakSuggestion(_ context.Context, s *domain.BreakSuggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.suggestions[s.ID] = &c
	return nil
}

func (r *fakeSuggestionRepo) UpdateBreakSuggestion(_ context.Context, s *domain.BreakSuggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.suggestions[s.ID]; !ok {
		return domain.ErrNotFound
	}
	c := *s
	r.suggestions[s.ID] = &c
	return nil
}

func (r *fakeSuggestionRepo) GetBreakSuggestion(_ context.Context, id string) (*domain.BreakSuggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.suggestions[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *fakeSuggestionRepo) GetRecentBreakSuggestions(_ context.Context, userID int64, _ int) ([]*domain.BreakSuggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BreakSuggestion
	for _, s := range r.suggestions {
		if s.UserID == userID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeStatus struct {
	mu     sync.Mutex
	sets   int
	clears int
	texts  []string
	err    error
	block  chan struct{}
	// setBlock holds SetStatus only; setEntered hears about every set as it starts.
	setBlock   chan struct{}
	setEntered chan struct{}
	// pinned is what the user sees once every call has landed.
	pinned bool
}

func (f *fakeStatus) wait(ctx context.Context) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (f *fakeStatus) SetStatus(ctx context.Context, _ int64, text, _ string, _ time.Time) error {
	f.mu.Lock()
	entered, hold := f.setEntered, f.setBlock
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if hold != nil {
		<-hold
	}
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.texts = append(f.texts, text)
	if f.err == nil {
		f.pinned = true
	}
	return f.err
}

func (f *fakeStatus) ClearStatus(ctx context.Context, _ int64) error {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	if f.err == nil {
		f.pinned = false
	}
	return f.err
}

func (f *fakeStatus) isPinned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pinned
}

func (f *fakeStatus) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets, f.clears
}

func (f *fakeStatus) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
