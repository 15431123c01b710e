package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

type syncOp int

const (
	syncNone syncOp = iota
	syncSet
	syncClear
)

// callWithTimeout bounds an external call even when the collaborator ignores
// ctx. A call that outlives the budget keeps running in the background; its
// late result goes to late when set and is logged otherwise.
func callWithTimeout(ctx context.Context, budget time.Duration, name string, fn func(context.Context) error, late func(error)) error {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		go func() {
			err := <-done
			if late != nil {
				late(err)
				return
			}
			if err != nil {
				log.Printf("service: late %s result: %v", name, err)
			}
		}()
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

// statusFor returns the presence text and icon shown while a session runs.
func statusFor(session *domain.Session) (string, string) {
	until := session.PlannedEnd().Format("15:04")
	if session.Kind == domain.SessionKindFocus {
		return "Focus mode until " + until, "🎯"
	}
	return "On a break until " + until, "☕"
}

// syncStatus applies op to the presence indicator. Failures are logged and
// reported as false; they never fail the transition. late receives the
// outcome of a call that finished after its budget.
func (s *SessionService) syncStatus(ctx context.Context, session *domain.Session, op syncOp, late func(error)) bool {
	if op == syncNone || s.status == nil {
		return true
	}

	err := callWithTimeout(ctx, s.cfg.SyncTimeout, "status sync", func(ctx context.Context) error {
		if op == syncSet {
			text, icon := statusFor(session)
			return s.status.SetStatus(ctx, session.UserID, text, icon, session.PlannedEnd())
		}
		return s.status.ClearStatus(ctx, session.UserID)
	}, late)
	if err != nil {
		log.Printf("service: %v for session %s (user %d): %v", domain.ErrSyncFailed, session.ID, session.UserID, err)
		return false
	}
	return true
}

func (s *SessionService) store(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := callWithTimeout(ctx, s.cfg.StoreTimeout, name, fn, nil); err != nil {
		return storageErr(name, err)
	}
	return nil
}
