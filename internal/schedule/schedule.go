// Package schedule runs delayed, keyed, cancellable tasks. Scheduling a key
// that is already pending supersedes the earlier task.
package schedule

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/glebk/wellness-bot/internal/clock"
)

// ErrCancelled is reported by tasks that were cancelled or superseded.
var ErrCancelled = errors.New("task cancelled")

// Func is the work a task performs when it fires.
type Func func(ctx context.Context) error

type state int

const (
	statePending state = iota
	stateRunning
	stateDone
)

// Task is a handle to a scheduled piece of work.
type Task struct {
	key   string
	runAt time.Time
	fn    Func
	timer *time.Timer
	owner *Scheduler

	done  chan struct{}
	state state
	err   error
}

// Key returns the task's key.
func (t *Task) Key() string { return t.key }

// RunAt returns when the task is due.
func (t *Task) RunAt() time.Time { return t.runAt }

// Done is closed once the task ran or was cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task outcome once Done is closed.
func (t *Task) Err() error {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.err
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the task if it has not started. It reports whether it did.
func (t *Task) Cancel() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.owner.cancelLocked(t)
}

// Scheduler owns a set of keyed timers.
type Scheduler struct {
	mu     sync.Mutex
	clock  clock.Clock
	tasks  map[string]*Task
	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// New creates a Scheduler measuring delays with clk.
func New(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.System{}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		clock: clk,
		tasks: make(map[string]*Task),
		ctx:   ctx,
		stop:  stop,
	}
}

// Schedule arranges for fn to run at runAt, replacing any pending task with the same key.
func (s *Scheduler) Schedule(key string, runAt time.Time, fn Func) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := &Task{key: key, runAt: runAt, fn: fn, owner: s, done: make(chan struct{})}
	if s.closed {
		s.finishLocked(task, ErrCancelled)
		return task
	}
	if prev, ok := s.tasks[key]; ok {
		s.cancelLocked(prev)
	}

	delay := runAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.tasks[key] = task
	task.timer = time.AfterFunc(delay, func() { s.fire(task) })
	return task
}

// Cancel cancels the pending task for key.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	return s.cancelLocked(task)
}

// CancelPrefix cancels every pending task whose key starts with prefix.
func (s *Scheduler) CancelPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, task := range s.tasks {
		if strings.HasPrefix(key, prefix) && s.cancelLocked(task) {
			n++
		}
	}
	return n
}

// Pending returns the due time of the pending task for key.
func (s *Scheduler) Pending(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return time.Time{}, false
	}
	return task.runAt, true
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task and waits for running ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for _, task := range s.tasks {
		s.cancelLocked(task)
	}
	s.mu.Unlock()
	s.stop()
	s.wg.Wait()
}

func (s *Scheduler) fire(task *Task) {
	s.mu.Lock()
	// A superseded or cancelled timer may still fire; it must do nothing.
	if s.tasks[task.key] != task || task.state != statePending {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, task.key)
	task.state = stateRunning
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	err := task.fn(s.ctx)
	if err != nil {
		log.Printf("schedule: task %s failed: %v", task.key, err)
	}

	s.mu.Lock()
	s.finishLocked(task, err)
	s.mu.Unlock()
}

func (s *Scheduler) cancelLocked(task *Task) bool {
	if task.state != statePending {
		return false
	}
	if task.timer != nil {
		task.timer.Stop()
	}
	if s.tasks[task.key] == task {
		delete(s.tasks, task.key)
	}
	s.finishLocked(task, ErrCancelled)
	return true
}

func (s *Scheduler) finishLocked(task *Task, err error) {
	task.state = stateDone
	task.err = err
	close(task.done)
}
