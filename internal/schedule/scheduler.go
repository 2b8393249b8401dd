// Package schedule runs deferred callbacks that belong to an owner, such as a
// media session or a conversation, and can be cancelled as a group.
package schedule

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a scheduled callback.
type Task struct {
	ID    string
	Owner string
	Name  string
	Due   time.Time

	s     *Scheduler
	timer Timer
}

// Cancel stops the task if it has not fired. It reports whether the task was
// still pending.
func (t *Task) Cancel() bool {
	return t.s.cancel(t)
}

// Scheduler tracks pending tasks by owner. Scheduling a task with an owner and
// name that is already pending replaces the earlier task.
type Scheduler struct {
	clock Clock

	mu    sync.Mutex
	tasks map[string]*Task
}

// New returns a Scheduler using clock, or the real clock when nil.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{clock: clock, tasks: make(map[string]*Task)}
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() Clock { return s.clock }

// After runs fn once d has elapsed unless the task is cancelled first.
func (s *Scheduler) After(owner, name string, d time.Duration, fn func()) *Task {
	t := &Task{
		ID:    uuid.NewString(),
		Owner: owner,
		Name:  name,
		Due:   s.clock.Now().Add(d),
		s:     s,
	}

	s.mu.Lock()
	for _, old := range s.tasks {
		if old.Owner == owner && old.Name == name {
			s.stopLocked(old)
		}
	}
	s.tasks[t.ID] = t
	s.mu.Unlock()

	timer := s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.tasks[t.ID]
		delete(s.tasks, t.ID)
		s.mu.Unlock()
		if live {
			fn()
		}
	})

	s.mu.Lock()
	if _, live := s.tasks[t.ID]; live {
		t.timer = timer
	} else {
		timer.Stop()
	}
	s.mu.Unlock()
	return t
}

func (s *Scheduler) cancel(t *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return false
	}
	s.stopLocked(t)
	return true
}

func (s *Scheduler) stopLocked(t *Task) {
	delete(s.tasks, t.ID)
	if t.timer != nil {
		t.timer.Stop()
	}
}

// CancelOwner cancels every pending task of owner and returns how many were
// cancelled.
func (s *Scheduler) CancelOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Owner == owner {
			s.stopLocked(t)
			n++
		}
	}
	return n
}

// CancelAll cancels every pending task.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.tasks)
	for _, t := range s.tasks {
		s.stopLocked(t)
	}
	return n
}

// Pending returns the pending tasks of owner, or of every owner when owner is
// empty.
func (s *Scheduler) Pending(owner string) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Task
	for _, t := range s.tasks {
		if owner == "" || t.Owner == owner {
			out = append(out, t)
		}
	}
	return out
}
