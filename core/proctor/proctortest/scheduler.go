package proctortest

import (
	"sync"
	"time"

	"github.com/trezcool/examguard/core/proctor"
)

type task struct {
	every     time.Duration // 0 for one-shot tasks
	next      time.Time
	fn        func()
	cancelled bool
}

// Scheduler is a proctor.Scheduler driven by Advance on a Clock.
type Scheduler struct {
	mu    sync.Mutex
	clock *Clock
	tasks []*task
}

var _ proctor.Scheduler = (*Scheduler)(nil)

func NewScheduler(clock *Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

func (s *Scheduler) add(t *task) func() {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

func (s *Scheduler) Every(d time.Duration, fn func()) func() {
	return s.add(&task{every: d, next: s.clock.Now().Add(d), fn: fn})
}

func (s *Scheduler) After(d time.Duration, fn func()) func() {
	return s.add(&task{next: s.clock.Now().Add(d), fn: fn})
}

// Advance moves the clock forward by d, firing due tasks in time order with the clock set to their due time.
func (s *Scheduler) Advance(d time.Duration) {
	target := s.clock.Now().Add(d)
	for {
		t := s.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}
	s.clock.Set(target)
}

func (s *Scheduler) popDue(target time.Time) *task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due *task
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if t.cancelled {
			continue
		}
		live = append(live, t)
		if !t.next.After(target) && (due == nil || t.next.Before(due.next)) {
			due = t
		}
	}
	s.tasks = live
	if due == nil {
		return nil
	}

	s.clock.Set(due.next)
	if due.every > 0 {
		due.next = due.next.Add(due.every)
	} else {
		due.cancelled = true
	}
	return due
}

// Pending returns the number of live tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}
