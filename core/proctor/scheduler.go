package proctor

import (
	"sync"
	"time"
)

// Scheduler runs the monitor's timers. fn must never be called synchronously from Every or After.
type Scheduler interface {
	// Every calls fn every d until cancel is called.
	Every(d time.Duration, fn func()) (cancel func())
	// After calls fn once after d unless cancel is called first.
	After(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler is a Scheduler backed by real timers. Stop cancels every pending timer at once.
type TimerScheduler struct {
	mu      sync.Mutex
	nextID  int
	cancels map[int]func()
	stopped bool
}

var _ Scheduler = (*TimerScheduler)(nil)

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{cancels: make(map[int]func())}
}

func (s *TimerScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}

	id, ok := s.track(stop)
	if !ok {
		stop()
		return func() {}
	}

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// a tick may race with stop; done wins
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return func() { s.untrack(id); stop() }
}

func (s *TimerScheduler) After(d time.Duration, fn func()) func() {
	var id int
	// armed only once tracked so the callback always sees its id
	timer := time.AfterFunc(time.Hour, func() {
		s.untrack(id)
		fn()
	})
	timer.Stop()
	stop := func() { timer.Stop() }

	var ok bool
	if id, ok = s.track(stop); !ok {
		return func() {}
	}
	timer.Reset(d)
	return func() { s.untrack(id); stop() }
}

// Stop cancels every timer and makes later registrations no-ops.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = make(map[int]func())
	s.stopped = true
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Pending returns the number of live timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}

func (s *TimerScheduler) track(cancel func()) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, false
	}
	s.nextID++
	s.cancels[s.nextID] = cancel
	return s.nextID, true
}

func (s *TimerScheduler) untrack(id int) {
	s.mu.Lock()
	delete(s.cancels, id)
	s.mu.Unlock()
}
