package proctor_test

import (
	"testing"
	"time"

	"github.com/trezcool/examguard/core/proctor"
	"github.com/trezcool/examguard/core/proctor/proctortest"
)

var epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	clock    *proctortest.Clock
	sched    *proctortest.Scheduler
	platform *proctortest.Platform
	logger   *proctortest.Logger
	mon      *proctor.Monitor

	kinds      []proctor.Kind
	counts     []int
	limitCalls int
}

func newHarness(t *testing.T, platform *proctortest.Platform, opts proctor.Options) *harness {
	t.Helper()

	clock := proctortest.NewClock(epoch)
	proctor.NowFunc = clock.Now
	t.Cleanup(func() { proctor.NowFunc = time.Now })

	h := &harness{
		clock:    clock,
		sched:    proctortest.NewScheduler(clock),
		platform: platform,
		logger:   new(proctortest.Logger),
	}
	opts.OnViolation = func(kind proctor.Kind, count int) {
		h.kinds = append(h.kinds, kind)
		h.counts = append(h.counts, count)
	}
	opts.OnMaxViolationsReached = func() { h.limitCalls++ }
	h.mon = proctor.New(platform, h.sched, h.logger, opts)
	h.mon.Attach()
	return h
}

func desktopHarness(t *testing.T, opts ...func(*proctor.Options)) *harness {
	o := proctor.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newHarness(t, proctortest.NewDesktop(), o)
}

func androidHarness(t *testing.T, width, height int, opts ...func(*proctor.Options)) *harness {
	o := proctor.DefaultOptions()
	o.EnableMobileProctoring = true
	for _, opt := range opts {
		opt(&o)
	}
	return newHarness(t, proctortest.NewAndroid(width, height), o)
}

// startPastGrace starts tracking and moves just past the grace period.
func (h *harness) startPastGrace() {
	h.mon.StartTracking()
	h.sched.Advance(proctor.GracePeriod + time.Millisecond)
}

func (h *harness) fire(evs ...proctor.Event) proctor.Outcome {
	var out proctor.Outcome
	for _, ev := range evs {
		out = h.mon.HandleEvent(ev)
	}
	return out
}

func (h *harness) logKinds() []proctor.Kind {
	return proctortest.Kinds(h.mon.Snapshot().Violations)
}

func (h *harness) checkKinds(t *testing.T, want ...proctor.Kind) {
	t.Helper()
	if diff := proctortest.DiffKinds(want, h.logKinds()); diff != "" {
		t.Errorf("violation log mismatch:\n%s", diff)
	}
}

func ev(typ proctor.EventType) proctor.Event { return proctor.Event{Type: typ} }

func hidden(h bool) proctor.Event {
	return proctor.Event{Type: proctor.EventVisibilityChange, Hidden: h}
}

func fullscreen(fs bool) proctor.Event {
	return proctor.Event{Type: proctor.EventFullscreenChange, Fullscreen: fs}
}
