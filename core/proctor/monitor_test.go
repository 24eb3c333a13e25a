package proctor_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examguard/core/proctor"
	"github.com/trezcool/examguard/core/proctor/proctortest"
)

func TestMonitor_countMatchesLog(t *testing.T) {
	h := desktopHarness(t, func(o *proctor.Options) {
		o.EnableCopyCutPaste = true
		o.EnableRightClick = true
		o.MaxViolations = 100
	})
	h.startPastGrace()

	events := []proctor.Event{
		hidden(true), hidden(false),
		ev(proctor.EventBlur), ev(proctor.EventFocus),
		{Type: proctor.EventKeyDown, Key: "c", Ctrl: true},
		ev(proctor.EventContextMenu),
		ev(proctor.EventPaste),
		{Type: proctor.EventKeyDown, Key: "F12"},
		fullscreen(true), fullscreen(false),
	}
	for i, e := range events {
		h.fire(e)
		snap := h.mon.Snapshot()
		if snap.ViolationCount != len(snap.Violations) {
			t.Fatalf("after event %d (%s): count = %d; len(violations) = %d", i, e.Type, snap.ViolationCount, len(snap.Violations))
		}
	}
	h.checkKinds(t,
		proctor.KindTabSwitch,
		proctor.KindWindowBlur,
		proctor.KindCopyPasteAttempt,
		proctor.KindRightClick,
		proctor.KindPasteAttempt,
		proctor.KindDevToolsAttempt,
		proctor.KindFullscreenExit,
	)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, h.counts)
}

func TestMonitor_gracePeriod(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{name: "right after start", elapsed: 0, want: 0},
		{name: "mid grace", elapsed: 5 * time.Second, want: 0},
		{name: "exactly at grace end", elapsed: proctor.GracePeriod, want: 0},
		{name: "1ms past grace", elapsed: proctor.GracePeriod + time.Millisecond, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := desktopHarness(t)
			h.mon.StartTracking()
			h.sched.Advance(tt.elapsed)
			h.fire(hidden(true))
			if got := h.mon.Snapshot().ViolationCount; got != tt.want {
				t.Errorf("ViolationCount = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestMonitor_resumeTracking(t *testing.T) {
	tests := []struct {
		name      string
		startedAt func(h *harness) time.Time
		want      int
	}{
		{name: "zero start time gets a grace period", startedAt: func(*harness) time.Time { return time.Time{} }, want: 0},
		{name: "first start inside grace", startedAt: func(h *harness) time.Time { return h.clock.Now().Add(-5 * time.Second) }, want: 0},
		{name: "first start long ago", startedAt: func(h *harness) time.Time { return h.clock.Now().Add(-time.Minute) }, want: 1},
		{name: "future start time is clamped", startedAt: func(h *harness) time.Time { return h.clock.Now().Add(time.Hour) }, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := desktopHarness(t)
			h.mon.ResumeTracking(tt.startedAt(h))
			h.fire(hidden(true))
			if got := h.mon.Snapshot().ViolationCount; got != tt.want {
				t.Errorf("ViolationCount = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestMonitor_inactiveRecordsNothing(t *testing.T) {
	everything := []proctor.Event{
		fullscreen(true), fullscreen(false),
		hidden(true), hidden(false),
		ev(proctor.EventBlur), ev(proctor.EventFocus),
		{Type: proctor.EventKeyDown, Key: "F12"},
		{Type: proctor.EventKeyDown, Key: "PrintScreen"},
		{Type: proctor.EventKeyDown, Key: "v", Ctrl: true},
		ev(proctor.EventContextMenu),
		ev(proctor.EventCopy), ev(proctor.EventCut), ev(proctor.EventPaste),
		ev(proctor.EventOrientationChange),
		{Type: proctor.EventTouchStart, Touches: 2},
		{Type: proctor.EventTouchStart, Touches: 2},
		{Type: proctor.EventTouchStart, Touches: 2},
		{Type: proctor.EventTouchStart, Touches: 2},
		ev(proctor.EventPopState),
	}
	all := func(o *proctor.Options) {
		o.EnableCopyCutPaste = true
		o.EnableRightClick = true
		o.EnableScreenshot = true
	}

	t.Run("never started", func(t *testing.T) {
		h := desktopHarness(t, all)
		h.sched.Advance(time.Minute)
		h.fire(everything...)
		h.checkKinds(t)
	})

	t.Run("after stop (desktop)", func(t *testing.T) {
		h := desktopHarness(t, all)
		h.startPastGrace()
		h.fire(hidden(true))
		h.mon.StopTracking()
		h.sched.Advance(time.Minute)
		h.fire(everything...)
		h.checkKinds(t, proctor.KindTabSwitch)
	})

	t.Run("after stop (android)", func(t *testing.T) {
		h := androidHarness(t, 800, 600, all)
		h.startPastGrace()
		h.mon.StopTracking()
		assert.Zero(t, h.sched.Pending(), "periodic checks must be cancelled")
		h.platform.SetViewport(300, 250)
		h.platform.SetClipboard("some long copied answer")
		h.platform.SetCapturing(true)
		h.sched.Advance(5 * time.Minute)
		h.fire(everything...)
		h.checkKinds(t)
	})
}

func TestMonitor_fullscreenExit(t *testing.T) {
	t.Run("exit without prior entry", func(t *testing.T) {
		h := desktopHarness(t)
		h.startPastGrace()
		h.fire(fullscreen(false))
		h.checkKinds(t)
	})

	t.Run("entry then exit", func(t *testing.T) {
		h := desktopHarness(t)
		h.startPastGrace()
		out := h.fire(fullscreen(true), fullscreen(false))
		h.checkKinds(t, proctor.KindFullscreenExit)
		require.NotNil(t, out.Violation)
		assert.Equal(t, proctor.KindFullscreenExit, out.Violation.Kind)
		assert.False(t, h.mon.Snapshot().IsFullscreen)
	})

	t.Run("entry before start counts", func(t *testing.T) {
		h := desktopHarness(t)
		h.fire(fullscreen(true))
		h.startPastGrace()
		h.fire(fullscreen(false))
		h.checkKinds(t, proctor.KindFullscreenExit)
	})

	t.Run("already fullscreen at start", func(t *testing.T) {
		h := desktopHarness(t)
		h.platform.Fullscreen = true
		h.startPastGrace()
		assert.True(t, h.mon.Snapshot().HasEnteredFullscreen)
		h.fire(fullscreen(false))
		h.checkKinds(t, proctor.KindFullscreenExit)
	})

	t.Run("exit during grace only updates state", func(t *testing.T) {
		h := desktopHarness(t)
		h.mon.StartTracking()
		h.fire(fullscreen(true), fullscreen(false))
		h.checkKinds(t)
		assert.True(t, h.mon.Snapshot().HasEnteredFullscreen)
	})

	t.Run("stop resets entry", func(t *testing.T) {
		h := desktopHarness(t)
		h.startPastGrace()
		h.fire(fullscreen(true))
		h.mon.StopTracking()
		assert.False(t, h.mon.Snapshot().HasEnteredFullscreen)
		h.startPastGrace()
		h.fire(fullscreen(false))
		h.checkKinds(t)
	})

	t.Run("restriction disabled", func(t *testing.T) {
		h := desktopHarness(t, func(o *proctor.Options) { o.EnableFullscreen = false })
		h.startPastGrace()
		h.fire(fullscreen(true), fullscreen(false))
		h.checkKinds(t)
	})
}

func TestMonitor_maxViolations(t *testing.T) {
	h := desktopHarness(t)
	h.startPastGrace()

	wantLimitCalls := []int{0, 0, 1, 2}
	for i, want := range wantLimitCalls {
		h.fire(hidden(true), hidden(false))
		if h.limitCalls != want {
			t.Errorf("after tab switch #%d: limit calls = %d; want %d", i+1, h.limitCalls, want)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4}, h.counts)
}

func TestMonitor_maxViolationsFallback(t *testing.T) {
	h := desktopHarness(t, func(o *proctor.Options) { o.MaxViolations = 0 })
	h.startPastGrace()
	for i := 0; i < proctor.DefaultMaxViolations; i++ {
		h.fire(ev(proctor.EventBlur))
	}
	assert.Equal(t, 1, h.limitCalls)
}

func TestMonitor_desktopFocus(t *testing.T) {
	tests := []struct {
		name   string
		tabOff bool
		events []proctor.Event
		want   []proctor.Kind
	}{
		{name: "hidden", events: []proctor.Event{hidden(true)}, want: []proctor.Kind{proctor.KindTabSwitch}},
		{name: "visible again", events: []proctor.Event{hidden(false)}},
		{name: "blur", events: []proctor.Event{ev(proctor.EventBlur)}, want: []proctor.Kind{proctor.KindWindowBlur}},
		{name: "focus", events: []proctor.Event{ev(proctor.EventFocus)}},
		{name: "detection off", tabOff: true, events: []proctor.Event{hidden(true), ev(proctor.EventBlur)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := desktopHarness(t, func(o *proctor.Options) { o.EnableTabSwitchDetection = !tt.tabOff })
			h.startPastGrace()
			h.fire(tt.events...)
			h.checkKinds(t, tt.want...)
		})
	}
}

func TestMonitor_resetViolations(t *testing.T) {
	h := desktopHarness(t)
	h.startPastGrace()
	h.fire(hidden(true), ev(proctor.EventBlur))
	require.Equal(t, 2, h.mon.Snapshot().ViolationCount)

	h.mon.ResetViolations()
	snap := h.mon.Snapshot()
	assert.Zero(t, snap.ViolationCount)
	assert.Empty(t, snap.Violations)
	assert.True(t, snap.IsActive, "reset must not stop tracking")

	h.fire(ev(proctor.EventBlur))
	assert.Equal(t, 1, h.mon.Snapshot().ViolationCount)
}

func TestMonitor_stopIdempotent(t *testing.T) {
	once := androidHarness(t, 800, 600)
	once.startPastGrace()
	once.fire(ev(proctor.EventContextMenu))
	once.mon.StopTracking()

	twice := androidHarness(t, 800, 600)
	twice.startPastGrace()
	twice.fire(ev(proctor.EventContextMenu))
	twice.mon.StopTracking()
	twice.mon.StopTracking()

	if got, want := twice.mon.Snapshot(), once.mon.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() after double stop = %+v; want %+v", got, want)
	}
	assert.Zero(t, twice.sched.Pending())
}

func TestMonitor_misuse(t *testing.T) {
	clock := proctortest.NewClock(epoch)
	proctor.NowFunc = clock.Now
	defer func() { proctor.NowFunc = time.Now }()

	logger := new(proctortest.Logger)
	mon := proctor.New(proctortest.NewDesktop(), proctortest.NewScheduler(clock), logger, proctor.DefaultOptions())

	// none of these may panic
	mon.StopTracking()
	mon.ResetViolations()
	mon.StartTracking()
	assert.True(t, logger.Has("warn", "before Attach"))
	assert.False(t, mon.Snapshot().IsActive)
	mon.Detach()

	mon.Attach()
	mon.StartTracking()
	clock.Add(time.Minute)
	mon.StartTracking() // keeps the first start
	mon.HandleEvent(hidden(true))
	assert.Equal(t, 1, mon.Snapshot().ViolationCount)
}

func TestMonitor_detach(t *testing.T) {
	h := androidHarness(t, 800, 600)
	h.startPastGrace()
	require.NotZero(t, h.sched.Pending())

	h.fire(ev(proctor.EventOrientationChange)) // leaves a pending settle timer
	h.mon.Detach()
	assert.Zero(t, h.sched.Pending())

	before := h.mon.Snapshot().ViolationCount
	h.fire(ev(proctor.EventContextMenu), ev(proctor.EventPopState))
	h.sched.Advance(10 * time.Minute)
	assert.Equal(t, before, h.mon.Snapshot().ViolationCount)
}

func TestMonitor_capabilityFailures(t *testing.T) {
	fail := errors.New("NotAllowedError")

	platform := proctortest.NewAndroid(800, 600)
	platform.FullscreenErr = fail
	platform.OrientationErr = fail
	platform.HistoryErr = fail
	platform.StyleErr = fail
	platform.ClipboardErr = fail
	platform.CaptureErr = fail

	opts := proctor.DefaultOptions()
	opts.EnableMobileProctoring = true
	h := newHarness(t, platform, opts)
	h.startPastGrace()

	h.mon.EnterFullscreen(context.Background())
	h.mon.ExitFullscreen(context.Background())
	h.fire(ev(proctor.EventPopState))
	h.sched.Advance(time.Minute)

	assert.True(t, h.logger.Has("warn", "request fullscreen failed"))
	assert.True(t, h.logger.Has("warn", "lock orientation failed"))
	assert.True(t, h.logger.Has("warn", "inject selection style failed"))
	assert.True(t, h.logger.Has("debug", "clipboard read failed"))
	assert.True(t, h.logger.Has("debug", "screen capture probe failed"))
	h.checkKinds(t, proctor.KindAndroidBackButton)
}

func TestMonitor_enterFullscreen(t *testing.T) {
	h := desktopHarness(t)
	h.mon.EnterFullscreen(context.Background())
	assert.Equal(t, 1, h.platform.CallCount("RequestFullscreen"))
	assert.True(t, h.platform.IsFullscreen())

	h.mon.ExitFullscreen(context.Background())
	assert.Equal(t, 1, h.platform.CallCount("ExitFullscreen"))
	h.checkKinds(t)
}
