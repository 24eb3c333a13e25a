// Package proctor watches a test-taking page for suspicious behavior and keeps the violation ledger of one
// exam attempt.
package proctor

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/examguard/core"
)

var NowFunc = time.Now // mockable

type lossChannel int

const (
	channelVisibility lossChannel = iota + 1
	channelFocus
)

// session is the mutable state of one proctored attempt.
type session struct {
	isActive             bool
	startedAt            time.Time
	violations           []Violation
	violationCount       int
	hasEnteredFullscreen bool
	blurStartedAt        time.Time // zero when focus is held
	blurChannel          lossChannel
	originalViewport     *Size
}

// effects are run in order once the monitor lock is released.
type effects []func()

func (fx *effects) add(f func()) { *fx = append(*fx, f) }

func (fx effects) run() {
	for _, f := range fx {
		f()
	}
}

// Monitor applies the proctoring policy to the events of one page.
// Every state transition happens under mu; callbacks and platform calls run after it is released.
type Monitor struct {
	platform Platform
	sched    Scheduler
	logger   core.Logger
	opts     Options
	fpKey    []byte

	mu           sync.Mutex
	attached     bool
	device       Device
	session      session
	isFullscreen bool

	lastActivityAt time.Time
	touchStarts    []time.Time
	screenMode     Kind // "" when the viewport matches the baseline
	captureActive  bool
	clipboardFP    []byte

	timers []func() // periodic, cancelled by StopTracking
	settle func()   // pending orientation settle
}

func New(platform Platform, sched Scheduler, logger core.Logger, opts Options) *Monitor {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return &Monitor{
		platform: platform,
		sched:    sched,
		logger:   logger,
		opts:     opts.normalized(),
		fpKey:    key,
	}
}

func (m *Monitor) transition(fn func(fx *effects)) {
	var fx effects
	m.mu.Lock()
	fn(&fx)
	m.mu.Unlock()
	fx.run()
}

// capability runs a platform call, logging failures and panics instead of propagating them.
func (m *Monitor) capability(name string, call func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn(fmt.Sprintf("proctor: %s panicked: %v", name, r))
		}
	}()
	if err := call(); err != nil {
		m.logger.Warn(fmt.Sprintf("proctor: %s failed: %v", name, err), err)
	}
}

func (m *Monitor) mobileMode() bool {
	return m.opts.EnableMobileProctoring && m.device.Mobile
}

func (m *Monitor) androidMode() bool {
	return m.mobileMode() && m.device.Android
}

// Attach installs the monitor on the page: device detection, viewport baseline and, on Android, the
// selection style, portrait lock and history pin. Listening starts here; recording starts with StartTracking.
func (m *Monitor) Attach() {
	device := DetectDevice(m.platform.UserAgent(), m.platform.MaxTouchPoints())
	fullscreen := m.platform.IsFullscreen()

	m.mu.Lock()
	if m.attached {
		m.mu.Unlock()
		return
	}
	m.attached = true
	m.device = device
	m.isFullscreen = fullscreen
	mobile, android := m.mobileMode(), m.androidMode()
	m.mu.Unlock()

	m.logger.Info(fmt.Sprintf("proctor: attached (mobile=%t android=%t)", mobile, android))
	if !mobile {
		return
	}
	if size, ok := m.platform.Viewport(); ok && size.Valid() {
		m.mu.Lock()
		m.session.originalViewport = &size
		m.mu.Unlock()
	}
	if android {
		m.capability("inject selection style", func() error { return m.platform.InjectStyle(androidStyle) })
		m.capability("lock orientation", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), CapabilityTimeout)
			defer cancel()
			return m.platform.LockOrientation(ctx, OrientationPortrait)
		})
		m.capability("pin history", m.platform.PushHistoryState)
	}
}

// Detach removes the monitor from the page. Every timer is cancelled and later events are ignored.
func (m *Monitor) Detach() {
	m.transition(func(fx *effects) {
		if !m.attached {
			return
		}
		m.stop()
		if m.settle != nil {
			m.settle()
			m.settle = nil
		}
		m.attached = false
	})
	m.logger.Info("proctor: detached")
}

// StartTracking marks the beginning of the timed test. Calling it twice keeps the first start time.
func (m *Monitor) StartTracking() {
	m.startTracking(time.Time{})
}

// ResumeTracking tracks again a test that first started at startedAt, so the grace period is not
// granted a second time. A zero startedAt behaves like StartTracking.
func (m *Monitor) ResumeTracking(startedAt time.Time) {
	m.startTracking(startedAt)
}

func (m *Monitor) startTracking(startedAt time.Time) {
	fullscreen := m.platform.IsFullscreen()

	m.transition(func(fx *effects) {
		if !m.attached {
			m.logger.Warn("proctor: StartTracking called before Attach")
			return
		}
		if m.session.isActive {
			return
		}
		now := NowFunc()
		if startedAt.IsZero() || startedAt.After(now) {
			startedAt = now
		}
		m.session.isActive = true
		m.session.startedAt = startedAt
		m.session.blurStartedAt = time.Time{}
		m.lastActivityAt = now
		m.touchStarts = nil
		if fullscreen {
			m.isFullscreen = true
			m.session.hasEnteredFullscreen = true
		}
		if m.mobileMode() {
			m.timers = append(m.timers,
				m.sched.Every(ScreenModeInterval, m.checkScreenMode),
				m.sched.Every(ClipboardInterval, m.checkClipboard),
				m.sched.Every(CaptureInterval, m.checkScreenCapture),
				m.sched.Every(InactivityInterval, m.checkInactivity),
			)
		}
		fx.add(func() { m.logger.Info("proctor: tracking started") })
	})
}

// StopTracking ends recording. It is idempotent; listeners stay attached but record nothing.
func (m *Monitor) StopTracking() {
	m.transition(func(fx *effects) {
		if m.session.isActive {
			fx.add(func() { m.logger.Info("proctor: tracking stopped") })
		}
		m.stop()
	})
}

func (m *Monitor) stop() {
	m.session.isActive = false
	m.session.hasEnteredFullscreen = false
	m.session.blurStartedAt = time.Time{}
	for _, cancel := range m.timers {
		cancel()
	}
	m.timers = nil
}

// ResetViolations empties the ledger without touching the tracking state.
func (m *Monitor) ResetViolations() {
	m.transition(func(fx *effects) {
		m.session.violations = nil
		m.session.violationCount = 0
	})
}

// EnterFullscreen asks the platform for fullscreen. Failure is logged, never a violation.
func (m *Monitor) EnterFullscreen(ctx context.Context) {
	m.capability("request fullscreen", func() error { return m.platform.RequestFullscreen(ctx) })
}

// ExitFullscreen asks the platform to leave fullscreen. Failure is logged.
func (m *Monitor) ExitFullscreen(ctx context.Context) {
	m.capability("exit fullscreen", func() error { return m.platform.ExitFullscreen(ctx) })
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	violations := make([]Violation, len(m.session.violations))
	copy(violations, m.session.violations)
	return Snapshot{
		IsActive:             m.session.isActive,
		IsFullscreen:         m.isFullscreen,
		HasEnteredFullscreen: m.session.hasEnteredFullscreen,
		StartedAt:            m.session.startedAt,
		ViolationCount:       m.session.violationCount,
		Violations:           violations,
		Device:               m.device,
	}
}

// canRecord is the gate shared by every rule: tracking and strictly past the grace period.
func (m *Monitor) canRecord(now time.Time) bool {
	return m.session.isActive && now.Sub(m.session.startedAt) > GracePeriod
}

// record appends a violation when the gate allows it and queues the callbacks.
func (m *Monitor) record(kind Kind, desc string, fx *effects) (Violation, bool) {
	now := NowFunc()
	if !m.canRecord(now) {
		return Violation{}, false
	}

	v := Violation{Kind: kind, OccurredAt: now, Description: desc}
	m.session.violations = append(m.session.violations, v)
	m.session.violationCount++
	count := m.session.violationCount

	fx.add(func() {
		m.logger.Warn(fmt.Sprintf("proctor: violation %s (%d/%d): %s", kind, count, m.opts.MaxViolations, desc))
	})
	if cb := m.opts.OnViolation; cb != nil {
		fx.add(func() { cb(kind, count) })
	}
	if cb := m.opts.OnMaxViolationsReached; cb != nil && count >= m.opts.MaxViolations {
		fx.add(cb)
	}
	return v, true
}

// HandleEvent applies one page event and returns what the page should do with it.
func (m *Monitor) HandleEvent(ev Event) Outcome {
	var out Outcome
	m.transition(func(fx *effects) {
		if !m.attached {
			return
		}
		now := NowFunc()

		switch ev.Type {
		case EventFullscreenChange:
			out = m.onFullscreenChange(ev, fx)
		case EventVisibilityChange:
			out = m.onVisibilityChange(ev, now, fx)
		case EventBlur:
			out = m.onFocusChange(true, now, fx)
		case EventFocus:
			out = m.onFocusChange(false, now, fx)
		case EventKeyDown:
			m.lastActivityAt = now
			out = m.onKeyDown(ev, fx)
		case EventContextMenu:
			out = m.onContextMenu(fx)
		case EventCopy, EventCut, EventPaste:
			out = m.onClipboardEvent(ev, fx)
		case EventOrientationChange:
			out = m.onOrientationChange(fx)
		case EventTouchStart:
			m.lastActivityAt = now
			out = m.onTouchStart(ev, now, fx)
		case EventPopState:
			out = m.onPopState(fx)
		case EventActivity:
			m.lastActivityAt = now
		}
	})
	return out
}

func recorded(v Violation, ok bool) *Violation {
	if !ok {
		return nil
	}
	return &v
}
