package proctor

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

const (
	splitRatio   = 0.8
	oneHandRatio = 0.85
	pipRatio     = 0.5
	// a ratio within fullTolerance of 1 counts as unchanged
	fullTolerance = 0.1
)

// classifyScreen compares the viewport to its baseline. PIP is tested before one-hand mode since any PIP
// window also satisfies the one-hand bounds. It returns "" when nothing matches.
func classifyScreen(baseline, current Size) (Kind, string) {
	if !baseline.Valid() || !current.Valid() {
		return "", ""
	}
	wr := float64(current.Width) / float64(baseline.Width)
	hr := float64(current.Height) / float64(baseline.Height)
	full := func(r float64) bool { return math.Abs(r-1) < fullTolerance }
	ratios := fmt.Sprintf("width %.2f, height %.2f of baseline", wr, hr)

	switch {
	case wr < splitRatio && full(hr):
		return KindSplitScreen, "horizontal split screen (" + ratios + ")"
	case hr < splitRatio && full(wr):
		return KindSplitScreen, "vertical split screen (" + ratios + ")"
	case wr < pipRatio && hr < pipRatio:
		return KindPIPMode, "picture-in-picture window (" + ratios + ")"
	case wr < oneHandRatio && hr < oneHandRatio:
		return KindOneHandMode, "one-hand or minimized mode (" + ratios + ")"
	}
	return "", ""
}

func (m *Monitor) onOrientationChange(fx *effects) Outcome {
	if !m.mobileMode() {
		return Outcome{}
	}
	v, ok := m.record(KindOrientationChange, "device orientation changed", fx)
	if m.settle != nil {
		m.settle()
	}
	m.settle = m.sched.After(OrientationSettleDelay, m.refreshBaseline)
	return Outcome{Violation: recorded(v, ok)}
}

// refreshBaseline makes the settled viewport the new reference so one rotation is reported once.
func (m *Monitor) refreshBaseline() {
	size, ok := m.platform.Viewport()
	m.transition(func(fx *effects) {
		m.settle = nil
		if !m.attached || !ok || !size.Valid() {
			return
		}
		m.session.originalViewport = &size
		m.screenMode = ""
	})
}

func (m *Monitor) onTouchStart(ev Event, now time.Time, fx *effects) Outcome {
	if !m.mobileMode() || ev.Touches < 2 {
		return Outcome{}
	}
	cutoff := now.Add(-MultiTouchWindow)
	kept := m.touchStarts[:0]
	for _, t := range m.touchStarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.touchStarts = append(kept, now)
	if len(m.touchStarts) <= MultiTouchLimit {
		return Outcome{}
	}
	n := len(m.touchStarts)
	m.touchStarts = nil
	return Outcome{Violation: recorded(m.record(KindMultiTouch, fmt.Sprintf("%d multi-touch gestures within %s", n, MultiTouchWindow), fx))}
}

// onPopState defeats back navigation on Android by pinning the history entry again.
func (m *Monitor) onPopState(fx *effects) Outcome {
	if !m.androidMode() || !m.session.isActive {
		return Outcome{}
	}
	v, ok := m.record(KindAndroidBackButton, "back navigation attempted", fx)
	fx.add(func() { m.capability("pin history", m.platform.PushHistoryState) })
	return Outcome{PreventDefault: true, Violation: recorded(v, ok)}
}

// checkScreenMode polls the viewport. It is edge triggered on purpose: a mode is recorded when it
// appears, not on every poll while it lasts.
func (m *Monitor) checkScreenMode() {
	size, ok := m.platform.Viewport()
	if !ok || !size.Valid() {
		return
	}
	m.transition(func(fx *effects) {
		if !m.session.isActive {
			return
		}
		if m.session.originalViewport == nil {
			m.session.originalViewport = &size
			return
		}
		kind, desc := classifyScreen(*m.session.originalViewport, size)
		if kind == "" {
			m.screenMode = ""
			return
		}
		if kind == m.screenMode {
			return
		}
		if _, ok := m.record(kind, desc, fx); ok {
			m.screenMode = kind
		}
	})
}

func (m *Monitor) fingerprint(text string) []byte {
	h, err := blake2b.New256(m.fpKey)
	if err != nil {
		return nil
	}
	_, _ = h.Write([]byte(text))
	return h.Sum(nil)
}

// checkClipboard polls the clipboard. It is edge triggered on purpose: the same content is reported
// once, not on every poll. Only a keyed fingerprint and the length of the content are kept, never the
// content itself.
func (m *Monitor) checkClipboard() {
	ctx, cancel := context.WithTimeout(context.Background(), CapabilityTimeout)
	defer cancel()
	text, err := m.platform.ReadClipboardText(ctx)
	if err != nil {
		m.logger.Debug(fmt.Sprintf("proctor: clipboard read failed: %v", err))
		return
	}
	n := utf8.RuneCountInString(text)
	if n <= ClipboardMinLength {
		return
	}
	fp := m.fingerprint(text)

	m.transition(func(fx *effects) {
		if bytes.Equal(fp, m.clipboardFP) {
			return
		}
		if _, ok := m.record(KindMobileClipboard, fmt.Sprintf("clipboard holds %d characters", n), fx); ok {
			m.clipboardFP = fp
		}
	})
}

func (m *Monitor) checkScreenCapture() {
	ctx, cancel := context.WithTimeout(context.Background(), CapabilityTimeout)
	defer cancel()
	active, err := m.platform.ScreenCaptureActive(ctx)
	if err != nil {
		m.logger.Debug(fmt.Sprintf("proctor: screen capture probe failed: %v", err))
		return
	}

	m.transition(func(fx *effects) {
		if !active {
			m.captureActive = false
			return
		}
		if m.captureActive {
			return
		}
		if _, ok := m.record(KindScreenCapture, "screen recording detected", fx); ok {
			m.captureActive = true
		}
	})
}

func (m *Monitor) checkInactivity() {
	m.transition(func(fx *effects) {
		if !m.session.isActive {
			return
		}
		now := NowFunc()
		idle := now.Sub(m.lastActivityAt)
		if idle < InactivityLimit {
			return
		}
		if _, ok := m.record(KindInactivity, fmt.Sprintf("no activity for %s", idle.Round(time.Second)), fx); ok {
			m.lastActivityAt = now
		}
	})
}
