package proctor

import (
	"fmt"
	"time"
)

func (m *Monitor) onFullscreenChange(ev Event, fx *effects) Outcome {
	m.isFullscreen = ev.Fullscreen
	if ev.Fullscreen {
		m.session.hasEnteredFullscreen = true
		return Outcome{}
	}
	if !m.opts.EnableFullscreen || !m.session.hasEnteredFullscreen {
		return Outcome{}
	}
	return Outcome{Violation: recorded(m.record(KindFullscreenExit, "exited fullscreen mode", fx))}
}

func (m *Monitor) onVisibilityChange(ev Event, now time.Time, fx *effects) Outcome {
	if m.mobileMode() {
		return m.trackLoss(ev.Hidden, channelVisibility, now, fx)
	}
	if !ev.Hidden || !m.opts.EnableTabSwitchDetection {
		return Outcome{}
	}
	return Outcome{Violation: recorded(m.record(KindTabSwitch, "switched to another tab or window", fx))}
}

func (m *Monitor) onFocusChange(lost bool, now time.Time, fx *effects) Outcome {
	if m.mobileMode() {
		return m.trackLoss(lost, channelFocus, now, fx)
	}
	if !lost || !m.opts.EnableTabSwitchDetection {
		return Outcome{}
	}
	return Outcome{Violation: recorded(m.record(KindWindowBlur, "window lost focus", fx))}
}

// trackLoss measures how long the page was hidden or unfocused on mobile. The first loss opens the
// measurement, the first regain closes it, whichever channel reports it.
func (m *Monitor) trackLoss(lost bool, ch lossChannel, now time.Time, fx *effects) Outcome {
	if lost {
		if m.session.isActive && m.session.blurStartedAt.IsZero() {
			m.session.blurStartedAt = now
			m.session.blurChannel = ch
		}
		return Outcome{}
	}

	startedAt, startCh := m.session.blurStartedAt, m.session.blurChannel
	if startedAt.IsZero() {
		return Outcome{}
	}
	m.session.blurStartedAt = time.Time{}

	d := now.Sub(startedAt)
	switch {
	case d < AccidentalLoss:
		fx.add(func() { m.logger.Debug(fmt.Sprintf("proctor: ignored %s focus loss", d)) })
		return Outcome{}
	case d < AppSwitchThreshold:
		fx.add(func() { m.logger.Info(fmt.Sprintf("proctor: sub-threshold focus loss of %s", d)) })
		return Outcome{}
	}

	if startCh == channelVisibility {
		return Outcome{Violation: recorded(m.record(KindAppSwitch, fmt.Sprintf("app in background for %s", d.Round(time.Millisecond)), fx))}
	}
	return Outcome{Violation: recorded(m.record(KindFocusLoss, fmt.Sprintf("focus lost for %s", d.Round(time.Millisecond)), fx))}
}
