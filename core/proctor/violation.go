package proctor

import "time"

// Kind tags a detected infraction. The string values are part of the wire format.
type Kind string

const (
	KindFullscreenExit    Kind = "FULLSCREEN_EXIT"
	KindTabSwitch         Kind = "TAB_SWITCH"
	KindWindowBlur        Kind = "WINDOW_BLUR"
	KindCopyPasteAttempt  Kind = "COPY_PASTE_ATTEMPT"
	KindRightClick        Kind = "RIGHT_CLICK"
	KindCopyAttempt       Kind = "COPY_ATTEMPT"
	KindPasteAttempt      Kind = "PASTE_ATTEMPT"
	KindDevToolsAttempt   Kind = "DEV_TOOLS_ATTEMPT"
	KindScreenshotAttempt Kind = "SCREENSHOT_ATTEMPT"
	KindSplitScreen       Kind = "ANDROID_SPLIT_SCREEN"
	KindOneHandMode       Kind = "ANDROID_ONE_HAND_MODE"
	KindPIPMode           Kind = "ANDROID_PIP_MODE"
	KindAppSwitch         Kind = "MOBILE_APP_SWITCH"
	KindFocusLoss         Kind = "MOBILE_FOCUS_LOSS"
	KindOrientationChange Kind = "MOBILE_ORIENTATION_CHANGE"
	KindScreenCapture     Kind = "MOBILE_SCREEN_CAPTURE"
	KindMultiTouch        Kind = "MOBILE_MULTI_TOUCH"
	KindMobileContextMenu Kind = "MOBILE_CONTEXT_MENU"
	KindMobileClipboard   Kind = "MOBILE_CLIPBOARD"
	KindInactivity        Kind = "MOBILE_INACTIVITY"
	KindAndroidBackButton Kind = "ANDROID_BACK_BUTTON"
)

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{
	KindFullscreenExit,
	KindTabSwitch,
	KindWindowBlur,
	KindCopyPasteAttempt,
	KindRightClick,
	KindCopyAttempt,
	KindPasteAttempt,
	KindDevToolsAttempt,
	KindScreenshotAttempt,
	KindSplitScreen,
	KindOneHandMode,
	KindPIPMode,
	KindAppSwitch,
	KindFocusLoss,
	KindOrientationChange,
	KindScreenCapture,
	KindMultiTouch,
	KindMobileContextMenu,
	KindMobileClipboard,
	KindInactivity,
	KindAndroidBackButton,
}

func (k Kind) Valid() bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Violation is one recorded infraction. It is never mutated once recorded.
type Violation struct {
	Kind        Kind      `json:"kind"`
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description"`
}

// Snapshot is a point in time copy of the monitor state, safe to hand out.
type Snapshot struct {
	IsActive             bool        `json:"is_active"`
	IsFullscreen         bool        `json:"is_fullscreen"`
	HasEnteredFullscreen bool        `json:"has_entered_fullscreen"`
	StartedAt            time.Time   `json:"started_at"`
	ViolationCount       int         `json:"violation_count"`
	Violations           []Violation `json:"violations"`
	Device               Device      `json:"device"`
}
