package proctor

import "time"

const (
	// GracePeriod is the window after StartTracking during which nothing is recorded.
	GracePeriod          = 10 * time.Second
	DefaultMaxViolations = 3

	ScreenModeInterval     = 2 * time.Second
	ClipboardInterval      = 5 * time.Second
	CaptureInterval        = 10 * time.Second
	InactivityInterval     = 30 * time.Second
	InactivityLimit        = 120 * time.Second
	OrientationSettleDelay = time.Second

	// focus/visibility loss shorter than AccidentalLoss is ignored,
	// loss shorter than AppSwitchThreshold is only logged.
	AccidentalLoss     = 500 * time.Millisecond
	AppSwitchThreshold = 2 * time.Second

	MultiTouchWindow = time.Second
	MultiTouchLimit  = 3

	ClipboardMinLength = 10

	// CapabilityTimeout bounds every platform call the monitor makes on its own.
	CapabilityTimeout = 5 * time.Second
)

// Options configures a Monitor. Every restriction can be toggled independently.
type Options struct {
	EnableFullscreen         bool
	EnableTabSwitchDetection bool
	EnableCopyCutPaste       bool
	EnableRightClick         bool
	EnableDevTools           bool
	EnableScreenshot         bool
	EnableMobileProctoring   bool

	// MaxViolations must be >= 1; smaller values fall back to DefaultMaxViolations.
	MaxViolations int

	// OnViolation is called each time a violation is recorded, with the cumulative count.
	OnViolation func(kind Kind, count int)
	// OnMaxViolationsReached is called after every recorded violation that leaves the count at or
	// above MaxViolations, not only on the crossing one.
	OnMaxViolationsReached func()
}

func DefaultOptions() Options {
	return Options{
		EnableFullscreen:         true,
		EnableTabSwitchDetection: true,
		EnableDevTools:           true,
		MaxViolations:            DefaultMaxViolations,
	}
}

func (o Options) normalized() Options {
	if o.MaxViolations < 1 {
		o.MaxViolations = DefaultMaxViolations
	}
	return o
}
