package proctor

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUnsupported is returned by platforms lacking a capability.
var ErrUnsupported = errors.New("capability not supported")

type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

// Platform exposes the browser capabilities the monitor reads and drives.
// Implementations must be safe for concurrent use; the monitor never calls them while holding its lock.
type Platform interface {
	UserAgent() string
	MaxTouchPoints() int

	IsFullscreen() bool
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error

	LockOrientation(ctx context.Context, orientation Orientation) error
	PushHistoryState() error
	InjectStyle(css string) error

	// Viewport reports the current viewport size; ok is false while it is unknown.
	Viewport() (size Size, ok bool)
	ReadClipboardText(ctx context.Context) (string, error)
	ScreenCaptureActive(ctx context.Context) (bool, error)
}
