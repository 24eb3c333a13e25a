package attempt

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/examguard/core/proctor"
)

// Commands pushed to the page. The page answers capability requests through ClientState and events.
const (
	CmdRequestFullscreen = "request_fullscreen"
	CmdExitFullscreen    = "exit_fullscreen"
	CmdLockOrientation   = "lock_orientation"
	CmdPushHistory       = "push_history"
	CmdInjectStyle       = "inject_style"
	CmdReadClipboard     = "read_clipboard"
	CmdProbeCapture      = "probe_capture"

	// notices
	CmdViolation = "violation"
	CmdTerminate = "terminate"
)

var (
	ErrOutboxFull     = errors.New("command outbox is full")
	ErrPlatformClosed = errors.New("page is detached")
)

// Command is a message for the page.
type Command struct {
	Name        string              `json:"command"`
	Orientation proctor.Orientation `json:"orientation,omitempty"`
	CSS         string              `json:"css,omitempty"`
	Violation   *proctor.Violation  `json:"violation,omitempty"`
	Count       int                 `json:"count,omitempty"`
}

// RemotePlatform is a proctor.Platform for a page connected over the network. Capability calls are queued
// as commands and answered from the last state the page reported.
type RemotePlatform struct {
	userAgent   string
	touchPoints int
	outbox      chan Command

	mu         sync.Mutex
	closed     bool
	fullscreen bool
	viewport   proctor.Size
	clipboard  string // last sample, handed out once
	capturing  bool
}

var _ proctor.Platform = (*RemotePlatform)(nil)

func NewRemotePlatform(userAgent string, touchPoints, outboxSize int) *RemotePlatform {
	if outboxSize < 1 {
		outboxSize = 1
	}
	return &RemotePlatform{
		userAgent:   userAgent,
		touchPoints: touchPoints,
		outbox:      make(chan Command, outboxSize),
	}
}

// Commands is the outbox drained by the page connection.
func (p *RemotePlatform) Commands() <-chan Command {
	return p.outbox
}

// Push queues cmd without blocking.
func (p *RemotePlatform) Push(cmd Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlatformClosed
	}
	select {
	case p.outbox <- cmd:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Close closes the outbox. Later pushes fail with ErrPlatformClosed.
func (p *RemotePlatform) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.outbox)
	}
}

// Update records the state reported by the page.
func (p *RemotePlatform) Update(state ClientState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state.Fullscreen != nil {
		p.fullscreen = *state.Fullscreen
	}
	if state.Width != nil && state.Height != nil {
		p.viewport = proctor.Size{Width: *state.Width, Height: *state.Height}
	}
	if state.Clipboard != nil {
		p.clipboard = *state.Clipboard
	}
	if state.Capturing != nil {
		p.capturing = *state.Capturing
	}
}

// Observe keeps the cached state in line with the events the page forwards.
func (p *RemotePlatform) Observe(ev proctor.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev.Type {
	case proctor.EventFullscreenChange:
		p.fullscreen = ev.Fullscreen
	case proctor.EventResize, proctor.EventOrientationChange:
		if size := (proctor.Size{Width: ev.Width, Height: ev.Height}); size.Valid() {
			p.viewport = size
		}
	}
}

func (p *RemotePlatform) UserAgent() string   { return p.userAgent }
func (p *RemotePlatform) MaxTouchPoints() int { return p.touchPoints }

func (p *RemotePlatform) IsFullscreen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fullscreen
}

func (p *RemotePlatform) RequestFullscreen(ctx context.Context) error {
	return p.Push(Command{Name: CmdRequestFullscreen})
}

func (p *RemotePlatform) ExitFullscreen(ctx context.Context) error {
	return p.Push(Command{Name: CmdExitFullscreen})
}

func (p *RemotePlatform) LockOrientation(ctx context.Context, orientation proctor.Orientation) error {
	return p.Push(Command{Name: CmdLockOrientation, Orientation: orientation})
}

func (p *RemotePlatform) PushHistoryState() error {
	return p.Push(Command{Name: CmdPushHistory})
}

func (p *RemotePlatform) InjectStyle(css string) error {
	return p.Push(Command{Name: CmdInjectStyle, CSS: css})
}

func (p *RemotePlatform) Viewport() (proctor.Size, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport, p.viewport.Valid()
}

// ReadClipboardText asks the page for a fresh sample and returns the previous one. A sample is returned
// at most once.
func (p *RemotePlatform) ReadClipboardText(ctx context.Context) (string, error) {
	if err := p.Push(Command{Name: CmdReadClipboard}); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	text := p.clipboard
	p.clipboard = ""
	return text, nil
}

func (p *RemotePlatform) ScreenCaptureActive(ctx context.Context) (bool, error) {
	if err := p.Push(Command{Name: CmdProbeCapture}); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capturing, nil
}
