package proctortest

import (
	"context"
	"sync"

	"github.com/trezcool/examguard/core/proctor"
)

const (
	DesktopUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	AndroidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36"
	IPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

// Platform is an in-memory proctor.Platform. Each capability call is appended to Calls; the *Err fields
// make the matching call fail.
type Platform struct {
	mu sync.Mutex

	UA          string
	TouchPoints int
	Fullscreen  bool
	Size        proctor.Size
	Clipboard   string
	Capturing   bool
	Calls       []string

	FullscreenErr  error
	OrientationErr error
	HistoryErr     error
	StyleErr       error
	ClipboardErr   error
	CaptureErr     error
}

var _ proctor.Platform = (*Platform)(nil)

func NewDesktop() *Platform {
	return &Platform{UA: DesktopUA, Size: proctor.Size{Width: 1280, Height: 800}}
}

func NewAndroid(width, height int) *Platform {
	return &Platform{UA: AndroidUA, TouchPoints: 5, Size: proctor.Size{Width: width, Height: height}}
}

func (p *Platform) call(name string, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, name)
	return err
}

// CallCount returns how many times the named capability was called.
func (p *Platform) CallCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, c := range p.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (p *Platform) SetViewport(width, height int) {
	p.mu.Lock()
	p.Size = proctor.Size{Width: width, Height: height}
	p.mu.Unlock()
}

func (p *Platform) SetClipboard(text string) {
	p.mu.Lock()
	p.Clipboard = text
	p.mu.Unlock()
}

func (p *Platform) SetCapturing(capturing bool) {
	p.mu.Lock()
	p.Capturing = capturing
	p.mu.Unlock()
}

func (p *Platform) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.UA
}

func (p *Platform) MaxTouchPoints() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TouchPoints
}

func (p *Platform) IsFullscreen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Fullscreen
}

func (p *Platform) RequestFullscreen(ctx context.Context) error {
	if err := p.call("RequestFullscreen", p.FullscreenErr); err != nil {
		return err
	}
	p.mu.Lock()
	p.Fullscreen = true
	p.mu.Unlock()
	return nil
}

func (p *Platform) ExitFullscreen(ctx context.Context) error {
	if err := p.call("ExitFullscreen", p.FullscreenErr); err != nil {
		return err
	}
	p.mu.Lock()
	p.Fullscreen = false
	p.mu.Unlock()
	return nil
}

func (p *Platform) LockOrientation(ctx context.Context, orientation proctor.Orientation) error {
	return p.call("LockOrientation", p.OrientationErr)
}

func (p *Platform) PushHistoryState() error {
	return p.call("PushHistoryState", p.HistoryErr)
}

func (p *Platform) InjectStyle(css string) error {
	return p.call("InjectStyle", p.StyleErr)
}

func (p *Platform) Viewport() (proctor.Size, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Size, p.Size.Valid()
}

func (p *Platform) ReadClipboardText(ctx context.Context) (string, error) {
	if err := p.call("ReadClipboardText", p.ClipboardErr); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Clipboard, nil
}

func (p *Platform) ScreenCaptureActive(ctx context.Context) (bool, error) {
	if err := p.call("ScreenCaptureActive", p.CaptureErr); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Capturing, nil
}
