package attempt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/examguard/core/attempt"
	"github.com/trezcool/examguard/core/proctor"
)

func TestRemotePlatform_Push(t *testing.T) {
	p := attempt.NewRemotePlatform("ua", 0, 2)

	assert.NoError(t, p.Push(attempt.Command{Name: attempt.CmdViolation}))
	assert.NoError(t, p.RequestFullscreen(context.Background()))
	assert.ErrorIs(t, p.PushHistoryState(), attempt.ErrOutboxFull)

	assert.Equal(t, attempt.CmdViolation, (<-p.Commands()).Name)
	assert.Equal(t, attempt.CmdRequestFullscreen, (<-p.Commands()).Name)

	p.Close()
	p.Close()
	assert.ErrorIs(t, p.InjectStyle("*{}"), attempt.ErrPlatformClosed)
	_, ok := <-p.Commands()
	assert.False(t, ok)
}

func TestRemotePlatform_state(t *testing.T) {
	p := attempt.NewRemotePlatform("ua", 5, 8)
	assert.Equal(t, "ua", p.UserAgent())
	assert.Equal(t, 5, p.MaxTouchPoints())

	_, ok := p.Viewport()
	assert.False(t, ok, "no viewport before the page reports one")

	fullscreen, width, height := true, 400, 800
	p.Update(attempt.ClientState{Fullscreen: &fullscreen, Width: &width, Height: &height})
	assert.True(t, p.IsFullscreen())
	size, ok := p.Viewport()
	assert.True(t, ok)
	assert.Equal(t, proctor.Size{Width: 400, Height: 800}, size)

	p.Observe(proctor.Event{Type: proctor.EventFullscreenChange, Fullscreen: false})
	assert.False(t, p.IsFullscreen())
	p.Observe(proctor.Event{Type: proctor.EventOrientationChange, Width: 800, Height: 400})
	size, _ = p.Viewport()
	assert.Equal(t, proctor.Size{Width: 800, Height: 400}, size)
	p.Observe(proctor.Event{Type: proctor.EventResize})
	size, _ = p.Viewport()
	assert.Equal(t, proctor.Size{Width: 800, Height: 400}, size, "empty sizes are ignored")

	// a partial update leaves the other fields alone
	p.Update(attempt.ClientState{})
	size, _ = p.Viewport()
	assert.Equal(t, proctor.Size{Width: 800, Height: 400}, size)
}

func TestRemotePlatform_samples(t *testing.T) {
	ctx := context.Background()
	p := attempt.NewRemotePlatform("ua", 5, 8)

	text := "answer 42"
	capturing := true
	p.Update(attempt.ClientState{Clipboard: &text, Capturing: &capturing})

	got, err := p.ReadClipboardText(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "answer 42", got)
	got, err = p.ReadClipboardText(ctx)
	assert.NoError(t, err)
	assert.Empty(t, got, "a sample is handed out once")

	active, err := p.ScreenCaptureActive(ctx)
	assert.NoError(t, err)
	assert.True(t, active)

	var names []string
	for len(p.Commands()) > 0 {
		names = append(names, (<-p.Commands()).Name)
	}
	assert.Equal(t, []string{attempt.CmdReadClipboard, attempt.CmdReadClipboard, attempt.CmdProbeCapture}, names)

	p.Close()
	_, err = p.ScreenCaptureActive(ctx)
	assert.ErrorIs(t, err, attempt.ErrPlatformClosed)
}
