package proctor_test

import (
	"testing"

	"github.com/trezcool/examguard/core/proctor"
)

func TestMonitor_keyboard(t *testing.T) {
	allOn := func(o *proctor.Options) {
		o.EnableDevTools = true
		o.EnableScreenshot = true
		o.EnableCopyCutPaste = true
	}
	allOff := func(o *proctor.Options) {
		o.EnableDevTools = false
		o.EnableScreenshot = false
		o.EnableCopyCutPaste = false
	}
	key := func(k string, mods ...string) proctor.Event {
		e := proctor.Event{Type: proctor.EventKeyDown, Key: k}
		for _, m := range mods {
			switch m {
			case "ctrl":
				e.Ctrl = true
			case "shift":
				e.Shift = true
			case "alt":
				e.Alt = true
			case "meta":
				e.Meta = true
			}
		}
		return e
	}

	tests := []struct {
		name        string
		opts        func(*proctor.Options)
		event       proctor.Event
		wantPrevent bool
		wantKind    proctor.Kind
	}{
		{name: "F12", opts: allOn, event: key("F12"), wantPrevent: true, wantKind: proctor.KindDevToolsAttempt},
		{name: "Ctrl+Shift+I", opts: allOn, event: key("I", "ctrl", "shift"), wantPrevent: true, wantKind: proctor.KindDevToolsAttempt},
		{name: "Ctrl+Shift+j", opts: allOn, event: key("j", "ctrl", "shift"), wantPrevent: true, wantKind: proctor.KindDevToolsAttempt},
		{name: "Ctrl+Shift+C is devtools first", opts: allOn, event: key("C", "ctrl", "shift"), wantPrevent: true, wantKind: proctor.KindDevToolsAttempt},
		{name: "Ctrl+U", opts: allOn, event: key("u", "ctrl"), wantPrevent: true, wantKind: proctor.KindDevToolsAttempt},
		{name: "PrintScreen", opts: allOn, event: key("PrintScreen"), wantPrevent: true, wantKind: proctor.KindScreenshotAttempt},
		{name: "Alt+PrintScreen", opts: allOn, event: key("PrintScreen", "alt"), wantPrevent: true, wantKind: proctor.KindScreenshotAttempt},
		{name: "Cmd+Shift+3", opts: allOn, event: key("3", "meta", "shift"), wantPrevent: true, wantKind: proctor.KindScreenshotAttempt},
		{
			name: "Cmd+Shift+4 by code", opts: allOn, wantPrevent: true, wantKind: proctor.KindScreenshotAttempt,
			event: proctor.Event{Type: proctor.EventKeyDown, Key: "$", Code: "Digit4", Meta: true, Shift: true},
		},
		{name: "Cmd+Shift+6", opts: allOn, event: key("6", "meta", "shift")},
		{name: "Ctrl+C", opts: allOn, event: key("c", "ctrl"), wantPrevent: true, wantKind: proctor.KindCopyPasteAttempt},
		{name: "Cmd+V", opts: allOn, event: key("v", "meta"), wantPrevent: true, wantKind: proctor.KindCopyPasteAttempt},
		{name: "Ctrl+X", opts: allOn, event: key("x", "ctrl"), wantPrevent: true, wantKind: proctor.KindCopyPasteAttempt},
		{name: "Ctrl+A", opts: allOn, event: key("A", "ctrl"), wantPrevent: true, wantKind: proctor.KindCopyPasteAttempt},
		{name: "plain c", opts: allOn, event: key("c")},
		{name: "Ctrl+C restriction off", opts: allOff, event: key("c", "ctrl")},
		{name: "F12 restriction off", opts: allOff, event: key("F12")},
		{name: "PrintScreen restriction off", opts: allOff, event: key("PrintScreen")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := desktopHarness(t, tt.opts)
			h.startPastGrace()
			out := h.fire(tt.event)
			if out.PreventDefault != tt.wantPrevent {
				t.Errorf("PreventDefault = %t; want %t", out.PreventDefault, tt.wantPrevent)
			}
			if tt.wantKind == "" {
				h.checkKinds(t)
				return
			}
			h.checkKinds(t, tt.wantKind)
		})
	}
}

func TestMonitor_keyboardSuppressedDuringGrace(t *testing.T) {
	h := desktopHarness(t, func(o *proctor.Options) { o.EnableCopyCutPaste = true })
	h.mon.StartTracking()
	out := h.fire(proctor.Event{Type: proctor.EventKeyDown, Key: "v", Ctrl: true})
	if !out.PreventDefault {
		t.Error("PreventDefault = false; want true while in grace period")
	}
	if out.Violation != nil {
		t.Errorf("Violation = %+v; want nil while in grace period", out.Violation)
	}
	h.checkKinds(t)
}

func TestMonitor_contextMenu(t *testing.T) {
	t.Run("desktop right click", func(t *testing.T) {
		h := desktopHarness(t, func(o *proctor.Options) { o.EnableRightClick = true })
		h.startPastGrace()
		if out := h.fire(ev(proctor.EventContextMenu)); !out.PreventDefault {
			t.Error("PreventDefault = false; want true")
		}
		h.checkKinds(t, proctor.KindRightClick)
	})

	t.Run("desktop restriction off", func(t *testing.T) {
		h := desktopHarness(t)
		h.startPastGrace()
		if out := h.fire(ev(proctor.EventContextMenu)); out.PreventDefault {
			t.Error("PreventDefault = true; want false")
		}
		h.checkKinds(t)
	})

	t.Run("mobile long press", func(t *testing.T) {
		h := androidHarness(t, 800, 600)
		h.startPastGrace()
		if out := h.fire(ev(proctor.EventContextMenu)); !out.PreventDefault {
			t.Error("PreventDefault = false; want true")
		}
		h.checkKinds(t, proctor.KindMobileContextMenu)
	})
}

func TestMonitor_clipboardEvents(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		event       proctor.EventType
		wantPrevent bool
		wantKinds   []proctor.Kind
	}{
		{name: "copy", enabled: true, event: proctor.EventCopy, wantPrevent: true, wantKinds: []proctor.Kind{proctor.KindCopyAttempt}},
		{name: "cut", enabled: true, event: proctor.EventCut, wantPrevent: true, wantKinds: []proctor.Kind{proctor.KindCopyAttempt}},
		{name: "paste", enabled: true, event: proctor.EventPaste, wantPrevent: true, wantKinds: []proctor.Kind{proctor.KindPasteAttempt}},
		{name: "paste restriction off", event: proctor.EventPaste},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := desktopHarness(t, func(o *proctor.Options) { o.EnableCopyCutPaste = tt.enabled })
			h.startPastGrace()
			if out := h.fire(ev(tt.event)); out.PreventDefault != tt.wantPrevent {
				t.Errorf("PreventDefault = %t; want %t", out.PreventDefault, tt.wantPrevent)
			}
			h.checkKinds(t, tt.wantKinds...)
		})
	}
}

func TestEvent_Combo(t *testing.T) {
	e := proctor.Event{Type: proctor.EventKeyDown, Key: "i", Ctrl: true, Shift: true}
	if got := e.Combo(); got != "Ctrl+Shift+I" {
		t.Errorf("Combo() = %q; want %q", got, "Ctrl+Shift+I")
	}
}
