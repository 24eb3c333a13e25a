package proctor

func isDevToolsShortcut(ev Event) bool {
	if ev.Key == "F12" {
		return true
	}
	if ev.Ctrl && ev.Shift && ev.keyIs("I", "J", "C") {
		return true
	}
	return ev.Ctrl && !ev.Shift && ev.keyIs("U")
}

// isScreenshotShortcut matches PrintScreen (with or without Alt) and Cmd+Shift+3/4/5.
func isScreenshotShortcut(ev Event) bool {
	if ev.Key == "PrintScreen" || ev.Code == "PrintScreen" {
		return true
	}
	return ev.Meta && ev.Shift && ev.keyIs("3", "4", "5")
}

// isClipboardShortcut matches copy, paste, cut and select-all with either Ctrl or Cmd.
func isClipboardShortcut(ev Event) bool {
	return (ev.Ctrl || ev.Meta) && ev.keyIs("C", "V", "X", "A")
}

// onKeyDown checks devtools, then screenshot, then clipboard shortcuts. A matched shortcut of an enabled
// restriction is always suppressed, even when nothing is recorded.
func (m *Monitor) onKeyDown(ev Event, fx *effects) Outcome {
	var (
		kind Kind
		desc string
	)
	switch {
	case m.opts.EnableDevTools && isDevToolsShortcut(ev):
		kind, desc = KindDevToolsAttempt, "developer tools shortcut "+ev.Combo()
	case m.opts.EnableScreenshot && isScreenshotShortcut(ev):
		kind, desc = KindScreenshotAttempt, "screenshot shortcut "+ev.Combo()
	case m.opts.EnableCopyCutPaste && isClipboardShortcut(ev):
		kind, desc = KindCopyPasteAttempt, "clipboard shortcut "+ev.Combo()
	default:
		return Outcome{}
	}
	return Outcome{PreventDefault: true, Violation: recorded(m.record(kind, desc, fx))}
}

func (m *Monitor) onContextMenu(fx *effects) Outcome {
	if m.mobileMode() {
		return Outcome{PreventDefault: true, Violation: recorded(m.record(KindMobileContextMenu, "long-press context menu", fx))}
	}
	if !m.opts.EnableRightClick {
		return Outcome{}
	}
	return Outcome{PreventDefault: true, Violation: recorded(m.record(KindRightClick, "context menu opened", fx))}
}

func (m *Monitor) onClipboardEvent(ev Event, fx *effects) Outcome {
	if !m.opts.EnableCopyCutPaste {
		return Outcome{}
	}
	kind, desc := KindCopyAttempt, "content "+string(ev.Type)+" blocked"
	if ev.Type == EventPaste {
		kind = KindPasteAttempt
	}
	return Outcome{PreventDefault: true, Violation: recorded(m.record(kind, desc, fx))}
}
