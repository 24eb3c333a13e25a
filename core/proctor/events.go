package proctor

import "strings"

type EventType string

const (
	EventFullscreenChange  EventType = "fullscreenchange"
	EventVisibilityChange  EventType = "visibilitychange"
	EventBlur              EventType = "blur"
	EventFocus             EventType = "focus"
	EventKeyDown           EventType = "keydown"
	EventContextMenu       EventType = "contextmenu"
	EventCopy              EventType = "copy"
	EventCut               EventType = "cut"
	EventPaste             EventType = "paste"
	EventResize            EventType = "resize"
	EventOrientationChange EventType = "orientationchange"
	EventTouchStart        EventType = "touchstart"
	EventPopState          EventType = "popstate"
	// EventActivity covers pointer, scroll and input activity that only feeds the inactivity check.
	EventActivity EventType = "activity"
)

var EventTypes = []EventType{
	EventFullscreenChange,
	EventVisibilityChange,
	EventBlur,
	EventFocus,
	EventKeyDown,
	EventContextMenu,
	EventCopy,
	EventCut,
	EventPaste,
	EventResize,
	EventOrientationChange,
	EventTouchStart,
	EventPopState,
	EventActivity,
}

func (t EventType) Valid() bool {
	for _, et := range EventTypes {
		if t == et {
			return true
		}
	}
	return false
}

// Event is a DOM signal as observed by the page. Only the fields relevant to Type are set.
type Event struct {
	Type EventType `json:"type" validate:"required,eventtype"`

	Fullscreen bool `json:"fullscreen,omitempty"` // fullscreenchange
	Hidden     bool `json:"hidden,omitempty"`     // visibilitychange

	// keydown
	Key   string `json:"key,omitempty"`
	Code  string `json:"code,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`

	Touches int `json:"touches,omitempty"` // touchstart

	// resize, orientationchange
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Outcome tells the page what to do with the event it forwarded.
type Outcome struct {
	PreventDefault bool       `json:"prevent_default"`
	Violation      *Violation `json:"violation,omitempty"`
}

// Combo renders the modifiers and key of a keydown, e.g. "Ctrl+Shift+I".
func (ev Event) Combo() string {
	parts := make([]string, 0, 5)
	if ev.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if ev.Meta {
		parts = append(parts, "Meta")
	}
	if ev.Alt {
		parts = append(parts, "Alt")
	}
	if ev.Shift {
		parts = append(parts, "Shift")
	}
	return strings.Join(append(parts, ev.normalizedKey()), "+")
}

func (ev Event) normalizedKey() string {
	if len([]rune(ev.Key)) == 1 {
		return strings.ToUpper(ev.Key)
	}
	return ev.Key
}

func (ev Event) keyIs(keys ...string) bool {
	key := ev.normalizedKey()
	for _, k := range keys {
		if key == k || ev.Code == "Key"+k || ev.Code == "Digit"+k {
			return true
		}
	}
	return false
}
