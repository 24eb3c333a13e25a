package proctor

import "regexp"

var (
	mobileUARegex  = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)
	androidUARegex = regexp.MustCompile(`(?i)android`)
)

// androidStyle blocks text selection and long-press callouts while keeping form fields selectable and the
// page vertically scrollable.
const androidStyle = `body, body * {
  -webkit-user-select: none;
  user-select: none;
  -webkit-touch-callout: none;
}
input, textarea, [contenteditable="true"] {
  -webkit-user-select: text;
  user-select: text;
}
html, body {
  touch-action: pan-y;
  overscroll-behavior-y: contain;
}`

// Device is the heuristic classification of the client.
type Device struct {
	Mobile  bool `json:"mobile"`
	Android bool `json:"android"`
	Touch   bool `json:"touch"`
}

// DetectDevice classifies a client from its user agent and touch support. Both checks are heuristics.
func DetectDevice(userAgent string, maxTouchPoints int) Device {
	touch := maxTouchPoints > 0
	return Device{
		Mobile:  touch || mobileUARegex.MatchString(userAgent),
		Android: androidUARegex.MatchString(userAgent),
		Touch:   touch,
	}
}
