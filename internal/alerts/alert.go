// Package alerts decides which typed alert events are delivered.
//
// The Engine keeps three pieces of state shared by every alert producer in
// the process: the last emission time per (camera, type), the notification
// thread opened by that emission, and a per-type correlation window that
// collects the cameras reporting the same type. The read-decide-commit step
// of Submit holds the engine mutex; every notification call happens after it
// is released.
package alerts

import (
	"fmt"
	"strings"
)

// Alert is a typed event raised against one camera. Timestamp is in
// fractional unix seconds.
type Alert struct {
	Type       string  `json:"type"`
	CameraID   string  `json:"camera_id"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
	Timestamp  float64 `json:"ts"`
}

// Validate checks the fields every producer must fill in.
func (a Alert) Validate() error {
	if strings.TrimSpace(a.Type) == "" {
		return fmt.Errorf("alert type is required")
	}
	if strings.TrimSpace(a.CameraID) == "" {
		return fmt.Errorf("camera_id is required")
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %f", a.Confidence)
	}
	return nil
}

// Key identifies the dedupe and thread state of one camera and alert type.
type Key struct {
	CameraID string
	Type     string
}

// KeyOf returns the dedupe key for a.
func KeyOf(a Alert) Key {
	return Key{CameraID: a.CameraID, Type: a.Type}
}

// ThreadHandle is the opaque conversation id returned by a notification
// channel for a primary post. The zero value means no thread.
type ThreadHandle string

// ClipURLs are the media links attached to an alert thread once a clip is
// ready. Either may be empty.
type ClipURLs struct {
	Video   string `json:"mp4,omitempty"`
	Preview string `json:"gif,omitempty"`
}

// Decision is the result of Engine.Submit.
type Decision struct {
	Emitted           bool         `json:"emitted"`
	Thread            ThreadHandle `json:"thread,omitempty"`
	CorrelationPosted bool         `json:"correlation_posted"`
}
