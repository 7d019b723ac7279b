package proctor

import (
	"sync"
	"unicode/utf8"

	"github.com/codearena/codearena-backend/internal/model"
)

// Unsubscribe removes a previously registered detector callback. Calling
// it more than once is safe.
type Unsubscribe func()

// Detectors are stateless signal sources: each observes one class of raw
// platform event reported by the client and reports a violation kind to
// its callback. They hold no policy state — counting, warnings and
// disqualification live in the Session.

// VisibilityDetector fires ViolationTabSwitch exactly once per transition
// of the page into a hidden state. Repeated "hidden" reports without an
// intervening "visible" report are ignored.
type VisibilityDetector struct {
	mu     sync.Mutex
	hidden bool
	cb     func(model.ViolationKind)
}

// Observe registers the callback. Only one observer is supported; the
// session owns exactly one live registration set at a time.
func (d *VisibilityDetector) Observe(cb func(model.ViolationKind)) Unsubscribe {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.cb = nil
		d.mu.Unlock()
	}
}

// Report feeds the detector the page's current visibility.
func (d *VisibilityDetector) Report(hidden bool) {
	d.mu.Lock()
	wasHidden := d.hidden
	d.hidden = hidden
	cb := d.cb
	d.mu.Unlock()

	if cb != nil && hidden && !wasHidden {
		cb(model.ViolationTabSwitch)
	}
}

// FullscreenDetector fires ViolationFullscreenExit exactly once per
// transition out of fullscreen. The initial state is "not fullscreen",
// so nothing fires until the client has actually entered fullscreen.
type FullscreenDetector struct {
	mu         sync.Mutex
	fullscreen bool
	cb         func(model.ViolationKind)
}

// Observe registers the callback.
func (d *FullscreenDetector) Observe(cb func(model.ViolationKind)) Unsubscribe {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.cb = nil
		d.mu.Unlock()
	}
}

// Report feeds the detector the client's current fullscreen state.
func (d *FullscreenDetector) Report(fullscreen bool) {
	d.mu.Lock()
	wasFullscreen := d.fullscreen
	d.fullscreen = fullscreen
	cb := d.cb
	d.mu.Unlock()

	if cb != nil && wasFullscreen && !fullscreen {
		cb(model.ViolationFullscreenExit)
	}
}

// PasteInterceptor is not an ambient listener: the editor calls it
// explicitly with the pasted text. It reports ViolationPasteAbuse only
// when the text exceeds the threshold, and never blocks the paste —
// detection, not prevention.
type PasteInterceptor struct {
	Threshold int

	mu sync.Mutex
	cb func(model.ViolationKind)
}

// Observe registers the callback.
func (d *PasteInterceptor) Observe(cb func(model.ViolationKind)) Unsubscribe {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.cb = nil
		d.mu.Unlock()
	}
}

// Paste inspects pasted text and reports at most one violation. The
// threshold is in characters, not bytes: a multibyte paste must not be
// over-counted.
func (d *PasteInterceptor) Paste(text string) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()

	if cb != nil && utf8.RuneCountInString(text) > d.Threshold {
		cb(model.ViolationPasteAbuse)
	}
}
