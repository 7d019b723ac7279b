package proctor

import (
	"strings"
	"testing"

	"github.com/codearena/codearena-backend/internal/model"
)

func TestVisibilityDetectorEdgeTriggered(t *testing.T) {
	var fired []model.ViolationKind
	var d VisibilityDetector
	d.Observe(func(k model.ViolationKind) { fired = append(fired, k) })

	d.Report(false) // visible: nothing
	d.Report(true)  // hidden: fires once
	d.Report(true)  // still hidden: no repeat
	d.Report(false)
	d.Report(true) // hidden again: fires

	if len(fired) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(fired))
	}
	for _, k := range fired {
		if k != model.ViolationTabSwitch {
			t.Fatalf("expected tab_switch, got %s", k)
		}
	}
}

func TestFullscreenDetectorOnlyFiresOnExit(t *testing.T) {
	var fired int
	var d FullscreenDetector
	d.Observe(func(model.ViolationKind) { fired++ })

	d.Report(false) // never entered: exit cannot fire
	if fired != 0 {
		t.Fatalf("fired before entering fullscreen")
	}

	d.Report(true)
	d.Report(true)
	if fired != 0 {
		t.Fatalf("fired while in fullscreen")
	}

	d.Report(false)
	d.Report(false)
	if fired != 1 {
		t.Fatalf("expected exactly 1 exit violation, got %d", fired)
	}
}

func TestPasteInterceptorThreshold(t *testing.T) {
	var fired int
	d := PasteInterceptor{Threshold: 50}
	d.Observe(func(model.ViolationKind) { fired++ })

	d.Paste(strings.Repeat("a", 50))
	if fired != 0 {
		t.Fatalf("50 chars must not be a violation")
	}

	d.Paste(strings.Repeat("a", 51))
	if fired != 1 {
		t.Fatalf("51 chars must produce exactly one violation, got %d", fired)
	}
}

func TestPasteInterceptorCountsCharactersNotBytes(t *testing.T) {
	var fired int
	d := PasteInterceptor{Threshold: 50}
	d.Observe(func(model.ViolationKind) { fired++ })

	// 50 two-byte characters: exactly at the threshold, not over it.
	d.Paste(strings.Repeat("é", 50))
	if fired != 0 {
		t.Fatalf("50-character multibyte paste flagged as a violation")
	}

	d.Paste(strings.Repeat("é", 51))
	if fired != 1 {
		t.Fatalf("51-character multibyte paste must fire, got %d", fired)
	}
}

func TestUnsubscribeRemovesListener(t *testing.T) {
	var fired int
	var d VisibilityDetector
	unsub := d.Observe(func(model.ViolationKind) { fired++ })

	d.Report(true)
	if fired != 1 {
		t.Fatalf("expected callback before unsubscribe")
	}

	unsub()
	unsub() // double unsubscribe is safe

	d.Report(false)
	d.Report(true)
	if fired != 1 {
		t.Fatalf("callback fired after unsubscribe")
	}
}
