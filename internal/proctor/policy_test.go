package proctor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/codearena/codearena-backend/internal/model"
)

func TestDecideBelowMaxWarns(t *testing.T) {
	const max = 3
	for n := uint(0); n < max-1; n++ {
		d := Decide(n, max, model.ViolationTabSwitch)
		if d.Disqualified {
			t.Fatalf("count %d: expected warning, got disqualification", n)
		}
		if d.NewCount != n+1 {
			t.Fatalf("count %d: expected new count %d, got %d", n, n+1, d.NewCount)
		}
		want := fmt.Sprintf("You have %d warning(s) left", max-n-1)
		if !strings.Contains(d.Message, want) {
			t.Fatalf("count %d: message %q does not contain %q", n, d.Message, want)
		}
	}
}

func TestDecideAtMaxDisqualifies(t *testing.T) {
	const max = 3
	for n := uint(max - 1); n < max+3; n++ {
		d := Decide(n, max, model.ViolationFullscreenExit)
		if !d.Disqualified {
			t.Fatalf("count %d: expected disqualification", n)
		}
		if !strings.Contains(d.Message, "Disqualified for exiting fullscreen.") {
			t.Fatalf("count %d: unexpected message %q", n, d.Message)
		}
	}
}

func TestDecideReasonMapping(t *testing.T) {
	cases := map[model.ViolationKind]string{
		model.ViolationTabSwitch:      "switching tabs",
		model.ViolationFullscreenExit: "exiting fullscreen",
		model.ViolationPasteAbuse:     "excessive pasting",
	}
	for kind, reason := range cases {
		d := Decide(0, 3, kind)
		if !strings.Contains(d.Message, reason) {
			t.Fatalf("%s: message %q does not mention %q", kind, d.Message, reason)
		}
	}
}
