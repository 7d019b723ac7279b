package proctor

import (
	"fmt"

	"github.com/codearena/codearena-backend/internal/model"
)

// Decision is the outcome of applying the infraction policy to one new
// violation.
type Decision struct {
	NewCount     uint
	Disqualified bool
	Message      string
}

// Decide applies the strike policy to the current infraction count.
// Pure and total: no I/O, no session state. The count always advances by
// one; at max strikes the participant is out, otherwise they get a
// warning naming how many strikes remain.
func Decide(currentCount, max uint, kind model.ViolationKind) Decision {
	newCount := currentCount + 1
	reason := kind.Reason()

	if newCount >= max {
		return Decision{
			NewCount:     newCount,
			Disqualified: true,
			Message:      fmt.Sprintf("Disqualified for %s.", reason),
		}
	}

	remaining := max - newCount
	return Decision{
		NewCount:     newCount,
		Disqualified: false,
		Message:      fmt.Sprintf("Warning: Infraction detected for %s. You have %d warning(s) left.", reason, remaining),
	}
}
