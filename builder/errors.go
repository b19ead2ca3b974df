package builder

import (
	"fmt"

	"github.com/crddagt/taskgraph/crdgraph"
)

// GraphValidationError wraps the Diagnostics a sealed Build() rejected,
// letting callers both get a plain error and, via errors.As, inspect every
// finding rather than just the first one.
type GraphValidationError struct {
	Diagnostics *crdgraph.Diagnostics
}

func (e *GraphValidationError) Error() string {
	errs := e.Diagnostics.Errors()
	return fmt.Sprintf("builder: graph failed sealed validation with %d error(s), first: %s", len(errs), firstMessage(errs))
}

func firstMessage(items []crdgraph.DiagnosticItem) string {
	if len(items) == 0 {
		return "(none)"
	}
	return items[0].Message
}

// ErrUnknownStepObject is returned when LinkSteps/AddField is given a step
// object the builder never saw via AddStep.
var ErrUnknownStepObject = fmt.Errorf("builder: step object was never registered via AddStep")

// ErrUnknownFieldObject is returned when LinkFields is given a field object
// the builder never saw via AddField.
var ErrUnknownFieldObject = fmt.Errorf("builder: field object was never registered via AddField")

// ErrDuplicateStepObject is returned when AddStep is called twice with the
// same step object identity.
var ErrDuplicateStepObject = fmt.Errorf("builder: step object already registered")

// ErrDuplicateFieldObject is returned when AddField is called twice with
// the same field object identity.
var ErrDuplicateFieldObject = fmt.Errorf("builder: field object already registered")
