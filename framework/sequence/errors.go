package sequence

import (
	"errors"
	"fmt"
)

// TerminationError reports a second terminal-action invocation within one
// unit of work: the pipeline already ran send or reject, and running either
// again would double-write the response.
type TerminationError struct {
	// Action is the terminal action that was refused.
	Action string
	// Finished is the terminal action that already ran.
	Finished string
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("sequence: [%s] refused, unit of work already terminated by [%s]", e.Action, e.Finished)
}

func IsTermination(err error) bool {
	var target *TerminationError
	return errors.As(err, &target)
}
