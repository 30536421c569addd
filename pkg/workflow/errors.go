// Package workflow is the execution engine core: condition evaluation,
// budget enforcement, step execution with retry, interleaved reasoning,
// output projection and the orchestrator loop.
package workflow

import (
	"errors"
	"fmt"
)

// Step error classes. Step-level errors are captured into the step's
// result and the accumulated state, never thrown past the executor.
const (
	ErrClassTemplate   = "template_error"
	ErrClassCapability = "capability_error"
	ErrClassReasoning  = "reasoning_error"
	ErrClassBudget     = "budget_violation"
	ErrClassSkipped    = "skipped"
)

// Workflow-level precondition violations are the one case the engine
// raises directly to its caller instead of encoding in a result.
var (
	ErrNotRunnable = errors.New("workflow is not active")
	ErrNilWorkflow = errors.New("workflow is nil")
)

// stepError renders a classified step error message for results and
// audit records.
func stepError(class, format string, args ...any) string {
	return class + ": " + fmt.Sprintf(format, args...)
}
