package models

// StepStatus is the per-step state machine: pending -> running ->
// {completed | failed | skipped}.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// ExecutionStatus is the workflow-level terminal state of one run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusTimeout   ExecutionStatus = "timeout"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// StepResult is the recorded outcome of one step. Once recorded into
// execution state it is never overwritten.
type StepResult struct {
	Output    any            `json:"output,omitempty"`
	Reasoning map[string]any `json:"reasoning,omitempty"`
	Status    StepStatus     `json:"status"`
	Error     string         `json:"error,omitempty"`
}

// Tree returns the result as the nested-map representation the
// expression resolver walks (steps.<slug>.output, .reasoning, .status,
// .error).
func (r StepResult) Tree() map[string]any {
	tree := map[string]any{
		"status": string(r.Status),
	}

	if r.Output != nil {
		tree["output"] = r.Output
	}

	if r.Reasoning != nil {
		tree["reasoning"] = r.Reasoning
	}

	if r.Error != "" {
		tree["error"] = r.Error
	}

	return tree
}
