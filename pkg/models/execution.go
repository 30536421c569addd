package models

import "time"

// Execution is the durable audit record of one workflow run. The engine
// writes it through the persistence collaborator; it is never read back
// into the in-memory loop except for the cancellation flag.
type Execution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	CurrentStep int             `json:"current_step"`
	TotalSteps  int             `json:"total_steps"`
	State       map[string]any  `json:"state,omitempty"`
	Output      map[string]any  `json:"output,omitempty"`
	Cost        float64         `json:"cost"`
	Tokens      int64           `json:"tokens"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// StepExecution is the durable audit record of one step attempt within a
// run, including the resolved input and retry accounting.
type StepExecution struct {
	ID              string         `json:"id"`
	ExecutionID     string         `json:"execution_id"`
	WorkflowID      string         `json:"workflow_id"`
	StepNumber      int            `json:"step_number"`
	StepSlug        string         `json:"step_slug"`
	Status          StepStatus     `json:"status"`
	ResolvedInput   map[string]any `json:"resolved_input,omitempty"`
	ToolOutput      any            `json:"tool_output,omitempty"`
	ReasoningOutput map[string]any `json:"reasoning_output,omitempty"`
	Error           string         `json:"error,omitempty"`
	RetryCount      int            `json:"retry_count"`
	Cost            float64        `json:"cost"`
	Tokens          int64          `json:"tokens"`
	DurationMs      int64          `json:"duration_ms"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}
