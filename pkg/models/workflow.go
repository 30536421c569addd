// Package models defines the core domain models for linear workflow orchestration.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusDisabled WorkflowStatus = "disabled" // Historical, not executable
)

// Budget defaults applied when a workflow does not override them.
const (
	DefaultMaxCost            = 5.0
	DefaultMaxDurationSeconds = 1800
)

// Workflow is an ordered sequence of steps plus the execution policy that
// governs one run: budget ceilings, default reasoning configuration and
// the projection of the final output. Definitions are immutable for the
// duration of an execution.
type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"        validate:"required,min=3"`
	Description string            `json:"description"`
	Status      WorkflowStatus    `json:"status"      validate:"required,oneof=draft active disabled"`
	Steps       []*Step           `json:"steps"       validate:"dive"`
	Budget      BudgetConfig      `json:"budget"`
	Reasoning   ReasoningConfig   `json:"reasoning"`
	Output      *OutputSpec       `json:"output,omitempty"`
	Owner       string            `json:"owner,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// BudgetConfig caps what one execution may spend. Zero values mean
// "use the default", not "unlimited".
type BudgetConfig struct {
	MaxCost            float64 `json:"max_cost,omitempty"             validate:"omitempty,gt=0"`
	MaxDurationSeconds int64   `json:"max_duration_seconds,omitempty" validate:"omitempty,gt=0"`
}

// EffectiveMaxCost returns the configured cost ceiling in USD, or the default.
func (b BudgetConfig) EffectiveMaxCost() float64 {
	if b.MaxCost > 0 {
		return b.MaxCost
	}

	return DefaultMaxCost
}

// EffectiveMaxDuration returns the configured wall-clock ceiling, or the default.
func (b BudgetConfig) EffectiveMaxDuration() time.Duration {
	seconds := b.MaxDurationSeconds
	if seconds <= 0 {
		seconds = DefaultMaxDurationSeconds
	}

	return time.Duration(seconds) * time.Second
}

// ReasoningConfig is the language-model configuration for reasoning calls.
// A step-level config overrides the workflow-level one field by field.
type ReasoningConfig struct {
	Provider     string         `json:"provider,omitempty"`
	Model        string         `json:"model,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
	MaxTokens    int            `json:"max_tokens,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
}

// Merge returns the effective configuration with override fields, when
// set, taking precedence over the receiver's.
func (c ReasoningConfig) Merge(override *ReasoningConfig) ReasoningConfig {
	if override == nil {
		return c
	}

	merged := c
	if override.Provider != "" {
		merged.Provider = override.Provider
	}

	if override.Model != "" {
		merged.Model = override.Model
	}

	if override.Temperature != nil {
		merged.Temperature = override.Temperature
	}

	if override.MaxTokens > 0 {
		merged.MaxTokens = override.MaxTokens
	}

	if override.OutputSchema != nil {
		merged.OutputSchema = override.OutputSchema
	}

	return merged
}

// OutputSpec maps named output fields to expressions resolved against
// terminal state. Fields that fail to resolve are set to null.
type OutputSpec struct {
	Fields          map[string]string `json:"fields"`
	IncludeMetadata bool              `json:"include_metadata,omitempty"`
}
