package models

// CapabilityKind selects which dispatch variant a step invokes.
type CapabilityKind string

const (
	// CapabilityAction is a directly-addressable action identified by
	// "namespace/name". Actions carry no inherent cost.
	CapabilityAction CapabilityKind = "action"

	// CapabilityTool is a composed multi-action tool with the same
	// input/output shape as an action.
	CapabilityTool CapabilityKind = "tool"

	// CapabilityAgent is an LLM-driven tool that accepts a natural
	// language task and reports its own accrued cost.
	CapabilityAgent CapabilityKind = "agent"
)

// CapabilityRef names the capability a step dispatches to. Steps without
// a capability reference are reasoning-only.
type CapabilityRef struct {
	Kind       CapabilityKind `json:"kind"       validate:"required,oneof=action tool agent"`
	Identifier string         `json:"identifier" validate:"required"`
}

// ErrorPolicy decides what a step failure does to the rest of the run.
type ErrorPolicy string

const (
	ErrorPolicyStop          ErrorPolicy = "stop"
	ErrorPolicyStopRemaining ErrorPolicy = "stop-remaining"
	ErrorPolicyContinue      ErrorPolicy = "continue"
)

// SkipWhen selects which truthiness of the condition expression skips the step.
type SkipWhen string

const (
	SkipWhenTruthy SkipWhen = "truthy"
	SkipWhenFalsy  SkipWhen = "falsy"
)

// SkipCondition is an optional per-step condition. The expression is
// resolved against current state and converted to a boolean.
type SkipCondition struct {
	Expression string   `json:"expression" validate:"required"`
	When       SkipWhen `json:"when"       validate:"required,oneof=truthy falsy"`
}

// RetryPolicy bounds capability dispatch retries. Attempt k (k>=1) waits
// backoff_ms * 2^(k-1) before retrying; the attempt count is audited.
type RetryPolicy struct {
	MaxRetries int   `json:"max_retries"          validate:"min=0"`
	BackoffMs  int64 `json:"backoff_ms,omitempty" validate:"min=0"`
}

// DefaultBackoffMs is used when a retrying step does not set a backoff base.
const DefaultBackoffMs = 1000

// EffectiveBackoffMs returns the backoff base in milliseconds.
func (r RetryPolicy) EffectiveBackoffMs() int64 {
	if r.BackoffMs > 0 {
		return r.BackoffMs
	}

	return DefaultBackoffMs
}

// StepReasoning enables an interleaved reasoning call after the step's
// capability dispatch, with optional per-step configuration override.
type StepReasoning struct {
	Prompt string           `json:"prompt" validate:"required"`
	Config *ReasoningConfig `json:"config,omitempty"`
}

// Step is one unit of work: a capability invocation, a reasoning call,
// or both. Slugs are unique within a workflow and are how later steps
// reference this step's recorded result.
type Step struct {
	Number     int            `json:"number" validate:"required,min=1"`
	Name       string         `json:"name"   validate:"required"`
	Slug       string         `json:"slug"   validate:"required,lowercase"`
	Capability *CapabilityRef `json:"capability,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	OnError    ErrorPolicy    `json:"on_error,omitempty" validate:"omitempty,oneof=stop stop-remaining continue"`
	Retry      RetryPolicy    `json:"retry"`
	Skip       *SkipCondition `json:"skip,omitempty"`
	Reasoning  *StepReasoning `json:"reasoning,omitempty"`
}

// EffectiveErrorPolicy defaults to stop when the step does not set one.
func (s *Step) EffectiveErrorPolicy() ErrorPolicy {
	if s.OnError == "" {
		return ErrorPolicyStop
	}

	return s.OnError
}

// ReasoningOnly reports whether the step has no capability to dispatch.
func (s *Step) ReasoningOnly() bool {
	return s.Capability == nil
}
