package capability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weftworks/weft/pkg/expr"
	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/state"
)

// ToolStep is one action invocation inside a composed tool. Its input
// template is resolved against the tool's own accumulating state:
// {{input.*}} is the tool invocation input, {{steps.<name>.output.*}}
// the outputs of prior tool steps.
type ToolStep struct {
	Name   string         `json:"name"`
	Action string         `json:"action"`
	Input  map[string]any `json:"input,omitempty"`
}

// ToolDefinition is a composed multi-action tool: an ordered action
// sequence sharing the action input/output shape, presented to the
// dispatcher as one capability.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []ToolStep     `json:"steps"`
	Output      map[string]any `json:"output,omitempty"`
}

func (t *ToolDefinition) validate(r *Registry) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}

	if len(t.Steps) == 0 {
		return fmt.Errorf("tool %q has no steps", t.Name)
	}

	seen := make(map[string]struct{}, len(t.Steps))

	for _, step := range t.Steps {
		if step.Name == "" {
			return fmt.Errorf("tool %q has a step without a name", t.Name)
		}

		if _, dup := seen[step.Name]; dup {
			return fmt.Errorf("tool %q has duplicate step %q", t.Name, step.Name)
		}

		seen[step.Name] = struct{}{}

		if _, ok := r.Action(step.Action); !ok {
			return fmt.Errorf("tool %q step %q references unregistered action %q", t.Name, step.Name, step.Action)
		}
	}

	return nil
}

// run executes the composed sequence. The tool threads its own
// immutable state between actions, exactly as the engine does between
// workflow steps.
func (t *ToolDefinition) run(ctx context.Context, r *Registry, input map[string]any, logger *slog.Logger) (any, error) {
	st := state.New(input)

	var lastOutput any

	for _, step := range t.Steps {
		action, ok := r.Action(step.Action)
		if !ok {
			return nil, fmt.Errorf("step %q: action %q not registered", step.Name, step.Action)
		}

		resolved, err := expr.ResolveValue(st, step.Input)
		if err != nil {
			return nil, fmt.Errorf("step %q: resolving input: %w", step.Name, err)
		}

		resolvedInput, _ := resolved.(map[string]any)

		output, err := action.Execute(ctx, resolvedInput, logger.With("tool", t.Name, "tool_step", step.Name))
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}

		st = st.Record(step.Name, models.StepResult{
			Output: output,
			Status: models.StepStatusCompleted,
		})
		lastOutput = output
	}

	if t.Output == nil {
		return lastOutput, nil
	}

	projected, err := expr.ResolveValue(st, t.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving tool output: %w", err)
	}

	return projected, nil
}
