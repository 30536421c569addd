package capability

import (
	"context"
	"log/slog"

	"github.com/weftworks/weft/pkg/llm"
	"github.com/weftworks/weft/pkg/models"
)

// Dispatcher implements the uniform invoke contract over the three
// capability kinds. Every failure comes back as a classified Result,
// never as a panic or error that aborts the run.
type Dispatcher struct {
	registry *Registry
	client   llm.Client
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, client llm.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		client:   client,
		logger:   logger,
	}
}

// Invoke dispatches one capability invocation.
func (d *Dispatcher) Invoke(ctx context.Context, ref models.CapabilityRef, input map[string]any, tenant TenantContext) *Result {
	logger := d.logger.With(
		"kind", string(ref.Kind),
		"identifier", ref.Identifier,
		"tenant_id", tenant.TenantID,
	)

	switch ref.Kind {
	case models.CapabilityAction:
		return d.invokeAction(ctx, ref.Identifier, input, logger)
	case models.CapabilityTool:
		return d.invokeTool(ctx, ref.Identifier, input, logger)
	case models.CapabilityAgent:
		return d.invokeAgent(ctx, ref.Identifier, input, logger)
	default:
		return Failure(ErrCodeUnknownKind, "unknown capability kind: "+string(ref.Kind), map[string]any{
			"identifier": ref.Identifier,
		})
	}
}

func (d *Dispatcher) invokeAction(ctx context.Context, identifier string, input map[string]any, logger *slog.Logger) *Result {
	action, ok := d.registry.Action(identifier)
	if !ok {
		return Failure(ErrCodeUnknownCapability, "action not registered: "+identifier, nil)
	}

	output, err := action.Execute(ctx, input, logger)
	if err != nil {
		logger.Warn("Action failed", "error", err)

		return Failure(ErrCodeActionFailed, err.Error(), map[string]any{"identifier": identifier})
	}

	return &Result{Success: true, Output: output}
}

func (d *Dispatcher) invokeTool(ctx context.Context, identifier string, input map[string]any, logger *slog.Logger) *Result {
	tool, ok := d.registry.Tool(identifier)
	if !ok {
		return Failure(ErrCodeUnknownCapability, "tool not registered: "+identifier, nil)
	}

	output, err := tool.run(ctx, d.registry, input, logger)
	if err != nil {
		logger.Warn("Tool failed", "error", err)

		return Failure(ErrCodeToolFailed, err.Error(), map[string]any{"identifier": identifier})
	}

	return &Result{Success: true, Output: output}
}

func (d *Dispatcher) invokeAgent(ctx context.Context, identifier string, input map[string]any, logger *slog.Logger) *Result {
	agent, ok := d.registry.Agent(identifier)
	if !ok {
		return Failure(ErrCodeUnknownCapability, "agent not registered: "+identifier, nil)
	}

	outcome, err := agent.run(ctx, d.client, input)
	if err != nil {
		logger.Warn("Agent failed", "error", err)

		return Failure(ErrCodeAgentFailed, err.Error(), map[string]any{"identifier": identifier})
	}

	return &Result{Success: true, Output: outcome.output, Cost: outcome.cost}
}
