package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftworks/weft/pkg/capability"
	"github.com/weftworks/weft/pkg/eventbus"
	"github.com/weftworks/weft/pkg/events"
	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/otelhelper"
	"github.com/weftworks/weft/pkg/persistence"
	"github.com/weftworks/weft/pkg/state"
)

// RunOptions carries per-run knobs. CancelRequested is polled between
// steps only, so a running step always finishes before cancellation
// takes effect.
type RunOptions struct {
	ExecutionID     string
	Tenant          capability.TenantContext
	CancelRequested func() bool
}

// RunResult is what a finished run hands back: the final execution
// record and the full accumulated state.
type RunResult struct {
	Execution *models.Execution
	State     *state.State
}

// Orchestrator drives a workflow run from first step to terminal
// status. The persistence store and event bus are optional; when
// present, checkpoint or publish failures are logged and never abort
// the run.
type Orchestrator struct {
	executor  *StepExecutor
	store     persistence.ExecutionRepository
	bus       eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
	newBudget func(models.BudgetConfig, int) *Budget
}

func NewOrchestrator(executor *StepExecutor, store persistence.ExecutionRepository, bus eventbus.EventPublisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		executor:  executor,
		store:     store,
		bus:       bus,
		logger:    logger,
		tracer:    otel.Tracer("weft.workflow"),
		newBudget: NewBudget,
	}
}

// WithTracer replaces the global-provider tracer, typically with one
// built by otelhelper.NewTracer.
func (o *Orchestrator) WithTracer(tracer trace.Tracer) *Orchestrator {
	o.tracer = tracer

	return o
}

// Run executes the workflow's steps in order against the given input.
// Definition-level problems (nil workflow, no steps, inactive status)
// are returned as errors; everything that happens during execution is
// reported inside the result's execution record.
func (o *Orchestrator) Run(ctx context.Context, wf *models.Workflow, input map[string]any, opts RunOptions) (*RunResult, error) {
	if wf == nil {
		return nil, ErrNilWorkflow
	}

	if len(wf.Steps) == 0 {
		return nil, models.ErrNoSteps
	}

	if !wf.Runnable() {
		return nil, fmt.Errorf("%w: workflow %q has status %q", ErrNotRunnable, wf.ID, wf.Status)
	}

	execution := &models.Execution{
		ID:         opts.ExecutionID,
		WorkflowID: wf.ID,
		Status:     models.ExecutionStatusRunning,
		TotalSteps: len(wf.Steps),
		StartedAt:  time.Now().UTC(),
	}
	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.WorkflowNameKey, wf.Name),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	logger := o.logger.With("workflow_id", wf.ID, "execution_id", execution.ID)
	logger.Info("Execution started", "total_steps", execution.TotalSteps)

	o.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionStartedEvent, wf.ID, execution.ID),
		TotalSteps: execution.TotalSteps,
	}, logger)

	st := state.New(input)
	budget := o.newBudget(wf.Budget, len(wf.Steps))
	steps := wf.StepsInOrder()

	var (
		violation  *Violation
		haltedStep *models.Step
		haltedErr  string
		cancelled  bool
	)

	for i, step := range steps {
		if opts.CancelRequested != nil && opts.CancelRequested() {
			cancelled = true
			st = o.skipRemaining(ctx, st, steps[i:], stepError(ErrClassSkipped, "execution cancelled"), execution, logger)

			break
		}

		if v := budget.Check(); v != nil {
			violation = v
			st = o.skipRemaining(ctx, st, steps[i:], stepError(ErrClassBudget, "%s", v.Message), execution, logger)

			break
		}

		budget.Advance(step.Number)
		o.checkpoint(ctx, execution, st, budget, logger)

		outcome, err := o.runStep(ctx, wf, step, st, opts.Tenant)
		if err != nil {
			// Context cancelled while waiting between retry attempts.
			cancelled = true
			st = st.Record(step.Slug, models.StepResult{
				Status: models.StepStatusFailed,
				Error:  stepError(ErrClassCapability, "step %q: interrupted: %s", step.Slug, err),
			})

			if i+1 < len(steps) {
				st = o.skipRemaining(ctx, st, steps[i+1:], stepError(ErrClassSkipped, "execution cancelled"), execution, logger)
			}

			break
		}

		st = st.Record(step.Slug, outcome.Result)
		budget.Add(outcome.Cost, outcome.Tokens)

		o.auditStep(ctx, execution, step, outcome, logger)
		o.publishStep(ctx, execution, step, outcome, logger)

		if outcome.Result.Status == models.StepStatusFailed {
			policy := step.EffectiveErrorPolicy()
			logger.Warn("Step failed",
				"step", step.Slug,
				"policy", string(policy),
				"error", outcome.Result.Error)

			if policy == models.ErrorPolicyContinue {
				continue
			}

			haltedStep = step
			haltedErr = outcome.Result.Error

			if i+1 < len(steps) {
				st = o.skipRemaining(ctx, st, steps[i+1:],
					stepError(ErrClassSkipped, "halted after step %q failed", step.Slug), execution, logger)
			}

			break
		}
	}

	o.finish(ctx, execution, wf, st, budget, violation, haltedStep, haltedErr, cancelled, logger)

	if execution.Status == models.ExecutionStatusFailed || execution.Status == models.ExecutionStatusTimeout {
		otelhelper.SetError(span, errors.New(execution.Error))
	}

	return &RunResult{Execution: execution, State: st}, nil
}

// runStep executes one step inside its own span.
func (o *Orchestrator) runStep(ctx context.Context, wf *models.Workflow, step *models.Step, st *state.State, tenant capability.TenantContext) (*StepOutcome, error) {
	attrs := []attribute.KeyValue{
		attribute.Int(otelhelper.StepNumberKey, step.Number),
		attribute.String(otelhelper.StepSlugKey, step.Slug),
	}
	if step.Capability != nil {
		attrs = append(attrs,
			attribute.String(otelhelper.CapabilityKindKey, string(step.Capability.Kind)),
			attribute.String(otelhelper.CapabilityIDKey, step.Capability.Identifier),
		)
	}

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.step "+step.Slug, attrs...)
	defer span.End()

	outcome, err := o.executor.Execute(ctx, wf, step, st, tenant)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.Float64(otelhelper.CostKey, outcome.Cost),
		attribute.Int64(otelhelper.TokensKey, outcome.Tokens),
	)

	if outcome.Result.Status == models.StepStatusFailed {
		otelhelper.SetError(span, errors.New(outcome.Result.Error))
	}

	return outcome, nil
}

// finish fills in the execution's terminal fields and emits the
// matching lifecycle event.
func (o *Orchestrator) finish(ctx context.Context, execution *models.Execution, wf *models.Workflow, st *state.State, budget *Budget, violation *Violation, haltedStep *models.Step, haltedErr string, cancelled bool, logger *slog.Logger) {
	now := time.Now().UTC()
	execution.CompletedAt = &now
	execution.Cost = budget.Cost()
	execution.Tokens = budget.Tokens()
	execution.State = st.Serialize()

	switch {
	case cancelled:
		execution.Status = models.ExecutionStatusCancelled
		execution.Error = "execution cancelled"
	case violation != nil && violation.Kind == ViolationDuration:
		execution.Status = models.ExecutionStatusTimeout
		execution.Error = stepError(ErrClassBudget, "%s", violation.Message)
	case violation != nil:
		execution.Status = models.ExecutionStatusFailed
		execution.Error = stepError(ErrClassBudget, "%s", violation.Message)
	case haltedStep != nil:
		execution.Status = models.ExecutionStatusFailed
		execution.Error = fmt.Sprintf("step %d (%s) failed: %s", haltedStep.Number, haltedStep.Slug, haltedErr)
	default:
		execution.Status = models.ExecutionStatusCompleted
	}

	execution.Output = o.projectOutput(wf, st, logger)

	o.checkpointFinal(ctx, execution, logger)

	durationMs := now.Sub(execution.StartedAt).Milliseconds()

	switch execution.Status {
	case models.ExecutionStatusCompleted:
		logger.Info("Execution completed", "cost", execution.Cost, "tokens", execution.Tokens)
		o.publish(ctx, execution.ID, events.ExecutionCompleted{
			BaseEvent:  events.NewBaseEvent(events.ExecutionCompletedEvent, wf.ID, execution.ID),
			Cost:       execution.Cost,
			Tokens:     execution.Tokens,
			Output:     execution.Output,
			DurationMs: durationMs,
		}, logger)
	case models.ExecutionStatusTimeout:
		logger.Warn("Execution timed out", "error", execution.Error)
		o.publish(ctx, execution.ID, events.ExecutionTimeout{
			BaseEvent:  events.NewBaseEvent(events.ExecutionTimeoutEvent, wf.ID, execution.ID),
			Error:      execution.Error,
			DurationMs: durationMs,
		}, logger)
	case models.ExecutionStatusCancelled:
		counts := st.StatusCounts()
		logger.Info("Execution cancelled", "completed_steps", counts[models.StepStatusCompleted])
		o.publish(ctx, execution.ID, events.ExecutionCancelled{
			BaseEvent:      events.NewBaseEvent(events.ExecutionCancelledEvent, wf.ID, execution.ID),
			CompletedSteps: counts[models.StepStatusCompleted],
		}, logger)
	default:
		logger.Warn("Execution failed", "error", execution.Error)
		o.publish(ctx, execution.ID, events.ExecutionFailed{
			BaseEvent:  events.NewBaseEvent(events.ExecutionFailedEvent, wf.ID, execution.ID),
			Error:      execution.Error,
			Cost:       execution.Cost,
			Tokens:     execution.Tokens,
			DurationMs: durationMs,
		}, logger)
	}
}

// projectOutput shapes the final output: the declared projection when
// the workflow has one, otherwise the last completed step's reasoning
// output, falling back to its tool output.
func (o *Orchestrator) projectOutput(wf *models.Workflow, st *state.State, logger *slog.Logger) map[string]any {
	if wf.Output != nil {
		return Project(st, wf.Output, logger)
	}

	_, last, ok := st.LastCompleted()
	if !ok {
		return nil
	}

	if last.Reasoning != nil {
		return last.Reasoning
	}

	if object, ok := last.Output.(map[string]any); ok {
		return object
	}

	return map[string]any{"result": last.Output}
}

// skipRemaining records the given steps as skipped with the supplied
// reason and emits skip events for them.
func (o *Orchestrator) skipRemaining(ctx context.Context, st *state.State, steps []*models.Step, reason string, execution *models.Execution, logger *slog.Logger) *state.State {
	for _, step := range steps {
		st = st.Record(step.Slug, models.StepResult{
			Status: models.StepStatusSkipped,
			Error:  reason,
		})

		o.publish(ctx, execution.ID, events.StepSkipped{
			BaseEvent:  events.NewBaseEvent(events.StepSkippedEvent, execution.WorkflowID, execution.ID),
			StepNumber: step.Number,
			StepSlug:   step.Slug,
			Reason:     reason,
		}, logger)
	}

	return st
}

// checkpoint persists the execution snapshot before a step runs.
func (o *Orchestrator) checkpoint(ctx context.Context, execution *models.Execution, st *state.State, budget *Budget, logger *slog.Logger) {
	if o.store == nil {
		return
	}

	execution.CurrentStep = budget.CurrentStep()
	execution.State = st.Serialize()
	execution.Cost = budget.Cost()
	execution.Tokens = budget.Tokens()

	if err := o.store.SaveExecution(ctx, execution); err != nil {
		logger.Warn("Failed to checkpoint execution", "error", err)
	}
}

func (o *Orchestrator) checkpointFinal(ctx context.Context, execution *models.Execution, logger *slog.Logger) {
	if o.store == nil {
		return
	}

	if err := o.store.SaveExecution(ctx, execution); err != nil {
		logger.Warn("Failed to persist final execution state", "error", err)
	}
}

// auditStep writes the per-step audit record.
func (o *Orchestrator) auditStep(ctx context.Context, execution *models.Execution, step *models.Step, outcome *StepOutcome, logger *slog.Logger) {
	if o.store == nil {
		return
	}

	now := time.Now().UTC()
	record := &models.StepExecution{
		ID:              uuid.New().String(),
		ExecutionID:     execution.ID,
		WorkflowID:      execution.WorkflowID,
		StepNumber:      step.Number,
		StepSlug:        step.Slug,
		Status:          outcome.Result.Status,
		ResolvedInput:   outcome.ResolvedInput,
		ToolOutput:      outcome.Result.Output,
		ReasoningOutput: outcome.Result.Reasoning,
		Error:           outcome.Result.Error,
		RetryCount:      outcome.RetryCount,
		Cost:            outcome.Cost,
		Tokens:          outcome.Tokens,
		DurationMs:      outcome.DurationMs,
		StartedAt:       now.Add(-time.Duration(outcome.DurationMs) * time.Millisecond),
		CompletedAt:     &now,
	}

	if err := o.store.SaveStepExecution(ctx, record); err != nil {
		logger.Warn("Failed to persist step execution", "step", step.Slug, "error", err)
	}
}

func (o *Orchestrator) publishStep(ctx context.Context, execution *models.Execution, step *models.Step, outcome *StepOutcome, logger *slog.Logger) {
	switch outcome.Result.Status {
	case models.StepStatusFailed:
		o.publish(ctx, execution.ID, events.StepFailed{
			BaseEvent:  events.NewBaseEvent(events.StepFailedEvent, execution.WorkflowID, execution.ID),
			StepNumber: step.Number,
			StepSlug:   step.Slug,
			Error:      outcome.Result.Error,
			RetryCount: outcome.RetryCount,
		}, logger)
	case models.StepStatusSkipped:
		o.publish(ctx, execution.ID, events.StepSkipped{
			BaseEvent:  events.NewBaseEvent(events.StepSkippedEvent, execution.WorkflowID, execution.ID),
			StepNumber: step.Number,
			StepSlug:   step.Slug,
		}, logger)
	default:
		o.publish(ctx, execution.ID, events.StepFinished{
			BaseEvent:  events.NewBaseEvent(events.StepFinishedEvent, execution.WorkflowID, execution.ID),
			StepNumber: step.Number,
			StepSlug:   step.Slug,
			Cost:       outcome.Cost,
			Tokens:     outcome.Tokens,
			RetryCount: outcome.RetryCount,
			DurationMs: outcome.DurationMs,
		}, logger)
	}
}

// publish is best effort: delivery problems never affect the run.
func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event, logger *slog.Logger) {
	if o.bus == nil {
		return
	}

	if err := o.bus.Publish(ctx, key, event); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Failed to publish event", "event_type", string(event.GetType()), "error", err)
	}
}
