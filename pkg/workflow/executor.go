package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftworks/weft/pkg/capability"
	"github.com/weftworks/weft/pkg/expr"
	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/state"
)

// StepOutcome describes one finished step: its recorded result, the
// input after template resolution, and the spend and retry accounting
// the orchestrator folds into the execution record.
type StepOutcome struct {
	Result        models.StepResult
	ResolvedInput map[string]any
	RetryCount    int
	Cost          float64
	Tokens        int64
	DurationMs    int64
}

// StepExecutor runs a single step end to end: skip evaluation, input
// resolution, capability dispatch with retries, then the interleaved
// reasoning call.
type StepExecutor struct {
	dispatcher *capability.Dispatcher
	reasoning  *ReasoningEngine
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewStepExecutor(dispatcher *capability.Dispatcher, reasoning *ReasoningEngine, logger *slog.Logger) *StepExecutor {
	return &StepExecutor{
		dispatcher: dispatcher,
		reasoning:  reasoning,
		logger:     logger,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs one step against the accumulated state. Failures are
// reported inside the outcome's result, not as an error; the returned
// error is reserved for context cancellation during a retry wait.
func (e *StepExecutor) Execute(ctx context.Context, wf *models.Workflow, step *models.Step, st *state.State, tenant capability.TenantContext) (*StepOutcome, error) {
	logger := e.logger.With("step", step.Slug, "step_number", step.Number)
	started := time.Now()

	outcome := &StepOutcome{}

	skip, err := ShouldSkip(st, step.Skip)
	if err != nil {
		outcome.Result = failedResult(stepError(ErrClassTemplate, "skip condition for step %q: %s", step.Slug, err))
		outcome.DurationMs = time.Since(started).Milliseconds()

		return outcome, nil
	}

	if skip {
		logger.Info("Step skipped by condition")

		outcome.Result = models.StepResult{Status: models.StepStatusSkipped}
		outcome.DurationMs = time.Since(started).Milliseconds()

		return outcome, nil
	}

	resolved, err := resolveInput(st, step.Input)
	if err != nil {
		outcome.Result = failedResult(stepError(ErrClassTemplate, "input for step %q: %s", step.Slug, err))
		outcome.DurationMs = time.Since(started).Milliseconds()

		return outcome, nil
	}

	outcome.ResolvedInput = resolved

	var toolOutput any

	hasToolOutput := false

	if !step.ReasoningOnly() {
		result, retries, err := e.dispatchWithRetries(ctx, step, resolved, tenant, logger)
		if err != nil {
			return nil, err
		}

		outcome.RetryCount = retries
		outcome.Cost += result.Cost

		if !result.Success {
			outcome.Result = failedResult(stepError(ErrClassCapability, "step %q: [%s] %s", step.Slug, result.Error.Code, result.Error.Message))
			outcome.DurationMs = time.Since(started).Milliseconds()

			return outcome, nil
		}

		toolOutput = result.Output
		hasToolOutput = true
	}

	reasoningOutput, failure := e.reason(ctx, wf, step, st, toolOutput, hasToolOutput, outcome)
	if failure != "" {
		outcome.Result = failedResult(failure)
		outcome.Result.Output = toolOutput
		outcome.DurationMs = time.Since(started).Milliseconds()

		return outcome, nil
	}

	outcome.Result = models.StepResult{
		Status:    models.StepStatusCompleted,
		Output:    toolOutput,
		Reasoning: reasoningOutput,
	}
	outcome.DurationMs = time.Since(started).Milliseconds()

	return outcome, nil
}

func (e *StepExecutor) reason(ctx context.Context, wf *models.Workflow, step *models.Step, st *state.State, toolOutput any, hasToolOutput bool, outcome *StepOutcome) (map[string]any, string) {
	if step.Reasoning == nil {
		return nil, ""
	}

	cfg := wf.Reasoning.Merge(step.Reasoning.Config)

	result, err := e.reasoning.Run(ctx, ReasoningRequest{
		StepNumber:    step.Number,
		TotalSteps:    len(wf.Steps),
		Instructions:  step.Reasoning.Prompt,
		ToolOutput:    toolOutput,
		HasToolOutput: hasToolOutput,
		StateSummary:  st.Summary(state.DefaultSummaryLimit),
		Config:        cfg,
	})

	if result != nil {
		outcome.Cost += result.Cost
		outcome.Tokens += result.Tokens
	}

	if err != nil {
		return nil, stepError(ErrClassReasoning, "step %q: %s", step.Slug, err)
	}

	return result.Output, ""
}

// dispatchWithRetries invokes the capability, retrying failed attempts
// with exponential backoff. The wait before retry k is base * 2^(k-1).
func (e *StepExecutor) dispatchWithRetries(ctx context.Context, step *models.Step, input map[string]any, tenant capability.TenantContext, logger *slog.Logger) (*capability.Result, int, error) {
	maxRetries := step.Retry.MaxRetries
	backoffBase := time.Duration(step.Retry.EffectiveBackoffMs()) * time.Millisecond

	var result *capability.Result

	retries := 0

	for attempt := 0; ; attempt++ {
		result = e.dispatcher.Invoke(ctx, *step.Capability, input, tenant)
		if result.Success || attempt >= maxRetries {
			break
		}

		retries++
		delay := backoffBase * (1 << attempt)

		logger.Warn("Capability failed, retrying",
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"delay", delay.String(),
			"error", result.Error.Message)

		if err := e.sleep(ctx, delay); err != nil {
			return nil, retries, err
		}
	}

	return result, retries, nil
}

// resolveInput applies template resolution to the step's declared
// input, tolerating a nil input block.
func resolveInput(st *state.State, input map[string]any) (map[string]any, error) {
	if input == nil {
		return map[string]any{}, nil
	}

	resolved, err := expr.ResolveValue(st, input)
	if err != nil {
		return nil, err
	}

	object, ok := resolved.(map[string]any)
	if !ok {
		encoded, _ := json.Marshal(resolved)

		return nil, fmt.Errorf("resolved input is not an object: %s", encoded)
	}

	return object, nil
}

func failedResult(message string) models.StepResult {
	return models.StepResult{Status: models.StepStatusFailed, Error: message}
}
