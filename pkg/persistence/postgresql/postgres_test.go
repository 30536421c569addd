package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/persistence"
	"github.com/weftworks/weft/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if os.Getenv("TESTCONTAINERS_DISABLED") != "" {
		t.Skip("container tests disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("weft_test"),
			postgres.WithUsername("weft"),
			postgres.WithPassword("weft"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	resetDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, p.Close(ctx))
		cancel()
	})

	return p, ctx
}

func resetDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	_, err = db.ExecContext(ctx, `
		DROP TABLE IF EXISTS step_executions;
		DROP TABLE IF EXISTS executions;
		DROP TABLE IF EXISTS workflows;
		DROP TABLE IF EXISTS schema_migrations;
	`)
	require.NoError(t, err)
}

func integrationWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Integration Test Workflow",
		Description: "Round trips through PostgreSQL",
		Status:      models.WorkflowStatusActive,
		Steps: []*models.Step{
			{
				Number:     1,
				Name:       "fetch",
				Slug:       "fetch",
				Capability: &models.CapabilityRef{Kind: models.CapabilityAction, Identifier: "weft/http_request"},
				Input:      map[string]any{"url": "https://example.com"},
				Retry:      models.RetryPolicy{MaxRetries: 2, BackoffMs: 500},
			},
			{
				Number:    2,
				Name:      "summarize",
				Slug:      "summarize",
				Reasoning: &models.StepReasoning{Prompt: "Summarize the page."},
			},
		},
		Budget:    models.BudgetConfig{MaxCost: 2.5},
		Reasoning: models.ReasoningConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Output: &models.OutputSpec{Fields: map[string]string{
			"summary": "{{steps.summarize.reasoning.result}}",
		}},
		Owner:    "integration",
		Metadata: map[string]any{"suite": "postgresql"},
	}
}

func TestIntegration_WorkflowLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	workflow := integrationWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	loaded, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, models.WorkflowStatusActive, loaded.Status)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, "fetch", loaded.Steps[0].Slug)
	assert.Equal(t, 2, loaded.Steps[0].Retry.MaxRetries)
	require.NotNil(t, loaded.Steps[1].Reasoning)
	assert.InDelta(t, 2.5, loaded.Budget.MaxCost, 0.0001)
	require.NotNil(t, loaded.Output)
	assert.Equal(t, "{{steps.summarize.reasoning.result}}", loaded.Output.Fields["summary"])

	loaded.Status = models.WorkflowStatusDisabled
	require.NoError(t, p.SaveWorkflow(ctx, loaded))

	updated, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDisabled, updated.Status)

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, p.DeleteWorkflow(ctx, workflow.ID))

	_, err = p.WorkflowByID(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestIntegration_ExecutionLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	workflow := integrationWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	execution := &models.Execution{
		ID:         uuid.New().String(),
		WorkflowID: workflow.ID,
		Status:     models.ExecutionStatusRunning,
		TotalSteps: 2,
		State:      map[string]any{"input": map[string]any{"q": "x"}},
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, p.SaveExecution(ctx, execution))

	// Checkpoint again with progress, then finish.
	execution.CurrentStep = 2
	execution.Cost = 0.12
	execution.Tokens = 900
	require.NoError(t, p.SaveExecution(ctx, execution))

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.Output = map[string]any{"summary": "done"}
	execution.CompletedAt = &now
	require.NoError(t, p.SaveExecution(ctx, execution))

	loaded, err := p.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, 2, loaded.CurrentStep)
	assert.InDelta(t, 0.12, loaded.Cost, 0.0001)
	assert.Equal(t, int64(900), loaded.Tokens)
	assert.Equal(t, map[string]any{"summary": "done"}, loaded.Output)
	require.NotNil(t, loaded.CompletedAt)

	byWorkflow, err := p.ExecutionsByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)

	_, err = p.ExecutionByID(ctx, "missing")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestIntegration_StepExecutions(t *testing.T) {
	p, ctx := setupTestDB(t)

	executionID := uuid.New().String()

	for _, n := range []int{2, 1} {
		now := time.Now().UTC()
		require.NoError(t, p.SaveStepExecution(ctx, &models.StepExecution{
			ID:              uuid.New().String(),
			ExecutionID:     executionID,
			WorkflowID:      "wf-1",
			StepNumber:      n,
			StepSlug:        "slug",
			Status:          models.StepStatusCompleted,
			ResolvedInput:   map[string]any{"value": float64(n)},
			ToolOutput:      map[string]any{"echo": float64(n)},
			ReasoningOutput: map[string]any{"note": "ok"},
			RetryCount:      1,
			Cost:            0.01,
			Tokens:          42,
			DurationMs:      15,
			StartedAt:       now,
			CompletedAt:     &now,
		}))
	}

	steps, err := p.StepExecutions(ctx, executionID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 2, steps[1].StepNumber)
	assert.Equal(t, map[string]any{"echo": float64(1)}, steps[0].ToolOutput)
	assert.Equal(t, 1, steps[0].RetryCount)
}
