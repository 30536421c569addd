package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/persistence"
)

// ExecutionRepository handles execution audit records in PostgreSQL.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `id, workflow_id, status, current_step, total_steps, state, output, cost, tokens, error, started_at, completed_at`

// Save upserts the execution snapshot.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	stateJSON, err := json.Marshal(execution.State)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	outputJSON, err := json.Marshal(execution.Output)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step = EXCLUDED.current_step,
			state = EXCLUDED.state,
			output = EXCLUDED.output,
			cost = EXCLUDED.cost,
			tokens = EXCLUDED.tokens,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		string(execution.Status),
		execution.CurrentStep,
		execution.TotalSteps,
		stateJSON,
		outputJSON,
		execution.Cost,
		execution.Tokens,
		execution.Error,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// GetByID loads one execution snapshot.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// GetByWorkflow returns the executions of one workflow, oldest first.
func (r *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE workflow_id = $1 ORDER BY started_at`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return executions, nil
}

// SaveStep appends one per-step audit record.
func (r *ExecutionRepository) SaveStep(ctx context.Context, step *models.StepExecution) error {
	resolvedJSON, err := json.Marshal(step.ResolvedInput)
	if err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	toolJSON, err := json.Marshal(step.ToolOutput)
	if err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	reasoningJSON, err := json.Marshal(step.ReasoningOutput)
	if err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	query := `
		INSERT INTO step_executions (
			id, execution_id, workflow_id, step_number, step_slug, status,
			resolved_input, tool_output, reasoning_output, error,
			retry_count, cost, tokens, duration_ms, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.ExecutionID,
		step.WorkflowID,
		step.StepNumber,
		step.StepSlug,
		string(step.Status),
		resolvedJSON,
		toolJSON,
		reasoningJSON,
		step.Error,
		step.RetryCount,
		step.Cost,
		step.Tokens,
		step.DurationMs,
		step.StartedAt,
		step.CompletedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	return nil
}

// Steps returns the per-step audit records of one execution in step order.
func (r *ExecutionRepository) Steps(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	query := `
		SELECT id, execution_id, workflow_id, step_number, step_slug, status,
			resolved_input, tool_output, reasoning_output, error,
			retry_count, cost, tokens, duration_ms, started_at, completed_at
		FROM step_executions
		WHERE execution_id = $1
		ORDER BY step_number
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("Steps", executionID, err)
	}
	defer rows.Close()

	steps := make([]*models.StepExecution, 0)

	for rows.Next() {
		var (
			step          models.StepExecution
			resolvedJSON  []byte
			toolJSON      []byte
			reasoningJSON []byte
			completedAt   sql.NullTime
		)

		err := rows.Scan(
			&step.ID,
			&step.ExecutionID,
			&step.WorkflowID,
			&step.StepNumber,
			&step.StepSlug,
			&step.Status,
			&resolvedJSON,
			&toolJSON,
			&reasoningJSON,
			&step.Error,
			&step.RetryCount,
			&step.Cost,
			&step.Tokens,
			&step.DurationMs,
			&step.StartedAt,
			&completedAt,
		)
		if err != nil {
			return nil, persistence.NewExecutionError("Steps", executionID, err)
		}

		if completedAt.Valid {
			step.CompletedAt = &completedAt.Time
		}

		if err := unmarshalInto(resolvedJSON, &step.ResolvedInput); err != nil {
			return nil, persistence.NewExecutionError("Steps", executionID, err)
		}

		if err := unmarshalInto(toolJSON, &step.ToolOutput); err != nil {
			return nil, persistence.NewExecutionError("Steps", executionID, err)
		}

		if err := unmarshalInto(reasoningJSON, &step.ReasoningOutput); err != nil {
			return nil, persistence.NewExecutionError("Steps", executionID, err)
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("Steps", executionID, err)
	}

	return steps, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		stateJSON   []byte
		outputJSON  []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.CurrentStep,
		&execution.TotalSteps,
		&stateJSON,
		&outputJSON,
		&execution.Cost,
		&execution.Tokens,
		&execution.Error,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	if err := unmarshalInto(stateJSON, &execution.State); err != nil {
		return nil, err
	}

	if err := unmarshalInto(outputJSON, &execution.Output); err != nil {
		return nil, err
	}

	return &execution, nil
}

// unmarshalInto decodes a JSONB column, treating NULL and the JSON
// literal null as the zero value.
func unmarshalInto(data []byte, target any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	return json.Unmarshal(data, target)
}
