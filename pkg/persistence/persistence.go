// Package persistence provides data storage abstraction layer for workflows and executions.
package persistence

import (
	"context"

	"github.com/weftworks/weft/pkg/models"
)

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// ExecutionRepository stores execution audit records. SaveExecution is
// an upsert: the engine checkpoints the same execution before every
// step and once more when the run finishes.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	SaveStepExecution(ctx context.Context, step *models.StepExecution) error
	StepExecutions(ctx context.Context, executionID string) ([]*models.StepExecution, error)
}

type Persistence interface {
	WorkflowRepository
	ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
