package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/persistence"
)

// ExecutionRepository handles execution audit records as JSON documents.
// Executions live under executions/, step records under
// executions/<execution-id>/steps/.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) path(id string) string {
	return filepath.Join(er.dir(), id+".json")
}

func (er *ExecutionRepository) stepsDir(executionID string) string {
	return filepath.Join(er.dir(), executionID, "steps")
}

// SaveExecution upserts the execution snapshot.
func (er *ExecutionRepository) SaveExecution(_ context.Context, execution *models.Execution) error {
	if execution.ID == "" {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionNotFound)
	}

	if err := os.MkdirAll(er.dir(), dirPerm); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if err := os.WriteFile(er.path(execution.ID), data, filePerm); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// ExecutionByID loads one execution snapshot.
func (er *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	data, err := os.ReadFile(er.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return &execution, nil
}

// ExecutionsByWorkflow returns every stored execution of the given
// workflow, oldest first.
func (er *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	root := os.DirFS(er.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0)

	for _, file := range jsonFiles {
		execution, err := er.ExecutionByID(ctx, file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.Before(executions[j].StartedAt)
	})

	return executions, nil
}

// SaveStepExecution appends one per-step audit record.
func (er *ExecutionRepository) SaveStepExecution(_ context.Context, step *models.StepExecution) error {
	if step.ExecutionID == "" {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, persistence.ErrExecutionNotFound)
	}

	dir := er.stepsDir(step.ExecutionID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	data, err := json.MarshalIndent(step, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	name := fmt.Sprintf("%03d-%s.json", step.StepNumber, step.ID)
	if err := os.WriteFile(filepath.Join(dir, name), data, filePerm); err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	return nil
}

// StepExecutions returns the per-step audit records of one execution in
// step order.
func (er *ExecutionRepository) StepExecutions(_ context.Context, executionID string) ([]*models.StepExecution, error) {
	dir := er.stepsDir(executionID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.StepExecution{}, nil
		}

		return nil, persistence.NewExecutionError("StepExecutions", executionID, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	steps := make([]*models.StepExecution, 0, len(names))

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, persistence.NewExecutionError("StepExecutions", executionID, err)
		}

		var step models.StepExecution
		if err := json.Unmarshal(data, &step); err != nil {
			return nil, persistence.NewExecutionError("StepExecutions", executionID, err)
		}

		steps = append(steps, &step)
	}

	return steps, nil
}
