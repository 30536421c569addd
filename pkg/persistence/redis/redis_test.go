package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/persistence"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return NewStoreWithClient(client, time.Hour), mr
}

func TestExecutionRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	execution := &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		TotalSteps: 2,
		Cost:       0.05,
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, store.SaveExecution(ctx, execution))

	execution.Status = models.ExecutionStatusCompleted
	require.NoError(t, store.SaveExecution(ctx, execution))

	loaded, err := store.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.InDelta(t, 0.05, loaded.Cost, 0.0001)
}

func TestExecutionNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.ExecutionByID(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionsByWorkflowOrdered(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()

	for i, id := range []string{"exec-b", "exec-a"} {
		require.NoError(t, store.SaveExecution(ctx, &models.Execution{
			ID:         id,
			WorkflowID: "wf-1",
			Status:     models.ExecutionStatusCompleted,
			StartedAt:  base.Add(time.Duration(-i) * time.Minute),
		}))
	}

	require.NoError(t, store.SaveExecution(ctx, &models.Execution{
		ID:         "exec-other",
		WorkflowID: "wf-2",
		Status:     models.ExecutionStatusCompleted,
		StartedAt:  base,
	}))

	executions, err := store.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "exec-a", executions[0].ID)
	assert.Equal(t, "exec-b", executions[1].ID)
}

func TestExpiredExecutionDroppedFromIndex(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveExecution(ctx, &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusCompleted,
		StartedAt:  time.Now().UTC(),
	}))

	mr.Del(executionKey("exec-1"))

	executions, err := store.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestStepExecutionsOrdered(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, n := range []int{2, 1, 3} {
		require.NoError(t, store.SaveStepExecution(ctx, &models.StepExecution{
			ID:          "step",
			ExecutionID: "exec-1",
			StepNumber:  n,
			StepSlug:    "slug",
			Status:      models.StepStatusCompleted,
			StartedAt:   time.Now().UTC(),
		}))
	}

	steps, err := store.StepExecutions(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 3, steps[2].StepNumber)
}

func TestRecordsCarryTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveExecution(ctx, &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}))

	assert.Greater(t, mr.TTL(executionKey("exec-1")), time.Duration(0))
}
