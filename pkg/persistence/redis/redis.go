// Package redis provides a Redis-backed execution checkpoint store. It
// keeps only execution audit records; workflow definitions stay in the
// file or PostgreSQL layer.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/persistence"
)

const keyPrefix = "weft:execution:"
const workflowIndexPrefix = "weft:workflow:"

// Store implements persistence.ExecutionRepository on Redis. Records
// expire after TTL when one is set.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore connects to Redis using a redis:// URL.
func NewStore(url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &Store{client: redis.NewClient(opts), ttl: ttl}, nil
}

// NewStoreWithClient wraps an existing client, mainly for tests.
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

var _ persistence.ExecutionRepository = (*Store)(nil)

func executionKey(id string) string {
	return keyPrefix + id
}

func stepsKey(executionID string) string {
	return keyPrefix + executionID + ":steps"
}

func workflowIndexKey(workflowID string) string {
	return workflowIndexPrefix + workflowID + ":executions"
}

// SaveExecution upserts the execution snapshot.
func (s *Store) SaveExecution(ctx context.Context, execution *models.Execution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, executionKey(execution.ID), data, s.ttl)
	pipe.ZAdd(ctx, workflowIndexKey(execution.WorkflowID), redis.Z{
		Score:  float64(execution.StartedAt.UnixMilli()),
		Member: execution.ID,
	})

	if s.ttl > 0 {
		pipe.Expire(ctx, workflowIndexKey(execution.WorkflowID), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// ExecutionByID loads one execution snapshot.
func (s *Store) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	data, err := s.client.Get(ctx, executionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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

// ExecutionsByWorkflow returns the executions of one workflow, oldest
// first. Expired executions are dropped from the result.
func (s *Store) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	ids, err := s.client.ZRange(ctx, workflowIndexKey(workflowID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow execution index: %w", err)
	}

	executions := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution, err := s.ExecutionByID(ctx, id)
		if err != nil {
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}

// SaveStepExecution appends one per-step audit record.
func (s *Store) SaveStepExecution(ctx context.Context, step *models.StepExecution) error {
	data, err := json.Marshal(step)
	if err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, stepsKey(step.ExecutionID), data)

	if s.ttl > 0 {
		pipe.Expire(ctx, stepsKey(step.ExecutionID), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewExecutionError("SaveStep", step.ExecutionID, err)
	}

	return nil
}

// StepExecutions returns the per-step audit records in step order.
func (s *Store) StepExecutions(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	items, err := s.client.LRange(ctx, stepsKey(executionID), 0, -1).Result()
	if err != nil {
		return nil, persistence.NewExecutionError("StepExecutions", executionID, err)
	}

	steps := make([]*models.StepExecution, 0, len(items))

	for _, item := range items {
		var step models.StepExecution
		if err := json.Unmarshal([]byte(item), &step); err != nil {
			return nil, persistence.NewExecutionError("StepExecutions", executionID, err)
		}

		steps = append(steps, &step)
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StepNumber < steps[j].StepNumber
	})

	return steps, nil
}

// HealthCheck verifies the Redis connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}
