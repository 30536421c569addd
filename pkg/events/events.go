// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "weft.events"                          // Topic for workflow execution lifecycle events
const StepTopic = "weft.step.executions"             // Topic for per-step execution events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionTimeoutEvent   EventType = "execution.timeout"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Per-step events.
	StepFinishedEvent EventType = "step.finished"
	StepFailedEvent   EventType = "step.failed"
	StepSkippedEvent  EventType = "step.skipped"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	TotalSteps int `json:"total_steps"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Cost       float64        `json:"cost"`
	Tokens     int64          `json:"tokens"`
	Output     map[string]any `json:"output,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Error      string  `json:"error"`
	Cost       float64 `json:"cost"`
	Tokens     int64   `json:"tokens"`
	DurationMs int64   `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionTimeout struct {
	BaseEvent

	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (e ExecutionTimeout) GetType() EventType {
	return ExecutionTimeoutEvent
}

type ExecutionCancelled struct {
	BaseEvent

	CompletedSteps int `json:"completed_steps"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type StepFinished struct {
	BaseEvent

	StepNumber int     `json:"step_number"`
	StepSlug   string  `json:"step_slug"`
	Cost       float64 `json:"cost"`
	Tokens     int64   `json:"tokens"`
	RetryCount int     `json:"retry_count"`
	DurationMs int64   `json:"duration_ms"`
}

func (e StepFinished) GetType() EventType {
	return StepFinishedEvent
}

type StepFailed struct {
	BaseEvent

	StepNumber int    `json:"step_number"`
	StepSlug   string `json:"step_slug"`
	Error      string `json:"error"`
	RetryCount int    `json:"retry_count"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

type StepSkipped struct {
	BaseEvent

	StepNumber int    `json:"step_number"`
	StepSlug   string `json:"step_slug"`
	Reason     string `json:"reason,omitempty"`
}

func (e StepSkipped) GetType() EventType {
	return StepSkippedEvent
}
