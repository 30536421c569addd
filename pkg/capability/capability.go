// Package capability provides the uniform invoke contract over the
// three capability kinds a step may dispatch to: direct actions,
// composed multi-action tools and LLM-driven agent tools.
package capability

import (
	"context"
	"log/slog"
)

// Error codes for classified dispatch failures. Dispatch never panics or
// throws past the dispatcher: every failure is a Result.
const (
	ErrCodeUnknownKind       = "unknown_capability_kind"
	ErrCodeUnknownCapability = "unknown_capability"
	ErrCodeActionFailed      = "action_failed"
	ErrCodeToolFailed        = "tool_failed"
	ErrCodeAgentFailed       = "agent_failed"
)

// TenantContext identifies whose behalf an invocation runs on. It is
// resolved by the surrounding service and passed through opaquely.
type TenantContext struct {
	TenantID string `json:"tenant_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// InvokeError is the classified failure half of the dispatch contract.
type InvokeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *InvokeError) Error() string {
	return e.Code + ": " + e.Message
}

// Result is the uniform dispatch result: {success, output, cost} on
// success, {success: false, error} on failure. Cost is in USD; direct
// actions and composed tools carry zero inherent cost, agent tools
// report their own.
type Result struct {
	Success bool         `json:"success"`
	Output  any          `json:"output,omitempty"`
	Cost    float64      `json:"cost"`
	Error   *InvokeError `json:"error,omitempty"`
}

// Failure builds a failed result with a classified error.
func Failure(code, message string, details map[string]any) *Result {
	return &Result{
		Success: false,
		Error:   &InvokeError{Code: code, Message: message, Details: details},
	}
}

// Action is a directly-addressable unit of work registered under a
// two-part "namespace/name" identifier.
type Action interface {
	Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error)

func (f ActionFunc) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error) {
	return f(ctx, input, logger)
}
