// Package llm defines the language-model client contract the reasoning
// engine and agent tools call through. Implementations must fail with a
// classified error rather than return malformed content silently.
package llm

import (
	"context"
	"fmt"
)

// ResponseFormatJSON asks the model for a single valid JSON object.
const ResponseFormatJSON = "json"

// Request is one structured model call.
type Request struct {
	Prompt         string         `json:"prompt"`
	SystemPrompt   string         `json:"system_prompt,omitempty"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat string         `json:"response_format,omitempty"`
	JSONSchema     map[string]any `json:"json_schema,omitempty"`
	Model          string         `json:"model,omitempty"`
	Provider       string         `json:"provider,omitempty"`
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	TotalTokens int64 `json:"total_tokens"`
}

// Response is the result of one model call. Cost is in USD.
type Response struct {
	Content    string  `json:"content"`
	Cost       float64 `json:"cost"`
	Usage      Usage   `json:"usage"`
	DurationMs int64   `json:"duration_ms"`
	Model      string  `json:"model"`
	Provider   string  `json:"provider"`
}

// Client is the language-model collaborator contract.
type Client interface {
	Call(ctx context.Context, req Request) (*Response, error)
}

// Error codes for classified client failures.
const (
	ErrCodeCallFailed       = "llm_call_failed"
	ErrCodeMalformedContent = "llm_malformed_content"
	ErrCodeNotConfigured    = "llm_not_configured"
)

// Error is a classified client failure.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified client error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
