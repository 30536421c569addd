// Package llmtest provides a deterministic scripted client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/weftworks/weft/pkg/llm"
)

// Turn is one scripted response or error.
type Turn struct {
	Response *llm.Response
	Err      error
}

// ScriptedClient replays a fixed sequence of turns and records every
// request it receives. When the script is exhausted it keeps replaying
// the last turn.
type ScriptedClient struct {
	mu       sync.Mutex
	turns    []Turn
	requests []llm.Request
}

// NewScripted builds a client that replays the given turns in order.
func NewScripted(turns ...Turn) *ScriptedClient {
	return &ScriptedClient{turns: turns}
}

// Reply is a convenience turn returning JSON content with fixed cost and
// token usage.
func Reply(content string, cost float64, tokens int64) Turn {
	return Turn{Response: &llm.Response{
		Content:    content,
		Cost:       cost,
		Usage:      llm.Usage{TotalTokens: tokens},
		DurationMs: 5,
		Model:      "scripted",
		Provider:   "test",
	}}
}

// Fail is a convenience turn returning a classified call failure.
func Fail(message string) Turn {
	return Turn{Err: llm.NewError(llm.ErrCodeCallFailed, message, nil)}
}

func (c *ScriptedClient) Call(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)

	if len(c.turns) == 0 {
		return nil, llm.NewError(llm.ErrCodeNotConfigured, "scripted client has no turns", nil)
	}

	idx := len(c.requests) - 1
	if idx >= len(c.turns) {
		idx = len(c.turns) - 1
	}

	turn := c.turns[idx]
	if turn.Err != nil {
		return nil, turn.Err
	}

	return turn.Response, nil
}

// Requests returns a copy of every request received so far.
func (c *ScriptedClient) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)

	return out
}

// Calls returns how many times the client was invoked.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.requests)
}
