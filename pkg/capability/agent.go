package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weftworks/weft/pkg/llm"
	"github.com/weftworks/weft/pkg/models"
)

// AgentDefinition is an LLM-driven tool: it accepts a natural-language
// task and reports the cost its model call accrued.
type AgentDefinition struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	Config       models.ReasoningConfig `json:"config"`
}

// agentOutcome carries the agent's output plus its self-reported cost.
type agentOutcome struct {
	output any
	cost   float64
	tokens int64
}

// task derives the task string from the resolved input: the "task"
// field when present, the whole input serialized otherwise.
func agentTask(input map[string]any) (string, error) {
	if task, ok := input["task"].(string); ok && task != "" {
		return task, nil
	}

	encoded, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("serializing input as task: %w", err)
	}

	return string(encoded), nil
}

func (a *AgentDefinition) run(ctx context.Context, client llm.Client, input map[string]any) (*agentOutcome, error) {
	if client == nil {
		return nil, llm.NewError(llm.ErrCodeNotConfigured, "no language-model client configured", nil)
	}

	task, err := agentTask(input)
	if err != nil {
		return nil, err
	}

	resp, err := client.Call(ctx, llm.Request{
		Prompt:         task,
		SystemPrompt:   a.SystemPrompt,
		Temperature:    a.Config.Temperature,
		MaxTokens:      a.Config.MaxTokens,
		ResponseFormat: llm.ResponseFormatJSON,
		JSONSchema:     a.Config.OutputSchema,
		Model:          a.Config.Model,
		Provider:       a.Config.Provider,
	})
	if err != nil {
		return nil, err
	}

	outcome := &agentOutcome{
		cost:   resp.Cost,
		tokens: resp.Usage.TotalTokens,
	}

	// Agent output is the parsed JSON content when it parses, the raw
	// text otherwise.
	var parsed any
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err == nil {
		outcome.output = parsed
	} else {
		outcome.output = resp.Content
	}

	return outcome, nil
}
