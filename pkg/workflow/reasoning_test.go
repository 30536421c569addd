package workflow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/llm"
	"github.com/weftworks/weft/pkg/llm/llmtest"
	"github.com/weftworks/weft/pkg/models"
)

func reasoningRequest() ReasoningRequest {
	return ReasoningRequest{
		StepNumber:    2,
		TotalSteps:    4,
		Instructions:  "Summarize the findings.",
		ToolOutput:    map[string]any{"items": []any{"a", "b"}},
		HasToolOutput: true,
		StateSummary:  "- fetch [completed] output: {...}",
	}
}

func TestReasoning_ObjectPassthrough(t *testing.T) {
	client := llmtest.NewScripted(llmtest.Reply(`{"summary": "two items"}`, 0.02, 150))
	engine := NewReasoningEngine(client, slog.Default())

	result, err := engine.Run(context.Background(), reasoningRequest())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "two items"}, result.Output)
	assert.InDelta(t, 0.02, result.Cost, 0.0001)
	assert.Equal(t, int64(150), result.Tokens)
}

func TestReasoning_NonObjectWrapped(t *testing.T) {
	client := llmtest.NewScripted(llmtest.Reply(`["a", "b"]`, 0.01, 80))
	engine := NewReasoningEngine(client, slog.Default())

	result, err := engine.Run(context.Background(), reasoningRequest())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": []any{"a", "b"}}, result.Output)
}

func TestReasoning_ScalarWrapped(t *testing.T) {
	client := llmtest.NewScripted(llmtest.Reply(`42`, 0.01, 10))
	engine := NewReasoningEngine(client, slog.Default())

	result, err := engine.Run(context.Background(), reasoningRequest())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": float64(42)}, result.Output)
}

func TestReasoning_UnparsableSurfacesSpend(t *testing.T) {
	client := llmtest.NewScripted(llmtest.Reply("Sure! Here is the answer:", 0.03, 200))
	engine := NewReasoningEngine(client, slog.Default())

	result, err := engine.Run(context.Background(), reasoningRequest())

	require.Error(t, err)

	var llmErr *llm.Error

	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrCodeMalformedContent, llmErr.Code)
	assert.Contains(t, llmErr.Message, "Sure! Here is the answer:")

	require.NotNil(t, result)
	assert.InDelta(t, 0.03, result.Cost, 0.0001)
	assert.Equal(t, int64(200), result.Tokens)
}

func TestReasoning_ErrorPreviewTruncated(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}

	client := llmtest.NewScripted(llmtest.Reply(string(long), 0.01, 50))
	engine := NewReasoningEngine(client, slog.Default())

	_, err := engine.Run(context.Background(), reasoningRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "...")
	assert.Less(t, len(err.Error()), 400)
}

func TestReasoning_PromptContents(t *testing.T) {
	client := llmtest.NewScripted(llmtest.Reply(`{}`, 0, 0))
	engine := NewReasoningEngine(client, slog.Default())

	req := reasoningRequest()
	req.Config = models.ReasoningConfig{
		OutputSchema: map[string]any{"type": "object"},
	}

	_, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	calls := client.Requests()
	require.Len(t, calls, 1)

	assert.Contains(t, calls[0].Prompt, "step 2 of 4")
	assert.Contains(t, calls[0].Prompt, `"items":["a","b"]`)
	assert.Contains(t, calls[0].Prompt, "Summarize the findings.")
	assert.Contains(t, calls[0].Prompt, "fetch [completed]")
	assert.Contains(t, calls[0].SystemPrompt, "single valid JSON object")
	assert.Contains(t, calls[0].SystemPrompt, `"type":"object"`)
	assert.Equal(t, llm.ResponseFormatJSON, calls[0].ResponseFormat)
}

func TestReasoning_ReasoningOnlyMarker(t *testing.T) {
	client := llmtest.NewScripted(llmtest.Reply(`{}`, 0, 0))
	engine := NewReasoningEngine(client, slog.Default())

	req := reasoningRequest()
	req.ToolOutput = nil
	req.HasToolOutput = false

	_, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	calls := client.Requests()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "reasoning-only step")
}

func TestReasoning_NoClient(t *testing.T) {
	engine := NewReasoningEngine(nil, slog.Default())

	_, err := engine.Run(context.Background(), reasoningRequest())

	var llmErr *llm.Error

	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrCodeNotConfigured, llmErr.Code)
}
