package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/weftworks/weft/pkg/llm"
	"github.com/weftworks/weft/pkg/models"
)

const systemPromptBase = "You are a reasoning engine inside a workflow. " +
	"Produce only a single valid JSON object, no prose and no markdown. " +
	"Do not fabricate data; when the context is ambiguous, infer reasonably from what is given."

const errorPreviewLimit = 200

// ReasoningRequest is one interleaved reasoning call: the current
// step's position and tool output, a truncated summary of prior state,
// and the step's free-text instructions.
type ReasoningRequest struct {
	StepNumber    int
	TotalSteps    int
	Instructions  string
	ToolOutput    any
	HasToolOutput bool
	StateSummary  string
	Config        models.ReasoningConfig
}

// ReasoningResult carries the normalized structured output plus the
// spend, which is surfaced for budget accumulation even when the output
// could not be consumed.
type ReasoningResult struct {
	Output map[string]any
	Cost   float64
	Tokens int64
}

// ReasoningEngine builds prompts, calls the language-model client and
// normalizes its output into the structured object later steps consume.
type ReasoningEngine struct {
	client llm.Client
	logger *slog.Logger
}

func NewReasoningEngine(client llm.Client, logger *slog.Logger) *ReasoningEngine {
	return &ReasoningEngine{client: client, logger: logger}
}

// Run executes one reasoning call. A non-nil result accompanies parse
// errors so the caller can still account the spend.
func (e *ReasoningEngine) Run(ctx context.Context, req ReasoningRequest) (*ReasoningResult, error) {
	if e.client == nil {
		return nil, llm.NewError(llm.ErrCodeNotConfigured, "no language-model client configured", nil)
	}

	resp, err := e.client.Call(ctx, llm.Request{
		Prompt:         buildUserPrompt(req),
		SystemPrompt:   buildSystemPrompt(req.Config.OutputSchema),
		Temperature:    req.Config.Temperature,
		MaxTokens:      req.Config.MaxTokens,
		ResponseFormat: llm.ResponseFormatJSON,
		JSONSchema:     req.Config.OutputSchema,
		Model:          req.Config.Model,
		Provider:       req.Config.Provider,
	})
	if err != nil {
		return nil, err
	}

	result := &ReasoningResult{
		Cost:   resp.Cost,
		Tokens: resp.Usage.TotalTokens,
	}

	output, err := normalizeOutput(resp.Content)
	if err != nil {
		return result, err
	}

	if req.Config.OutputSchema != nil {
		e.checkSchema(req.Config.OutputSchema, output)
	}

	result.Output = output

	return result, nil
}

// checkSchema validates the normalized output against the expected
// schema. The schema is advisory (it was offered to the model), so a
// mismatch is logged rather than failing the step.
func (e *ReasoningEngine) checkSchema(schema map[string]any, output map[string]any) {
	validation, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(output))
	if err != nil {
		e.logger.Warn("Reasoning output schema check errored", "error", err)

		return
	}

	if !validation.Valid() {
		issues := make([]string, 0, len(validation.Errors()))
		for _, issue := range validation.Errors() {
			issues = append(issues, issue.String())
		}

		e.logger.Warn("Reasoning output does not match expected schema", "issues", strings.Join(issues, "; "))
	}
}

func buildSystemPrompt(schema map[string]any) string {
	if schema == nil {
		return systemPromptBase
	}

	encoded, err := json.Marshal(schema)
	if err != nil {
		return systemPromptBase
	}

	return systemPromptBase + "\n\nThe JSON object must match this schema:\n" + string(encoded)
}

func buildUserPrompt(req ReasoningRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are at step %d of %d.\n\n", req.StepNumber, req.TotalSteps)

	if req.HasToolOutput {
		b.WriteString("Current step tool output:\n")
		b.WriteString(renderForPrompt(req.ToolOutput))
		b.WriteString("\n\n")
	} else {
		b.WriteString("Current step tool output: (no output - reasoning-only step)\n\n")
	}

	b.WriteString("Prior steps:\n")
	b.WriteString(req.StateSummary)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString(req.Instructions)

	return b.String()
}

func renderForPrompt(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(encoded)
}

// normalizeOutput turns raw model content into a structured object: an
// object passes through, non-object JSON is wrapped in {"result": ...},
// unparsable text is a classified error carrying a truncated preview.
func normalizeOutput(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		preview := trimmed
		if len(preview) > errorPreviewLimit {
			preview = preview[:errorPreviewLimit] + "..."
		}

		return nil, llm.NewError(llm.ErrCodeMalformedContent, fmt.Sprintf("unparsable reasoning output: %q", preview), err)
	}

	if object, ok := parsed.(map[string]any); ok {
		return object, nil
	}

	return map[string]any{"result": parsed}, nil
}
