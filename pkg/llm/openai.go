package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIConfig configures an OpenAI-compatible chat-completions client.
// CostPer1KTokens is the blended USD rate used to report cost; providers
// that bill per request can leave it zero.
type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	CostPer1KTokens float64
	Timeout         time.Duration
}

// OpenAIClient calls any OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	config OpenAIConfig
	http   *http.Client
}

// NewOpenAIClient builds a client from the config, filling defaults from
// the environment (OPENAI_API_KEY, OPENAI_BASE_URL).
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}

	if config.BaseURL == "" {
		config.BaseURL = defaultOpenAIBaseURL
	}

	if config.APIKey == "" {
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if config.Model == "" {
		config.Model = defaultOpenAIModel
	}

	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}

	return &OpenAIClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) Call(ctx context.Context, req Request) (*Response, error) {
	if c.config.APIKey == "" {
		return nil, NewError(ErrCodeNotConfigured, "missing API key", nil)
	}

	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}

	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if req.ResponseFormat == ResponseFormatJSON {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewError(ErrCodeCallFailed, "encoding request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, NewError(ErrCodeCallFailed, "building request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	started := time.Now()

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, NewError(ErrCodeCallFailed, "calling chat completions", err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewError(ErrCodeCallFailed, "reading response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, NewError(ErrCodeMalformedContent, fmt.Sprintf("unparsable response (status %d)", httpResp.StatusCode), err)
	}

	if parsed.Error != nil {
		return nil, NewError(ErrCodeCallFailed, fmt.Sprintf("%s: %s", parsed.Error.Type, parsed.Error.Message), nil)
	}

	if httpResp.StatusCode != http.StatusOK || len(parsed.Choices) == 0 {
		return nil, NewError(ErrCodeMalformedContent, fmt.Sprintf("no choices in response (status %d)", httpResp.StatusCode), nil)
	}

	tokens := parsed.Usage.TotalTokens

	return &Response{
		Content:    parsed.Choices[0].Message.Content,
		Cost:       float64(tokens) / 1000 * c.config.CostPer1KTokens,
		Usage:      Usage{TotalTokens: tokens},
		DurationMs: time.Since(started).Milliseconds(),
		Model:      parsed.Model,
		Provider:   "openai",
	}, nil
}
