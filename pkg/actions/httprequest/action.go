// Package httprequest provides the built-in weft/http_request action.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Identifier is the registry key for this action.
const Identifier = "weft/http_request"

const defaultTimeout = 30 * time.Second

// Action performs one HTTP request described by its resolved input:
// method, url, headers, body, timeout_seconds. Retries belong to the
// step executor, not the action.
type Action struct {
	client *http.Client
}

func New() *Action {
	return &Action{client: &http.Client{}}
}

func (a *Action) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (any, error) {
	url, _ := input["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http_request requires a url")
	}

	method, _ := input["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)

	timeout := defaultTimeout
	if seconds, ok := input["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds * float64(time.Second))
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader

	switch body := input["body"].(type) {
	case nil:
	case string:
		if body != "" {
			bodyReader = strings.NewReader(body)
		}
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}

		bodyReader = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building http request: %w", err)
	}

	if headers, ok := input["headers"].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}

	logger.Debug("Executing http_request action", "method", method, "url", url)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("Failed to close response body", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Server errors are failures so the executor's retry policy applies.
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("server error: status %d", resp.StatusCode)
	}

	return map[string]any{
		"status_code": float64(resp.StatusCode),
		"body":        parseBody(raw),
	}, nil
}

// parseBody returns parsed JSON when the payload is JSON, the raw text
// otherwise.
func parseBody(raw []byte) any {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			return parsed
		}
	}

	return string(raw)
}
