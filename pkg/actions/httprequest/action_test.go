package httprequest

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_JSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	output, err := New().Execute(context.Background(), map[string]any{
		"method":  "post",
		"url":     server.URL,
		"headers": map[string]any{"X-Test": "yes"},
		"body":    map[string]any{"q": "golang"},
	}, slog.Default())
	require.NoError(t, err)

	m, ok := output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 200.0, m["status_code"])
	assert.Equal(t, map[string]any{"ok": true}, m["body"])
}

func TestExecute_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain"))
	}))
	defer server.Close()

	output, err := New().Execute(context.Background(), map[string]any{"url": server.URL}, slog.Default())
	require.NoError(t, err)

	m := output.(map[string]any)
	assert.Equal(t, "plain", m["body"])
}

func TestExecute_ServerErrorIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New().Execute(context.Background(), map[string]any{"url": server.URL}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestExecute_RequiresURL(t *testing.T) {
	_, err := New().Execute(context.Background(), map[string]any{}, slog.Default())
	assert.Error(t, err)
}
