package logaction

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteEchoesMessage(t *testing.T) {
	output, err := New().Execute(context.Background(), map[string]any{
		"message": "step finished",
		"level":   "warn",
	}, slog.Default())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"logged": true, "message": "step finished"}, output)
}

func TestExecuteEmptyInput(t *testing.T) {
	output, err := New().Execute(context.Background(), map[string]any{}, slog.Default())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"logged": true, "message": ""}, output)
}
