package transform

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_ValueField(t *testing.T) {
	output, err := New().Execute(context.Background(), map[string]any{
		"value": []any{"a", "b"},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, output)
}

func TestExecute_WholeInput(t *testing.T) {
	input := map[string]any{"name": "Ada", "count": 3.0}

	output, err := New().Execute(context.Background(), input, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, input, output)
}

func TestExecute_NilInput(t *testing.T) {
	_, err := New().Execute(context.Background(), nil, slog.Default())
	assert.Error(t, err)
}
