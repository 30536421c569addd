// Package transform provides the built-in weft/transform action.
package transform

import (
	"context"
	"fmt"
	"log/slog"
)

// Identifier is the registry key for this action.
const Identifier = "weft/transform"

// Action reshapes data between steps. The step's input mapping has
// already been resolved by the time it arrives here, so the action just
// returns the "value" field (or, without one, the whole input object).
// It exists so a workflow can materialize a derived object as its own
// step result for later steps to reference.
type Action struct{}

func New() *Action {
	return &Action{}
}

func (a *Action) Execute(_ context.Context, input map[string]any, logger *slog.Logger) (any, error) {
	if input == nil {
		return nil, fmt.Errorf("transform requires an input mapping")
	}

	logger.Debug("Executing transform action", "fields", len(input))

	if value, ok := input["value"]; ok {
		return value, nil
	}

	return input, nil
}
