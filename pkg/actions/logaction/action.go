// Package logaction provides the built-in weft/log action.
package logaction

import (
	"context"
	"log/slog"
)

// Identifier is the registry key for this action.
const Identifier = "weft/log"

// Action writes the resolved message to the execution log and echoes it
// back as output, mostly useful while authoring workflows.
type Action struct{}

func New() *Action {
	return &Action{}
}

func (a *Action) Execute(_ context.Context, input map[string]any, logger *slog.Logger) (any, error) {
	message, _ := input["message"].(string)
	level, _ := input["level"].(string)

	switch level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}

	return map[string]any{"logged": true, "message": message}, nil
}
