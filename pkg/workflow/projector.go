package workflow

import (
	"log/slog"

	"github.com/weftworks/weft/pkg/expr"
	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/state"
)

// Project shapes the final output of a run from its accumulated state.
// Each declared field resolves independently; a field whose expression
// fails or points at missing data becomes null rather than poisoning
// its siblings.
func Project(st *state.State, spec *models.OutputSpec, logger *slog.Logger) map[string]any {
	output := make(map[string]any, len(spec.Fields)+1)

	for name, expression := range spec.Fields {
		value, err := expr.ResolveString(st, expression)
		if err != nil {
			logger.Warn("Output field failed to resolve", "field", name, "error", err)

			output[name] = nil

			continue
		}

		output[name] = value
	}

	if spec.IncludeMetadata {
		output["_metadata"] = projectMetadata(st)
	}

	return output
}

func projectMetadata(st *state.State) map[string]any {
	counts := st.StatusCounts()

	steps := make(map[string]any, st.Len())

	for _, slug := range st.Slugs() {
		result, _ := st.Result(slug)

		entry := map[string]any{"status": string(result.Status)}
		if result.Error != "" {
			entry["error"] = result.Error
		}

		steps[slug] = entry
	}

	return map[string]any{
		"total_steps":     st.Len(),
		"completed_steps": counts[models.StepStatusCompleted],
		"failed_steps":    counts[models.StepStatusFailed],
		"skipped_steps":   counts[models.StepStatusSkipped],
		"steps":           steps,
	}
}
