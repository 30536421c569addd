package workflow

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/state"
)

func projectorState() *state.State {
	st := state.New(map[string]any{"query": "golang"})
	st = st.Record("search", models.StepResult{
		Status: models.StepStatusCompleted,
		Output: map[string]any{"total": float64(12), "top": map[string]any{"url": "https://example.com"}},
	})
	st = st.Record("enrich", models.StepResult{
		Status: models.StepStatusFailed,
		Error:  "capability_error: step \"enrich\": [action_failed] upstream 500",
	})

	return st
}

func TestProject_Fields(t *testing.T) {
	output := Project(projectorState(), &models.OutputSpec{
		Fields: map[string]string{
			"query": "{{input.query}}",
			"total": "{{steps.search.output.total}}",
			"url":   "{{steps.search.output.top.url}}",
		},
	}, slog.Default())

	assert.Equal(t, map[string]any{
		"query": "golang",
		"total": float64(12),
		"url":   "https://example.com",
	}, output)
}

func TestProject_FailedSourceBecomesNull(t *testing.T) {
	output := Project(projectorState(), &models.OutputSpec{
		Fields: map[string]string{
			"details": "{{steps.enrich.output.details}}",
			"total":   "{{steps.search.output.total}}",
		},
	}, slog.Default())

	assert.Nil(t, output["details"])
	assert.Equal(t, float64(12), output["total"])
}

func TestProject_UnrecordedStepBecomesNull(t *testing.T) {
	output := Project(projectorState(), &models.OutputSpec{
		Fields: map[string]string{"late": "{{steps.never_ran.output.x}}"},
	}, slog.Default())

	assert.Contains(t, output, "late")
	assert.Nil(t, output["late"])
}

func TestProject_Interpolation(t *testing.T) {
	output := Project(projectorState(), &models.OutputSpec{
		Fields: map[string]string{
			"summary": "{{steps.search.output.total}} results for {{input.query}}",
		},
	}, slog.Default())

	assert.Equal(t, "12 results for golang", output["summary"])
}

func TestProject_Metadata(t *testing.T) {
	output := Project(projectorState(), &models.OutputSpec{
		Fields:          map[string]string{"total": "{{steps.search.output.total}}"},
		IncludeMetadata: true,
	}, slog.Default())

	meta, ok := output["_metadata"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, 2, meta["total_steps"])
	assert.Equal(t, 1, meta["completed_steps"])
	assert.Equal(t, 1, meta["failed_steps"])
	assert.Equal(t, 0, meta["skipped_steps"])

	steps, ok := meta["steps"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"status": "completed"}, steps["search"])

	enrich, ok := steps["enrich"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "failed", enrich["status"])
	assert.Contains(t, enrich["error"], "upstream 500")
}
