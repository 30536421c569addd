package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/state"
)

func conditionState() *state.State {
	st := state.New(map[string]any{"dry_run": true, "name": ""})

	return st.Record("check", models.StepResult{
		Status: models.StepStatusCompleted,
		Output: map[string]any{"found": false, "count": float64(3)},
	})
}

func TestShouldSkip_NoCondition(t *testing.T) {
	skip, err := ShouldSkip(conditionState(), nil)

	require.NoError(t, err)
	assert.False(t, skip)
}

func TestShouldSkip_TruthyInput(t *testing.T) {
	skip, err := ShouldSkip(conditionState(), &models.SkipCondition{
		Expression: "input.dry_run",
		When:       models.SkipWhenTruthy,
	})

	require.NoError(t, err)
	assert.True(t, skip)
}

func TestShouldSkip_FalsyStepOutput(t *testing.T) {
	skip, err := ShouldSkip(conditionState(), &models.SkipCondition{
		Expression: "steps.check.output.found",
		When:       models.SkipWhenFalsy,
	})

	require.NoError(t, err)
	assert.True(t, skip)
}

func TestShouldSkip_WrappedExpression(t *testing.T) {
	skip, err := ShouldSkip(conditionState(), &models.SkipCondition{
		Expression: "{{ steps.check.output.count }}",
		When:       models.SkipWhenTruthy,
	})

	require.NoError(t, err)
	assert.True(t, skip)
}

func TestShouldSkip_UnrecordedStepIsFalsy(t *testing.T) {
	condition := &models.SkipCondition{
		Expression: "steps.later.output.ok",
		When:       models.SkipWhenTruthy,
	}

	skip, err := ShouldSkip(conditionState(), condition)
	require.NoError(t, err)
	assert.False(t, skip)

	condition.When = models.SkipWhenFalsy
	skip, err = ShouldSkip(conditionState(), condition)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestShouldSkip_UndefinedPathIsFalsy(t *testing.T) {
	skip, err := ShouldSkip(conditionState(), &models.SkipCondition{
		Expression: "input.missing",
		When:       models.SkipWhenTruthy,
	})

	require.NoError(t, err)
	assert.False(t, skip)
}

func TestShouldSkip_InvalidRootErrors(t *testing.T) {
	_, err := ShouldSkip(conditionState(), &models.SkipCondition{
		Expression: "env.dry_run",
		When:       models.SkipWhenTruthy,
	})

	require.Error(t, err)
}
