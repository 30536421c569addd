package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/models"
)

func frozenBudget(config models.BudgetConfig, totalSteps int) (*Budget, *time.Time) {
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBudget(config, totalSteps)
	b.now = func() time.Time { return clock }
	b.startedAt = clock

	return b, &clock
}

func TestBudget_Defaults(t *testing.T) {
	b, _ := frozenBudget(models.BudgetConfig{}, 3)

	assert.InDelta(t, models.DefaultMaxCost, b.maxCost, 0.0001)
	assert.Equal(t, time.Duration(models.DefaultMaxDurationSeconds)*time.Second, b.maxDuration)
}

func TestBudget_UnderLimits(t *testing.T) {
	b, _ := frozenBudget(models.BudgetConfig{MaxCost: 5}, 3)
	b.Add(4.9999, 100)

	assert.Nil(t, b.Check())
}

func TestBudget_CostBoundaryIsInclusive(t *testing.T) {
	b, _ := frozenBudget(models.BudgetConfig{MaxCost: 5}, 3)
	b.Add(2.5, 100)
	b.Add(2.5, 100)

	violation := b.Check()

	require.NotNil(t, violation)
	assert.Equal(t, ViolationCost, violation.Kind)
	assert.Contains(t, violation.Message, "$5.00")
}

func TestBudget_DurationBoundaryIsInclusive(t *testing.T) {
	b, clock := frozenBudget(models.BudgetConfig{MaxDurationSeconds: 60}, 3)

	*clock = clock.Add(59 * time.Second)
	assert.Nil(t, b.Check())

	*clock = clock.Add(1 * time.Second)
	violation := b.Check()

	require.NotNil(t, violation)
	assert.Equal(t, ViolationDuration, violation.Kind)
}

func TestBudget_CostCheckedBeforeDuration(t *testing.T) {
	b, clock := frozenBudget(models.BudgetConfig{MaxCost: 1, MaxDurationSeconds: 60}, 2)
	b.Add(1, 50)
	*clock = clock.Add(2 * time.Minute)

	violation := b.Check()

	require.NotNil(t, violation)
	assert.Equal(t, ViolationCost, violation.Kind)
}

func TestBudget_Accounting(t *testing.T) {
	b, _ := frozenBudget(models.BudgetConfig{}, 4)
	b.Add(0.5, 1000)
	b.Add(0.25, 500)
	b.Advance(3)

	assert.InDelta(t, 0.75, b.Cost(), 0.0001)
	assert.Equal(t, int64(1500), b.Tokens())
	assert.Equal(t, 3, b.CurrentStep())
	assert.Equal(t, 4, b.TotalSteps())
}
