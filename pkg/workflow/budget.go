package workflow

import (
	"fmt"
	"time"

	"github.com/weftworks/weft/pkg/models"
)

// ViolationKind distinguishes the two budget limits: the kind decides
// the run's terminal status (cost -> failed, duration -> timeout).
type ViolationKind string

const (
	ViolationCost     ViolationKind = "cost"
	ViolationDuration ViolationKind = "duration"
)

// Violation describes one exceeded budget limit.
type Violation struct {
	Kind    ViolationKind
	Message string
}

// Budget tracks what one execution has spent. It is checked before a
// step starts, against cost and time accumulated by prior steps only:
// a running step is never interrupted mid-flight. Both boundaries are
// inclusive.
type Budget struct {
	maxCost     float64
	maxDuration time.Duration
	startedAt   time.Time
	cost        float64
	tokens      int64
	currentStep int
	totalSteps  int
	now         func() time.Time
}

// NewBudget builds the budget context for one run. The lifecycle spans
// exactly one orchestrator run.
func NewBudget(config models.BudgetConfig, totalSteps int) *Budget {
	b := &Budget{
		maxCost:     config.EffectiveMaxCost(),
		maxDuration: config.EffectiveMaxDuration(),
		totalSteps:  totalSteps,
		now:         time.Now,
	}
	b.startedAt = b.now()

	return b
}

// Check returns a violation when a limit is already met or exceeded,
// nil otherwise.
func (b *Budget) Check() *Violation {
	if b.cost >= b.maxCost {
		return &Violation{
			Kind:    ViolationCost,
			Message: fmt.Sprintf("accumulated cost $%.4f reached limit $%.2f", b.cost, b.maxCost),
		}
	}

	if elapsed := b.now().Sub(b.startedAt); elapsed >= b.maxDuration {
		return &Violation{
			Kind:    ViolationDuration,
			Message: fmt.Sprintf("elapsed %s reached limit %s", elapsed.Round(time.Millisecond), b.maxDuration),
		}
	}

	return nil
}

// Add records a finished step's spend.
func (b *Budget) Add(cost float64, tokens int64) {
	b.cost += cost
	b.tokens += tokens
}

// Advance moves the step counter to the step about to run (1-based).
func (b *Budget) Advance(step int) {
	b.currentStep = step
}

func (b *Budget) Cost() float64          { return b.cost }
func (b *Budget) Tokens() int64          { return b.tokens }
func (b *Budget) StartedAt() time.Time   { return b.startedAt }
func (b *Budget) CurrentStep() int       { return b.currentStep }
func (b *Budget) TotalSteps() int        { return b.totalSteps }
