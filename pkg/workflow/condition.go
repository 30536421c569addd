package workflow

import (
	"errors"
	"strings"

	"github.com/weftworks/weft/pkg/expr"
	"github.com/weftworks/weft/pkg/models"
	"github.com/weftworks/weft/pkg/state"
)

// ShouldSkip evaluates a step's skip condition against current state.
// No condition means never skip. A reference to a step that has not
// executed yet is treated as falsy instead of an error: forward
// references in conditions are common (e.g. pointing at a step that was
// itself skipped) and must not abort the run.
func ShouldSkip(st *state.State, condition *models.SkipCondition) (bool, error) {
	if condition == nil {
		return false, nil
	}

	value, err := resolveCondition(st, condition.Expression)
	if err != nil {
		var unrecorded *expr.UnrecordedStepError
		if errors.As(err, &unrecorded) {
			value = nil
		} else {
			return false, err
		}
	}

	truthy := expr.Truthy(value)

	switch condition.When {
	case models.SkipWhenFalsy:
		return !truthy, nil
	default:
		return truthy, nil
	}
}

// resolveCondition accepts both bare paths and {{ }}-wrapped
// expressions.
func resolveCondition(st *state.State, expression string) (any, error) {
	if strings.Contains(expression, "{{") {
		return expr.ResolveString(st, expression)
	}

	return expr.Resolve(st, expression)
}
