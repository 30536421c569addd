package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/weftworks/weft/pkg/expr"
)

var validate = validator.New()

// ErrNoSteps marks a definition or execution attempt with an empty step
// list.
var ErrNoSteps = errors.New("workflow has no steps")

// Validate checks the definition: struct-level constraints, contiguous
// step numbering from 1, unique slugs, and every embedded expression
// referencing only valid roots and known step slugs.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("workflow %s: %w", w.ID, err)
	}

	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %s: %w", w.ID, ErrNoSteps)
	}

	slugs := make(map[string]struct{}, len(w.Steps))
	numbers := make(map[int]struct{}, len(w.Steps))

	for _, step := range w.Steps {
		if _, dup := slugs[step.Slug]; dup {
			return fmt.Errorf("workflow %s: duplicate step slug %q", w.ID, step.Slug)
		}

		slugs[step.Slug] = struct{}{}

		if _, dup := numbers[step.Number]; dup {
			return fmt.Errorf("workflow %s: duplicate step number %d", w.ID, step.Number)
		}

		numbers[step.Number] = struct{}{}
	}

	for n := 1; n <= len(w.Steps); n++ {
		if _, ok := numbers[n]; !ok {
			return fmt.Errorf("workflow %s: step numbers must be contiguous 1..%d, missing %d", w.ID, len(w.Steps), n)
		}
	}

	for _, step := range w.Steps {
		if err := step.validateExpressions(slugs); err != nil {
			return fmt.Errorf("workflow %s step %q: %w", w.ID, step.Slug, err)
		}
	}

	if w.Output != nil {
		for field, expression := range w.Output.Fields {
			if err := expr.ValidateValue(expression, slugs); err != nil {
				return fmt.Errorf("workflow %s output field %q: %w", w.ID, field, err)
			}
		}
	}

	if err := validateOutputSchema(w.Reasoning.OutputSchema); err != nil {
		return fmt.Errorf("workflow %s reasoning: %w", w.ID, err)
	}

	return nil
}

func (s *Step) validateExpressions(slugs map[string]struct{}) error {
	if err := expr.ValidateValue(s.Input, slugs); err != nil {
		return fmt.Errorf("input mapping: %w", err)
	}

	if s.Skip != nil {
		// Conditions may be written as a bare path or wrapped in {{ }}.
		var err error
		if len(expr.ExtractExpressions(s.Skip.Expression)) > 0 {
			err = expr.ValidateValue(s.Skip.Expression, slugs)
		} else {
			err = expr.ValidateExpression(s.Skip.Expression, slugs)
		}

		if err != nil {
			return fmt.Errorf("skip condition: %w", err)
		}
	}

	if s.Reasoning != nil && s.Reasoning.Config != nil {
		if err := validateOutputSchema(s.Reasoning.Config.OutputSchema); err != nil {
			return fmt.Errorf("reasoning: %w", err)
		}
	}

	return nil
}

// validateOutputSchema checks that a configured expected-output schema is
// itself a loadable JSON Schema, so a bad schema fails at definition
// time instead of inside a reasoning call.
func validateOutputSchema(schema map[string]any) error {
	if schema == nil {
		return nil
	}

	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
		return fmt.Errorf("invalid output schema: %w", err)
	}

	return nil
}

// Runnable reports whether the workflow may be executed in its current
// lifecycle status.
func (w *Workflow) Runnable() bool {
	return w.Status == WorkflowStatusActive
}

// StepsInOrder returns the steps sorted by number without mutating the
// definition.
func (w *Workflow) StepsInOrder() []*Step {
	ordered := make([]*Step, len(w.Steps))
	copy(ordered, w.Steps)

	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].Number > ordered[j].Number; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}

	return ordered
}
