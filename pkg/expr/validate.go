package expr

import "fmt"

// ValidateExpression checks a single path expression at design time:
// the root must be "input" or "steps", and a steps reference must name a
// slug present in the definition.
func ValidateExpression(expression string, slugs map[string]struct{}) error {
	path, err := ParsePath(expression)
	if err != nil {
		return err
	}

	switch path.Root() {
	case RootInput:
		return nil
	case RootSteps:
		if len(path) < 2 {
			return fmt.Errorf("expression %q references steps without a step slug", expression)
		}

		slug, ok := path[1].(string)
		if !ok {
			return fmt.Errorf("expression %q indexes steps instead of naming a slug", expression)
		}

		if _, known := slugs[slug]; !known {
			return fmt.Errorf("expression %q references unknown step %q", expression, slug)
		}

		return nil
	default:
		return fmt.Errorf("expression %q has invalid root %q: only %q and %q are allowed", expression, path.Root(), RootInput, RootSteps)
	}
}

// ValidateValue deep-walks a nested template value and validates every
// embedded expression.
func ValidateValue(value any, slugs map[string]struct{}) error {
	switch v := value.(type) {
	case string:
		for _, expression := range ExtractExpressions(v) {
			if err := ValidateExpression(expression, slugs); err != nil {
				return err
			}
		}

		return nil
	case map[string]any:
		for key, item := range v {
			if err := ValidateValue(item, slugs); err != nil {
				return fmt.Errorf("%q: %w", key, err)
			}
		}

		return nil
	case []any:
		for i, item := range v {
			if err := ValidateValue(item, slugs); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}

		return nil
	default:
		return nil
	}
}
