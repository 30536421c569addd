package expr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// Valid expression roots. Design-time validation rejects anything else.
const (
	RootInput = "input"
	RootSteps = "steps"
)

// Scope is the state an expression resolves against.
type Scope interface {
	// Input is the execution's initial input object.
	Input() map[string]any

	// Step returns the recorded result tree for a slug, or false when
	// the step has not recorded a result yet.
	Step(slug string) (map[string]any, bool)
}

// UnrecordedStepError marks a reference to a step that has not recorded
// a result yet. It is distinct from resolving to undefined: it signals
// an ordering bug in the workflow definition.
type UnrecordedStepError struct {
	Slug string
}

func (e *UnrecordedStepError) Error() string {
	return fmt.Sprintf("step %q has not recorded a result yet", e.Slug)
}

var exprPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Resolve evaluates a single path expression (without the {{ }}
// delimiters) against the scope. Undefined, null or type-mismatched
// intermediates yield (nil, nil); referencing an unrecorded step yields
// an *UnrecordedStepError.
func Resolve(scope Scope, expression string) (any, error) {
	path, err := ParsePath(expression)
	if err != nil {
		return nil, err
	}

	return ResolvePath(scope, path)
}

// ResolvePath evaluates a parsed path against the scope.
func ResolvePath(scope Scope, path Path) (any, error) {
	switch path.Root() {
	case RootInput:
		return walk(scope.Input(), path[1:]), nil
	case RootSteps:
		if len(path) < 2 {
			return nil, fmt.Errorf("steps reference is missing a step slug")
		}

		slug, ok := path[1].(string)
		if !ok {
			return nil, fmt.Errorf("steps reference must be followed by a step slug")
		}

		tree, recorded := scope.Step(slug)
		if !recorded {
			return nil, &UnrecordedStepError{Slug: slug}
		}

		return walk(tree, path[2:]), nil
	default:
		return nil, fmt.Errorf("invalid expression root %q: only %q and %q are allowed", path.Root(), RootInput, RootSteps)
	}
}

// ResolveString resolves a string that may contain expressions. A string
// that is exactly one {{...}} expression returns the resolved value with
// its native type preserved. A string mixing expressions with literal
// text is rendered as a string: objects and arrays are JSON-stringified,
// null and undefined render as the empty string.
func ResolveString(scope Scope, input string) (any, error) {
	matches := exprPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(input) {
		return Resolve(scope, input[matches[0][2]:matches[0][3]])
	}

	var resolveErr error

	rendered := exprPattern.ReplaceAllStringFunc(input, func(match string) string {
		if resolveErr != nil {
			return ""
		}

		inner := exprPattern.FindStringSubmatch(match)[1]

		value, err := Resolve(scope, inner)
		if err != nil {
			resolveErr = err

			return ""
		}

		return stringify(value)
	})

	if resolveErr != nil {
		return nil, resolveErr
	}

	return rendered, nil
}

// ResolveValue deep-walks an arbitrary nested value, resolving every
// string through ResolveString and leaving everything else untouched.
func ResolveValue(scope Scope, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return ResolveString(scope, v)
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for key, item := range v {
			r, err := ResolveValue(scope, item)
			if err != nil {
				return nil, fmt.Errorf("resolving %q: %w", key, err)
			}

			resolved[key] = r
		}

		return resolved, nil
	case []any:
		resolved := make([]any, len(v))
		for i, item := range v {
			r, err := ResolveValue(scope, item)
			if err != nil {
				return nil, fmt.Errorf("resolving index %d: %w", i, err)
			}

			resolved[i] = r
		}

		return resolved, nil
	default:
		return value, nil
	}
}

// ExtractExpressions returns the inner path text of every {{...}}
// expression embedded in the input string.
func ExtractExpressions(input string) []string {
	matches := exprPattern.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		return nil
	}

	expressions := make([]string, 0, len(matches))
	for _, m := range matches {
		expressions = append(expressions, m[1])
	}

	return expressions
}

func walk(current any, rest Path) any {
	for _, token := range rest {
		if current == nil {
			return nil
		}

		switch key := token.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return nil
			}

			current = m[key]
		case int:
			list, ok := current.([]any)
			if !ok || key >= len(list) {
				return nil
			}

			current = list[key]
		}
	}

	return current
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
