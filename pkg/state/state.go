// Package state holds the immutable accumulated record of one workflow
// execution: the initial input plus every recorded step result. Every
// mutation produces a new value; a recorded result is never overwritten.
package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weftworks/weft/pkg/models"
)

// DefaultSummaryLimit caps each step's rendered output in Summary.
const DefaultSummaryLimit = 2000

// State is the execution state threaded between steps. The zero value
// is not usable; build one with New or Deserialize.
type State struct {
	input   map[string]any
	results map[string]models.StepResult
	order   []string
}

// New creates the initial state for an execution with an empty step map.
func New(input map[string]any) *State {
	if input == nil {
		input = map[string]any{}
	}

	return &State{
		input:   input,
		results: map[string]models.StepResult{},
	}
}

// Record returns a new state with the step result added. The receiver is
// never mutated. Recording a slug that already has a result leaves state
// unchanged: slugs are unique within a definition and results are
// immutable once recorded.
func (s *State) Record(slug string, result models.StepResult) *State {
	if _, exists := s.results[slug]; exists {
		return s
	}

	results := make(map[string]models.StepResult, len(s.results)+1)
	for k, v := range s.results {
		results[k] = v
	}

	results[slug] = result

	order := make([]string, len(s.order), len(s.order)+1)
	copy(order, s.order)
	order = append(order, slug)

	return &State{input: s.input, results: results, order: order}
}

// Input implements expr.Scope.
func (s *State) Input() map[string]any {
	return s.input
}

// Step implements expr.Scope: it returns the recorded result as the
// nested-map tree expressions walk, or false when unrecorded.
func (s *State) Step(slug string) (map[string]any, bool) {
	result, ok := s.results[slug]
	if !ok {
		return nil, false
	}

	return result.Tree(), true
}

// Has reports whether a result is recorded for the slug.
func (s *State) Has(slug string) bool {
	_, ok := s.results[slug]

	return ok
}

// Result returns the recorded result for a slug.
func (s *State) Result(slug string) (models.StepResult, bool) {
	result, ok := s.results[slug]

	return result, ok
}

// Slugs returns recorded slugs in recording order.
func (s *State) Slugs() []string {
	slugs := make([]string, len(s.order))
	copy(slugs, s.order)

	return slugs
}

// Len returns the number of recorded results.
func (s *State) Len() int {
	return len(s.results)
}

// StatusCounts returns how many recorded steps are in each status.
func (s *State) StatusCounts() map[models.StepStatus]int {
	counts := map[models.StepStatus]int{}
	for _, result := range s.results {
		counts[result.Status]++
	}

	return counts
}

// LastCompleted returns the most recently recorded completed result.
func (s *State) LastCompleted() (string, models.StepResult, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		slug := s.order[i]
		if result := s.results[slug]; result.Status == models.StepStatusCompleted {
			return slug, result, true
		}
	}

	return "", models.StepResult{}, false
}

// Summary renders every recorded step for inclusion in a reasoning
// prompt, each step's output and reasoning JSON-rendered and capped at
// limit characters (DefaultSummaryLimit when limit <= 0).
func (s *State) Summary(limit int) string {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}

	if len(s.order) == 0 {
		return "(no steps executed yet)"
	}

	var b strings.Builder

	for _, slug := range s.order {
		result := s.results[slug]

		fmt.Fprintf(&b, "- %s [%s]", slug, result.Status)

		if result.Error != "" {
			fmt.Fprintf(&b, " error: %s", truncate(result.Error, limit))
		}

		if result.Output != nil {
			fmt.Fprintf(&b, " output: %s", truncate(renderJSON(result.Output), limit))
		}

		if result.Reasoning != nil {
			fmt.Fprintf(&b, " reasoning: %s", truncate(renderJSON(result.Reasoning), limit))
		}

		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}

// Serialize converts the state to the plain nested-map representation
// used at the persistence boundary: maps, arrays and JSON-primitive
// leaves only.
func (s *State) Serialize() map[string]any {
	steps := make(map[string]any, len(s.results))
	for slug, result := range s.results {
		steps[slug] = result.Tree()
	}

	return map[string]any{
		"input": s.input,
		"steps": steps,
		"order": sliceOfAny(s.order),
	}
}

// Deserialize rebuilds a state from its serialized representation.
func Deserialize(data map[string]any) (*State, error) {
	input, _ := data["input"].(map[string]any)

	st := New(input)

	steps, _ := data["steps"].(map[string]any)

	order, err := stepOrder(data, steps)
	if err != nil {
		return nil, err
	}

	for _, slug := range order {
		tree, ok := steps[slug].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step %q has a non-object result", slug)
		}

		st = st.Record(slug, resultFromTree(tree))
	}

	return st, nil
}

func stepOrder(data map[string]any, steps map[string]any) ([]string, error) {
	raw, ok := data["order"].([]any)
	if !ok {
		// Order is advisory; fall back to map iteration for states
		// serialized by an older writer.
		slugs := make([]string, 0, len(steps))
		for slug := range steps {
			slugs = append(slugs, slug)
		}

		return slugs, nil
	}

	slugs := make([]string, 0, len(raw))

	for _, item := range raw {
		slug, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("step order contains a non-string entry: %v", item)
		}

		if _, present := steps[slug]; !present {
			return nil, fmt.Errorf("step order references missing step %q", slug)
		}

		slugs = append(slugs, slug)
	}

	return slugs, nil
}

func resultFromTree(tree map[string]any) models.StepResult {
	result := models.StepResult{
		Output: tree["output"],
	}

	if status, ok := tree["status"].(string); ok {
		result.Status = models.StepStatus(status)
	}

	if errMsg, ok := tree["error"].(string); ok {
		result.Error = errMsg
	}

	if reasoning, ok := tree["reasoning"].(map[string]any); ok {
		result.Reasoning = reasoning
	}

	return result
}

func renderJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(encoded)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}

func sliceOfAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}

	return out
}
