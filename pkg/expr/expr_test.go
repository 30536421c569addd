package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testScope struct {
	input map[string]any
	steps map[string]map[string]any
}

func (s *testScope) Input() map[string]any { return s.input }

func (s *testScope) Step(slug string) (map[string]any, bool) {
	tree, ok := s.steps[slug]

	return tree, ok
}

func newTestScope() *testScope {
	return &testScope{
		input: map[string]any{
			"name":  "Ada",
			"count": 3.0,
			"query": map[string]any{"text": "golang", "limit": 10.0},
		},
		steps: map[string]map[string]any{
			"search": {
				"status": "completed",
				"output": map[string]any{
					"results": []any{
						map[string]any{"url": "https://example.com/a", "score": 0.9},
						map[string]any{"url": "https://example.com/b", "score": 0.4},
					},
				},
			},
		},
	}
}

func TestParsePath(t *testing.T) {
	path, err := ParsePath("steps.search.output.results[0].url")
	require.NoError(t, err)
	assert.Equal(t, Path{"steps", "search", "output", "results", 0, "url"}, path)
}

func TestParsePath_Errors(t *testing.T) {
	cases := []string{"", "a..b", "a[", "a[x]", "a[-1]", "[0]", "a[0"}
	for _, input := range cases {
		_, err := ParsePath(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestResolve_Input(t *testing.T) {
	scope := newTestScope()

	value, err := Resolve(scope, "input.name")
	require.NoError(t, err)
	assert.Equal(t, "Ada", value)

	value, err = Resolve(scope, "input.query.limit")
	require.NoError(t, err)
	assert.Equal(t, 10.0, value)
}

func TestResolve_StepOutput(t *testing.T) {
	scope := newTestScope()

	value, err := Resolve(scope, "steps.search.output.results[0].url")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", value)

	value, err = Resolve(scope, "steps.search.status")
	require.NoError(t, err)
	assert.Equal(t, "completed", value)
}

func TestResolve_UndefinedIntermediatesAreNil(t *testing.T) {
	scope := newTestScope()

	for _, expression := range []string{
		"input.missing",
		"input.name.deeper",
		"steps.search.output.results[9].url",
		"steps.search.output.results[0].missing.more",
	} {
		value, err := Resolve(scope, expression)
		require.NoError(t, err, "expression %q", expression)
		assert.Nil(t, value, "expression %q", expression)
	}
}

func TestResolve_UnrecordedStepIsAnError(t *testing.T) {
	scope := newTestScope()

	_, err := Resolve(scope, "steps.summarize.output")
	require.Error(t, err)

	var unrecorded *UnrecordedStepError

	require.True(t, errors.As(err, &unrecorded))
	assert.Equal(t, "summarize", unrecorded.Slug)
}

func TestResolve_InvalidRoot(t *testing.T) {
	scope := newTestScope()

	_, err := Resolve(scope, "vars.name")
	assert.Error(t, err)
}

func TestResolveString_ExactExpressionPreservesType(t *testing.T) {
	scope := newTestScope()

	value, err := ResolveString(scope, "{{input.query}}")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "golang", "limit": 10.0}, value)

	value, err = ResolveString(scope, "{{ input.count }}")
	require.NoError(t, err)
	assert.Equal(t, 3.0, value)

	value, err = ResolveString(scope, "{{steps.search.output.results}}")
	require.NoError(t, err)
	assert.Len(t, value, 2)
}

func TestResolveString_Interpolation(t *testing.T) {
	scope := newTestScope()

	value, err := ResolveString(scope, "Hi {{input.name}}, {{input.count}} results")
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada, 3 results", value)

	// Objects are JSON-stringified inside literal text.
	value, err = ResolveString(scope, "query={{input.query}}")
	require.NoError(t, err)
	assert.Contains(t, value, `"text":"golang"`)

	// Undefined renders as empty string.
	value, err = ResolveString(scope, "x={{input.missing}}!")
	require.NoError(t, err)
	assert.Equal(t, "x=!", value)
}

func TestResolveString_NoExpressions(t *testing.T) {
	scope := newTestScope()

	value, err := ResolveString(scope, "plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", value)
}

func TestResolveString_InterpolationPropagatesUnrecordedStep(t *testing.T) {
	scope := newTestScope()

	_, err := ResolveString(scope, "result: {{steps.later.output}}")
	require.Error(t, err)

	var unrecorded *UnrecordedStepError

	assert.True(t, errors.As(err, &unrecorded))
}

func TestResolveValue_DeepWalk(t *testing.T) {
	scope := newTestScope()

	input := map[string]any{
		"url":   "{{steps.search.output.results[0].url}}",
		"label": "for {{input.name}}",
		"limit": 5,
		"nested": map[string]any{
			"query": "{{input.query}}",
			"tags":  []any{"{{input.name}}", "static"},
		},
	}

	resolved, err := ResolveValue(scope, input)
	require.NoError(t, err)

	m, ok := resolved.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", m["url"])
	assert.Equal(t, "for Ada", m["label"])
	assert.Equal(t, 5, m["limit"])

	nested, ok := m["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"text": "golang", "limit": 10.0}, nested["query"])
	assert.Equal(t, []any{"Ada", "static"}, nested["tags"])
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy(true))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(0.0))
	assert.True(t, Truthy(42))
	assert.True(t, Truthy(-1.5))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy("false"))
	assert.True(t, Truthy("completed"))
	assert.False(t, Truthy([]any{}))
	assert.True(t, Truthy([]any{1}))
	assert.False(t, Truthy(map[string]any{}))
	assert.True(t, Truthy(map[string]any{"a": 1}))
}

func TestValidateExpression(t *testing.T) {
	slugs := map[string]struct{}{"search": {}, "summarize": {}}

	assert.NoError(t, ValidateExpression("input.anything.at.all", slugs))
	assert.NoError(t, ValidateExpression("steps.search.output", slugs))
	assert.Error(t, ValidateExpression("steps.unknown.output", slugs))
	assert.Error(t, ValidateExpression("env.HOME", slugs))
	assert.Error(t, ValidateExpression("steps", slugs))
}

func TestValidateValue(t *testing.T) {
	slugs := map[string]struct{}{"search": {}}

	valid := map[string]any{
		"a": "{{input.x}}",
		"b": []any{"{{steps.search.output}}"},
		"c": 12,
	}
	assert.NoError(t, ValidateValue(valid, slugs))

	invalid := map[string]any{
		"a": map[string]any{"inner": "{{steps.ghost.output}}"},
	}
	assert.Error(t, ValidateValue(invalid, slugs))
}
