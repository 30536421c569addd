// Package expr parses and resolves {{path}} expressions against
// accumulated execution state.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Path is the parsed form of a dotted reference. Tokens are either
// string keys or int indexes, e.g. "steps.search.output.results[0].url"
// parses to ["steps" "search" "output" "results" 0 "url"].
type Path []any

// ParsePath parses a dot-separated reference. Each identifier may be
// followed by at most one [integer] index.
func ParsePath(expression string) (Path, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, fmt.Errorf("empty expression")
	}

	path := make(Path, 0, 4)

	for _, segment := range strings.Split(trimmed, ".") {
		if segment == "" {
			return nil, fmt.Errorf("empty path segment in %q", expression)
		}

		name := segment

		var index *int

		if open := strings.IndexByte(segment, '['); open >= 0 {
			if !strings.HasSuffix(segment, "]") {
				return nil, fmt.Errorf("unterminated index in segment %q", segment)
			}

			name = segment[:open]

			raw := segment[open+1 : len(segment)-1]

			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid index %q in segment %q", raw, segment)
			}

			index = &n
		}

		if name == "" {
			return nil, fmt.Errorf("missing identifier before index in segment %q", segment)
		}

		if strings.ContainsAny(name, "[]{} \t") {
			return nil, fmt.Errorf("invalid identifier %q in %q", name, expression)
		}

		path = append(path, name)
		if index != nil {
			path = append(path, *index)
		}
	}

	return path, nil
}

// Root returns the first identifier of the path.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}

	root, _ := p[0].(string)

	return root
}
