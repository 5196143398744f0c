// Package pathexpr evaluates the dotted-path-with-array-index expressions
// used by learned-pattern content mappings (§ 4.4.2) and by Verification
// Engine field checks (§ 4.8): "a.b[0].c" walks map key "a", then map key
// "b", then array index 0, then map key "c".
package pathexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup walks doc along path, resolving one dotted segment at a time and
// any bracketed indices trailing that segment. It returns ok=false as soon
// as a segment fails to resolve: a missing map key, a nil value, an
// out-of-range or non-array index, or a malformed path.
func Lookup(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	cur := doc
	for _, part := range strings.Split(path, ".") {
		key, indices, err := parseSegment(part)
		if err != nil {
			return nil, false
		}
		if key != "" {
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, false
			}
			v, ok := m[key]
			if !ok || v == nil {
				return nil, false
			}
			cur = v
		}
		for _, idx := range indices {
			arr, ok := cur.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
			if cur == nil {
				return nil, false
			}
		}
	}
	return cur, true
}

// parseSegment splits one dotted-path segment such as "items[0][1]" into
// its leading map key ("items", possibly empty for a bare "[0]") and its
// ordered array indices.
func parseSegment(part string) (key string, indices []int, err error) {
	i := strings.IndexByte(part, '[')
	if i == -1 {
		return part, nil, nil
	}
	key = part[:i]
	rest := part[i:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("pathexpr: malformed segment %q", part)
		}
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return "", nil, fmt.Errorf("pathexpr: unclosed bracket in %q", part)
		}
		n, convErr := strconv.Atoi(rest[1:end])
		if convErr != nil {
			return "", nil, fmt.Errorf("pathexpr: non-numeric index in %q: %w", part, convErr)
		}
		indices = append(indices, n)
		rest = rest[end+1:]
	}
	return key, indices, nil
}
