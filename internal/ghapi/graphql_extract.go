// Package ghapi provides GitHub API client functionality.
//
// This file (graphql_extract.go) contains low-level data extraction functions
// for untyped GraphQL payloads.
package ghapi

// lookup walks nested objects along path.
func lookup(data map[string]any, path ...string) (any, bool) {
	var cur any = data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func getString(data map[string]any, path ...string) string {
	v, _ := lookup(data, path...)
	s, _ := v.(string)
	return s
}

func getList(data map[string]any, path ...string) []map[string]any {
	v, _ := lookup(data, path...)
	raw, _ := v.([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
