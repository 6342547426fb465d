package extract

import "strings"

// ParseCategoryPath accepts a
// []any/[]string, or a string split on "/" or ">" (priority "/" then ">"),
// stripping entries and dropping empties. Grounded on the original
// parse_category_hierarchy's separator priority.
func ParseCategoryPath(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return cleanPathEntries(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return cleanPathEntries(out)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		for _, sep := range []string{"/", ">"} {
			if strings.Contains(s, sep) {
				return cleanPathEntries(strings.Split(s, sep))
			}
		}
		return []string{s}
	default:
		return nil
	}
}

func cleanPathEntries(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		trimmed := strings.TrimSpace(e)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
