package analysis

import (
	"strings"
	"unicode"
)

// NormalizeTags canonicalizes a tag value into a trimmed, deduplicated list.
// A list input is flattened element by element; a string input is split on
// any run of commas, slashes, or whitespace. Empty elements are dropped and
// first-occurrence order is preserved. The function is idempotent.
func NormalizeTags(value interface{}) []string {
	switch typed := value.(type) {
	case nil:
		return []string{}
	case []string:
		return dedupeTags(typed)
	case []interface{}:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, coerceString(item))
		}
		return dedupeTags(parts)
	case string:
		return dedupeTags(splitTags(typed))
	default:
		return dedupeTags(splitTags(coerceString(value)))
	}
}

func splitTags(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '/' || unicode.IsSpace(r)
	})
}

func dedupeTags(parts []string) []string {
	tags := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
