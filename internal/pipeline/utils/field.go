package utils

import (
	"strconv"
	"strings"
)

// GetFieldValue extracts a value from nested maps and lists using a
// dot-separated path such as "vertexgenai.predictions.0.content".
// Bracket indexes ("items[0].name") are accepted too. The boolean reports
// whether the full path resolved.
func GetFieldValue(data map[string]interface{}, path string) (interface{}, bool) {
	if path == "" || data == nil {
		return nil, false
	}

	current := interface{}(data)
	for _, part := range splitPath(path) {
		switch v := current.(type) {
		case map[string]interface{}:
			next, exists := v[part]
			if !exists {
				return nil, false
			}
			current = next

		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]

		default:
			return nil, false
		}
	}

	return current, true
}

// splitPath turns "a.b[0].c" into ["a", "b", "0", "c"].
func splitPath(path string) []string {
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)
	raw := strings.Split(path, ".")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
