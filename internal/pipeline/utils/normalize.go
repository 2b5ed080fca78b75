package utils

import "fmt"

// Normalize converts map[interface{}]interface{} mappings, as produced by
// some YAML decoders, into map[string]interface{} throughout a value.
// Maps and slices already in string-keyed form are updated in place.
func Normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			result[fmt.Sprintf("%v", k)] = Normalize(item)
		}
		return result
	case map[string]interface{}:
		for k, item := range val {
			val[k] = Normalize(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = Normalize(item)
		}
		return val
	default:
		return v
	}
}
