package expression

// DeepCopy returns a copy of a configuration tree that shares no mappings or
// sequences with the original. Scalars are copied by value.
func DeepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, item := range v {
			result[k] = DeepCopy(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = DeepCopy(item)
		}
		return result
	case []map[string]interface{}:
		result := make([]map[string]interface{}, len(v))
		for i, item := range v {
			result[i] = DeepCopy(item).(map[string]interface{})
		}
		return result
	case []string:
		result := make([]string, len(v))
		copy(result, v)
		return result
	case []byte:
		result := make([]byte, len(v))
		copy(result, v)
		return result
	default:
		return value
	}
}

// DeepCopyMap is DeepCopy for the common mapping case; nil yields an empty map
func DeepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return DeepCopy(m).(map[string]interface{})
}
