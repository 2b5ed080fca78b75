package templates

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"text/template"

	"pubsub2inbox/internal/common/errors"
)

// baseFunctions returns the generic helpers available to every template.
// Arguments follow the pipe convention: the value being operated on comes last.
func baseFunctions() template.FuncMap {
	return template.FuncMap{
		"dict":      dict,
		"list":      list,
		"default":   defaultFunc,
		"empty":     empty,
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"replace":   replace,
		"split":     split,
		"join":      join,
		"contains":  contains,
		"hasPrefix": hasPrefix,
		"hasSuffix": hasSuffix,
		"toString":  toString,
		"keys":      keys,
		"hasKey":    hasKey,
		"merge":     merge,
	}
}

func dict(pairs ...interface{}) (map[string]interface{}, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.ValidationError("dict requires an even number of arguments")
	}
	result := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, errors.ValidationError(fmt.Sprintf("dict key %v is not a string", pairs[i]))
		}
		result[key] = pairs[i+1]
	}
	return result, nil
}

func list(items ...interface{}) []interface{} {
	result := make([]interface{}, len(items))
	copy(result, items)
	return result
}

func defaultFunc(defaultVal, actualVal interface{}) interface{} {
	if empty(actualVal) {
		return defaultVal
	}
	return actualVal
}

func empty(v interface{}) bool {
	if v == nil {
		return true
	}

	switch val := v.(type) {
	case string:
		return val == ""
	case int, int8, int16, int32, int64:
		return val == 0
	case uint, uint8, uint16, uint32, uint64:
		return val == 0
	case float32:
		return val == 0
	case float64:
		return val == 0
	case bool:
		return !val
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Array, reflect.Slice, reflect.Map, reflect.Chan:
			return rv.Len() == 0
		case reflect.Ptr, reflect.Interface:
			return rv.IsNil()
		}
	}

	return false
}

func replace(old, repl, s string) string {
	return strings.ReplaceAll(s, old, repl)
}

func split(sep, s string) []interface{} {
	parts := strings.Split(s, sep)
	result := make([]interface{}, len(parts))
	for i, p := range parts {
		result[i] = p
	}
	return result
}

func join(sep string, v interface{}) (string, error) {
	switch items := v.(type) {
	case []string:
		return strings.Join(items, sep), nil
	case []interface{}:
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = toString(item)
		}
		return strings.Join(parts, sep), nil
	case nil:
		return "", nil
	default:
		return "", errors.ValidationError(fmt.Sprintf("join expects a list, got %T", v))
	}
}

func contains(substr, s string) bool {
	return strings.Contains(s, substr)
}

func hasPrefix(prefix, s string) bool {
	return strings.HasPrefix(s, prefix)
}

func hasSuffix(suffix, s string) bool {
	return strings.HasSuffix(s, suffix)
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func keys(v interface{}) []interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	result := make([]interface{}, len(names))
	for i, k := range names {
		result[i] = k
	}
	return result
}

func hasKey(key string, v interface{}) bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	_, exists := m[key]
	return exists
}

func merge(maps ...interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, m := range maps {
		if val, ok := m.(map[string]interface{}); ok {
			for k, v := range val {
				result[k] = v
			}
		}
	}
	return result
}
