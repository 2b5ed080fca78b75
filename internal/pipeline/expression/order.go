package expression

import (
	"sort"
	"strconv"
	"strings"
)

// KeyOrder holds the declaration order of mapping keys by path. The root
// mapping is stored under "" and nested paths look like "request.instances[0]".
type KeyOrder map[string][]string

// Keys returns the keys of m in declaration order. Keys without a recorded
// position follow in sorted order.
func (o KeyOrder) Keys(path string, m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range o[path] {
		if _, ok := m[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	rest := make([]string, 0, len(m)-len(keys))
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Sub returns the order of the value stored under key, re-rooted at ""
func (o KeyOrder) Sub(key string) KeyOrder {
	if len(o) == 0 {
		return nil
	}
	sub := KeyOrder{}
	for path, keys := range o {
		switch {
		case path == key:
			sub[""] = keys
		case strings.HasPrefix(path, key+"."):
			sub[strings.TrimPrefix(path, key+".")] = keys
		case strings.HasPrefix(path, key+"["):
			sub[strings.TrimPrefix(path, key)] = keys
		}
	}
	return sub
}

// JoinPath appends a mapping key to path
func JoinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// IndexPath appends a sequence index to path
func IndexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
