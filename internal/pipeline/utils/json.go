package utils

import (
	"bytes"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"

	"pubsub2inbox/internal/common/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DecodeJSON decodes a single JSON document keeping integral numbers as int
func DecodeJSON(data []byte) (interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var v interface{}
	if err := decoder.Decode(&v); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("failed to decode JSON: %v", err))
	}
	if decoder.More() {
		return nil, errors.ValidationError("failed to decode JSON: trailing data after document")
	}
	return normalizeNumbers(v), nil
}

type jsonNumber interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

func normalizeNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	case jsonNumber:
		if n, err := val.Int64(); err == nil && n >= math.MinInt && n <= math.MaxInt {
			return int(n)
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}
