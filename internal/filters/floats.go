package filters

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// floatValue encodes a float so that it always carries a fraction or an
// exponent; json_decode and yaml_decode turn bare integers into int.
type floatValue float64

func (f floatValue) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("unsupported value: %s", strconv.FormatFloat(v, 'g', -1, 64))
	}
	return []byte(formatFloat(v)), nil
}

func (f floatValue) MarshalYAML() (interface{}, error) {
	v := float64(f)
	var text string
	switch {
	case math.IsNaN(v):
		text = ".nan"
	case math.IsInf(v, 1):
		text = ".inf"
	case math.IsInf(v, -1):
		text = "-.inf"
	default:
		text = formatFloat(v)
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: text}, nil
}

// formatFloat follows encoding/json's choice between plain and exponent
// notation and appends ".0" to integral values
func formatFloat(v float64) string {
	format := byte('f')
	if abs := math.Abs(v); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	text := strconv.FormatFloat(v, format, -1, 64)
	if !strings.ContainsAny(text, ".e") {
		text += ".0"
	}
	return text
}

// markFloats returns a copy of v with every float wrapped in floatValue
func markFloats(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		return floatValue(val)
	case float32:
		return floatValue(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = markFloats(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = markFloats(item)
		}
		return out
	case []float64:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = floatValue(item)
		}
		return out
	default:
		return v
	}
}
