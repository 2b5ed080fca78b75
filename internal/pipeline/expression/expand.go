// Package expression expands template expressions embedded at any depth of a
// stage configuration tree.
package expression

import (
	"fmt"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/common/templates"
)

// Mode selects how a string holding exactly one template action is expanded
type Mode int

const (
	// Interpolate renders every template-bearing string to a string
	Interpolate Mode = iota
	// Structural lets a string made of a single action keep the native type
	// of the action's value
	Structural
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case Interpolate:
		return "interpolate"
	case Structural:
		return "structural"
	default:
		return "unknown"
	}
}

// Evaluator executes a single template string
type Evaluator interface {
	Render(src string, data interface{}) (string, error)
	Evaluate(src string, data interface{}) (interface{}, error)
}

// Expander walks nested configuration values and resolves their templates
type Expander struct {
	engine Evaluator
}

// NewExpander creates an expander backed by engine
func NewExpander(engine Evaluator) *Expander {
	return &Expander{engine: engine}
}

// Expand returns a copy of value with every template resolved against data.
// Sequences keep their length and order, mapping keys are taken literally and
// non-string scalars pass through. The input value and data are not modified.
func (x *Expander) Expand(stage string, value interface{}, data map[string]interface{}, mode Mode) (interface{}, error) {
	return x.expand(stage, "", value, data, mode, nil)
}

// ExpandOrdered is Expand with mapping values evaluated in the declaration
// order recorded in order
func (x *Expander) ExpandOrdered(stage string, value interface{}, data map[string]interface{}, mode Mode, order KeyOrder) (interface{}, error) {
	return x.expand(stage, "", value, data, mode, order)
}

// ExpandString expands value in interpolation mode and requires a string result
func (x *Expander) ExpandString(stage string, value interface{}, data map[string]interface{}) (string, error) {
	expanded, err := x.expand(stage, "", value, data, Interpolate, nil)
	if err != nil {
		return "", err
	}
	switch v := expanded.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func (x *Expander) expand(stage, path string, value interface{}, data map[string]interface{}, mode Mode, order KeyOrder) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return x.expandString(stage, path, v, data, mode)

	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for _, key := range order.Keys(path, v) {
			expanded, err := x.expand(stage, JoinPath(path, key), v[key], data, mode, order)
			if err != nil {
				return nil, err
			}
			result[key] = expanded
		}
		return result, nil

	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			expanded, err := x.expand(stage, IndexPath(path, i), item, data, mode, order)
			if err != nil {
				return nil, err
			}
			result[i] = expanded
		}
		return result, nil

	case []map[string]interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			expanded, err := x.expand(stage, IndexPath(path, i), item, data, mode, order)
			if err != nil {
				return nil, err
			}
			result[i] = expanded
		}
		return result, nil

	case []string:
		result := make([]interface{}, len(v))
		for i, item := range v {
			expanded, err := x.expandString(stage, IndexPath(path, i), item, data, mode)
			if err != nil {
				return nil, err
			}
			result[i] = expanded
		}
		return result, nil

	default:
		return value, nil
	}
}

func (x *Expander) expandString(stage, path, s string, data map[string]interface{}, mode Mode) (interface{}, error) {
	if !templates.IsTemplate(s) {
		return s, nil
	}

	var (
		result interface{}
		err    error
	)
	if mode == Structural {
		result, err = x.engine.Evaluate(s, data)
	} else {
		result, err = x.engine.Render(s, data)
	}
	if err != nil {
		expErr := errors.ExpansionError(stage, s, err)
		if path != "" {
			expErr.WithContext("path", path)
		}
		return nil, expErr
	}
	return result, nil
}
