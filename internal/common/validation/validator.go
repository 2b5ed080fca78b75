// Package validation collects configuration errors: an accumulating
// Validator for hand-written checks and struct-tag validation backed by
// go-playground/validator.
package validation

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"pubsub2inbox/internal/common/errors"
)

// Validator accumulates messages; Error folds them into one validation error
type Validator struct {
	prefix   string
	messages []string
}

func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithPrefix starts every message with "prefix: "
func NewValidatorWithPrefix(prefix string) *Validator {
	return &Validator{prefix: prefix}
}

func (v *Validator) failf(format string, args ...interface{}) *Validator {
	msg := fmt.Sprintf(format, args...)
	if v.prefix != "" {
		msg = v.prefix + ": " + msg
	}
	v.messages = append(v.messages, msg)
	return v
}

// RequireString fails on a blank value
func (v *Validator) RequireString(value, name string) *Validator {
	if strings.TrimSpace(value) == "" {
		return v.failf("%s is required", name)
	}
	return v
}

// RequireStrings fails unless at least one entry is non-blank
func (v *Validator) RequireStrings(values []string, name string) *Validator {
	if slices.ContainsFunc(values, func(s string) bool { return strings.TrimSpace(s) != "" }) {
		return v
	}
	return v.failf("%s requires at least one value", name)
}

// RequireRange fails unless min <= value <= max
func (v *Validator) RequireRange(value, min, max int, name string) *Validator {
	if value < min || value > max {
		return v.failf("%s must be between %d and %d", name, min, max)
	}
	return v
}

// RequireURL fails unless value is an absolute URL, using one of schemes
// when any are given
func (v *Validator) RequireURL(value, name string, schemes ...string) *Validator {
	if value == "" {
		return v.failf("%s is required", name)
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		return v.failf("%s must be a valid URL: %v", name, err)
	case u.Scheme == "" || u.Host == "":
		return v.failf("%s must be a complete URL with scheme and host", name)
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		return v.failf("%s must use one of the schemes: %s", name, strings.Join(schemes, ", "))
	}
	return v
}

func (v *Validator) RequireOneOf(value string, allowed []string, name string) *Validator {
	if value == "" {
		return v.failf("%s is required", name)
	}
	if !slices.Contains(allowed, value) {
		return v.failf("%s must be one of: %s", name, strings.Join(allowed, ", "))
	}
	return v
}

// Validate records the error returned by fn, if any
func (v *Validator) Validate(fn func() error) *Validator {
	if err := fn(); err != nil {
		return v.failf("%s", err.Error())
	}
	return v
}

func (v *Validator) ValidateIf(condition bool, fn func() error) *Validator {
	if !condition {
		return v
	}
	return v.Validate(fn)
}

// Merge appends the messages of other as they are
func (v *Validator) Merge(other *Validator) *Validator {
	if other != nil {
		v.messages = append(v.messages, other.messages...)
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.messages) > 0
}

func (v *Validator) Messages() []string {
	return slices.Clone(v.messages)
}

// Error returns nil, the single message, or every message joined by "; "
func (v *Validator) Error() error {
	switch len(v.messages) {
	case 0:
		return nil
	case 1:
		return errors.ValidationError(v.messages[0])
	default:
		return errors.ValidationError("validation failed: " + strings.Join(v.messages, "; "))
	}
}
