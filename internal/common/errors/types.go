// Package errors defines the typed errors shared by every pubsub2inbox
// package. The type of an error decides whether a failed event is retried:
// see IsPermanent.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType classifies an AppError
type ErrorType string

const (
	ErrTypeConnection     ErrorType = "connection"
	ErrTypeValidation     ErrorType = "validation"
	ErrTypeConfig         ErrorType = "config"
	ErrTypeNotFound       ErrorType = "not_found"
	ErrTypeInternal       ErrorType = "internal"
	ErrTypeNotConfigured  ErrorType = "not_configured"
	ErrTypeExpansion      ErrorType = "expansion"
	ErrTypeInvalidScheme  ErrorType = "invalid_scheme"
	ErrTypeObjectNotFound ErrorType = "object_not_found"
	ErrTypeDownstream     ErrorType = "downstream"
)

// permanent lists the types that fail the same way on every redelivery
var permanent = map[ErrorType]bool{
	ErrTypeNotConfigured: true,
	ErrTypeExpansion:     true,
	ErrTypeValidation:    true,
	ErrTypeInvalidScheme: true,
	ErrTypeConfig:        true,
}

// AppError is a typed error with an optional cause and sorted key/value
// context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func newError(t ErrorType, msg string, cause error) *AppError {
	return &AppError{Type: t, Message: msg, Cause: cause}
}

// Error renders "type: message[: cause=...][: context={k=v, ...}]"
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": cause=%v", e.Cause)
	}
	if len(e.Context) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString(": context={")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
	}
	b.WriteString("}")
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair and returns the same error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ConnectionError reports a failure to reach a broker, relay or API
func ConnectionError(msg string, cause error) *AppError {
	return newError(ErrTypeConnection, msg, cause)
}

// ValidationError reports input that can never be processed as is
func ValidationError(msg string) *AppError {
	return newError(ErrTypeValidation, msg, nil)
}

// ConfigError reports an unusable pipeline definition or process setting
func ConfigError(msg string) *AppError {
	return newError(ErrTypeConfig, msg, nil)
}

func NotFoundError(resource string) *AppError {
	return newError(ErrTypeNotFound, resource+" not found", nil)
}

func InternalError(msg string, cause error) *AppError {
	return newError(ErrTypeInternal, msg, cause)
}

// NotConfiguredError reports a configuration key that must be present.
// The key is kept in the context under "key".
func NotConfiguredError(key string) *AppError {
	return newError(ErrTypeNotConfigured, fmt.Sprintf("no %s specified", key), nil).
		WithContext("key", key)
}

// ExpansionError wraps a failure raised while evaluating a template
func ExpansionError(stage, expression string, cause error) *AppError {
	return newError(ErrTypeExpansion, "failed to expand template", cause).
		WithContext("stage", stage).
		WithContext("expression", expression)
}

// InvalidSchemeError reports a URL handed to fn with the wrong scheme
func InvalidSchemeError(fn, url, scheme string) *AppError {
	return newError(ErrTypeInvalidScheme, fmt.Sprintf("invalid scheme for %s(%s): %q", fn, url, scheme), nil).
		WithContext("scheme", scheme)
}

func ObjectNotFoundError(bucket, object string) *AppError {
	return newError(ErrTypeObjectNotFound, fmt.Sprintf("failed to download object %s from bucket %s", object, bucket), nil)
}

// DownstreamError reports a non-success answer from an external endpoint
func DownstreamError(msg string, status int, cause error) *AppError {
	return newError(ErrTypeDownstream, msg, cause).WithContext("status", status)
}

// IsType reports whether err, or any AppError it wraps, has type t
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	for err != nil && stderrors.As(err, &appErr) {
		if appErr.Type == t {
			return true
		}
		err, appErr = appErr.Cause, nil
	}
	return false
}

// GetType returns the type of the outermost AppError in the chain. Untyped
// errors are internal.
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}

// IsPermanent reports whether retrying err with the same input can never
// succeed
func IsPermanent(err error) bool {
	var appErr *AppError
	for err != nil && stderrors.As(err, &appErr) {
		if permanent[appErr.Type] {
			return true
		}
		err, appErr = appErr.Cause, nil
	}
	return false
}
