package errors

import (
	"fmt"
	"strings"
)

// snippetLimit bounds the configuration excerpt carried by a StageError.
const snippetLimit = 200

// StageError is returned by the executor when a processor or output fails.
// It names the failing stage and keeps the underlying error reachable.
type StageError struct {
	Kind   string
	Index  int
	Type   string
	Config string
	Inner  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s[%d] %s: %v", e.Kind, e.Index, e.Type, e.Inner)
}

func (e *StageError) Unwrap() error {
	return e.Inner
}

// NewStageError creates a stage error, trimming the configuration excerpt.
func NewStageError(kind string, index int, stageType, config string, inner error) *StageError {
	return &StageError{
		Kind:   kind,
		Index:  index,
		Type:   stageType,
		Config: Snippet(config),
		Inner:  inner,
	}
}

// Snippet shortens s to a single-line excerpt suitable for logs.
func Snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > snippetLimit {
		return s[:snippetLimit] + "..."
	}
	return s
}

// UnknownStageTypeError indicates a configuration references a stage type
// that is not registered.
type UnknownStageTypeError struct {
	Kind  string
	Index int
	Type  string
}

func (e *UnknownStageTypeError) Error() string {
	return fmt.Sprintf("%s[%d]: unknown %s type %q", e.Kind, e.Index, e.Kind[:len(e.Kind)-1], e.Type)
}

// NewUnknownStageTypeError creates a new unknown stage type error
func NewUnknownStageTypeError(kind string, index int, stageType string) *UnknownStageTypeError {
	return &UnknownStageTypeError{Kind: kind, Index: index, Type: stageType}
}

// InvalidPipelineError indicates a structurally invalid pipeline definition.
type InvalidPipelineError struct {
	Message string
}

func (e *InvalidPipelineError) Error() string {
	return fmt.Sprintf("invalid pipeline: %s", e.Message)
}

// NewInvalidPipelineError creates a new invalid pipeline error
func NewInvalidPipelineError(format string, args ...interface{}) *InvalidPipelineError {
	return &InvalidPipelineError{Message: fmt.Sprintf(format, args...)}
}
