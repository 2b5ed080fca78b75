package errors

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError(t *testing.T) {
	inner := stderrors.New("boom")
	err := NewStageError("outputs", 1, "mail", "to:\n  a@example.com\nsubject: hi", inner)

	assert.Equal(t, "outputs[1] mail: boom", err.Error())
	assert.Equal(t, "to: a@example.com subject: hi", err.Config)
	assert.True(t, stderrors.Is(err, inner))
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("x", snippetLimit+10)
	got := Snippet(long)
	assert.Len(t, got, snippetLimit+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestUnknownStageTypeError(t *testing.T) {
	err := NewUnknownStageTypeError("processors", 2, "nope")
	assert.Equal(t, `processors[2]: unknown processor type "nope"`, err.Error())

	err = NewUnknownStageTypeError("outputs", 0, "fax")
	assert.Equal(t, `outputs[0]: unknown output type "fax"`, err.Error())
}

func TestInvalidPipelineError(t *testing.T) {
	err := NewInvalidPipelineError("no outputs in %s", "pipeline.yaml")
	assert.Equal(t, "invalid pipeline: no outputs in pipeline.yaml", err.Error())
}
