package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "message only",
			err:  ConfigError("configuration is invalid"),
			want: "config: configuration is invalid",
		},
		{
			name: "with cause",
			err:  ConnectionError("smtp connection failed", errors.New("network timeout")),
			want: "connection: smtp connection failed: cause=network timeout",
		},
		{
			name: "context is sorted",
			err:  ExpansionError("vertexgenai", "{{ .missing }}", nil),
			want: "expansion: failed to expand template: context={expression={{ .missing }}, stage=vertexgenai}",
		},
		{
			name: "downstream status",
			err:  DownstreamError("prediction failed", 502, nil),
			want: "downstream: prediction failed: context={status=502}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestConstructors(t *testing.T) {
	notConfigured := NotConfiguredError("request")
	assert.Equal(t, ErrTypeNotConfigured, notConfigured.Type)
	assert.Equal(t, "no request specified", notConfigured.Message)
	assert.Equal(t, "request", notConfigured.Context["key"])

	cause := errors.New(`map has no entry for key "later"`)
	expansion := ExpansionError("processors[0] setvariable", "{{ .later }}", cause)
	assert.Equal(t, "processors[0] setvariable", expansion.Context["stage"])
	assert.ErrorIs(t, expansion, cause)

	scheme := InvalidSchemeError("read_gcs_object", "https://x/y", "https")
	assert.Equal(t, ErrTypeInvalidScheme, scheme.Type)
	assert.Equal(t, "https", scheme.Context["scheme"])

	assert.Equal(t, "failed to download object missing from bucket bucket", ObjectNotFoundError("bucket", "missing").Message)
	assert.Equal(t, "event file x not found", NotFoundError("event file x").Message)
}

func TestWithContextReturnsSameError(t *testing.T) {
	err := ValidationError("validation failed")
	assert.Same(t, err, err.WithContext("field", "to"))
	err.WithContext("value", "invalid")
	assert.Len(t, err.Context, 2)
}

func TestIsType(t *testing.T) {
	nested := ExpansionError("stage", "{{ read_gcs_object .u }}",
		fmt.Errorf("template: x: %w", InvalidSchemeError("read_gcs_object", "https://x", "https")))

	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"matching type", ConfigError("test"), ErrTypeConfig, true},
		{"other type", ConfigError("test"), ErrTypeNotConfigured, false},
		{"wrapped with fmt", fmt.Errorf("stage failed: %w", NotConfiguredError("to")), ErrTypeNotConfigured, true},
		{"outer type of nested chain", nested, ErrTypeExpansion, true},
		{"inner type of nested chain", nested, ErrTypeInvalidScheme, true},
		{"plain error", errors.New("regular error"), ErrTypeConfig, false},
		{"nil", nil, ErrTypeConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeConfig, GetType(ConfigError("test")))
	assert.Equal(t, ErrTypeDownstream, GetType(fmt.Errorf("outer: %w", DownstreamError("bad gateway", 502, nil))))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("regular error")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not configured", NotConfiguredError("to"), true},
		{"wrapped expansion", fmt.Errorf("wrapped: %w", ExpansionError("s", "{{", errors.New("unclosed action"))), true},
		{"validation", ValidationError("bad json"), true},
		{"config", ConfigError("unknown stage"), true},
		{"invalid scheme under internal", InternalError("filter failed", InvalidSchemeError("f", "u", "s")), true},
		{"downstream", DownstreamError("unavailable", 503, nil), false},
		{"connection", ConnectionError("dial", errors.New("refused")), false},
		{"object not found", ObjectNotFoundError("b", "o"), false},
		{"plain", errors.New("io timeout"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}

func TestErrorChaining(t *testing.T) {
	original := errors.New("original error")
	wrapped := InternalError("wrapped error", original)

	assert.ErrorIs(t, wrapped, original)
	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, ErrTypeInternal, appErr.Type)
	assert.Nil(t, ConfigError("no cause").Unwrap())
}
