package core

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub2inbox/internal/common/errors"
	"pubsub2inbox/internal/event"
)

func newTestStageContext(t *testing.T, config map[string]interface{}, values map[string]interface{}) *StageContext {
	t.Helper()
	env := testEnvironment(t, &PipelineDefinition{}, &event.Event{})
	ns := NewNamespace()
	require.NoError(t, ns.Merge(values))
	return NewStageContext(env, KindProcessor, 0, StageDefinition{Type: "test", Output: "out", Config: config}, ns)
}

func TestStageContextRequire(t *testing.T) {
	sc := newTestStageContext(t, map[string]interface{}{"location": "eu"}, nil)

	assert.NoError(t, sc.Require("location"))

	err := sc.Require("location", "modelId", "request")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotConfigured))

	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, "modelId", appErr.Context["key"])
	assert.Equal(t, "processors[0] test", appErr.Context["stage"])
}

func TestStageContextConfigIsACopy(t *testing.T) {
	config := map[string]interface{}{"nested": map[string]interface{}{"a": 1}}
	sc := newTestStageContext(t, config, nil)

	sc.Config["nested"].(map[string]interface{})["a"] = 2
	assert.Equal(t, 1, config["nested"].(map[string]interface{})["a"])
}

func TestStageContextExpandString(t *testing.T) {
	sc := newTestStageContext(t, map[string]interface{}{
		"subject": "Report for {{ .team }}",
		"broken":  "{{ .missing }}",
	}, map[string]interface{}{"team": "ops"})

	s, err := sc.ExpandString("subject")
	require.NoError(t, err)
	assert.Equal(t, "Report for ops", s)

	s, err = sc.ExpandString("absent")
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = sc.ExpandStringDefault("absent", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", s)

	_, err = sc.ExpandString("broken")
	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, errors.ErrTypeExpansion, appErr.Type)
	assert.Equal(t, "broken", appErr.Context["key"])
	assert.Equal(t, "processors[0] test", appErr.Context["stage"])
}

func TestStageContextExpandValueDoesNotAlias(t *testing.T) {
	values := map[string]interface{}{
		"payload": map[string]interface{}{"items": []interface{}{1, 2}},
	}
	sc := newTestStageContext(t, map[string]interface{}{"request": "{{ .payload }}"}, values)

	v, err := sc.ExpandValue("request")
	require.NoError(t, err)

	m := v.(map[string]interface{})
	m["items"] = append(m["items"].([]interface{}), 3)
	m["extra"] = true

	assert.Equal(t, map[string]interface{}{"items": []interface{}{1, 2}}, values["payload"])
}

func TestStageContextExpandValueFollowsDeclaredOrder(t *testing.T) {
	def, err := LoadPipeline([]byte(`
processors:
  - type: setvariable
    config:
      value:
        zeta: '{{ .nope_zeta }}'
        alpha: '{{ .nope_alpha }}'
outputs:
  - type: logger
`), nil)
	require.NoError(t, err)

	env := testEnvironment(t, def, &event.Event{})
	sc := NewStageContext(env, KindProcessor, 0, def.Processors[0], NewNamespace())

	_, err = sc.ExpandValue("value")
	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, "zeta", appErr.Context["path"])
	assert.Equal(t, "value", appErr.Context["key"])
}

func TestStageContextExpandBool(t *testing.T) {
	sc := newTestStageContext(t, map[string]interface{}{
		"yes":   true,
		"text":  "false",
		"tmpl":  "{{ .flag }}",
		"bad":   "maybe",
		"other": []interface{}{},
	}, map[string]interface{}{"flag": true})

	tests := []struct {
		key     string
		want    bool
		wantErr bool
	}{
		{"yes", true, false},
		{"text", false, false},
		{"tmpl", true, false},
		{"absent", true, false},
		{"bad", false, true},
		{"other", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := sc.ExpandBool(tt.key, true)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStageContextExpandStringList(t *testing.T) {
	sc := newTestStageContext(t, map[string]interface{}{
		"csv":  "a@example.com, b@example.com,",
		"list": []interface{}{"{{ .first }}", "c@example.com"},
	}, map[string]interface{}{"first": "x@example.com"})

	got, err := sc.ExpandStringList("csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got)

	got, err = sc.ExpandStringList("list")
	require.NoError(t, err)
	assert.Equal(t, []string{"x@example.com", "c@example.com"}, got)

	got, err = sc.ExpandStringList("absent")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStageContextExpandStringMap(t *testing.T) {
	sc := newTestStageContext(t, map[string]interface{}{
		"headers": map[string]interface{}{"X-Count": 3, "X-Team": "{{ .team }}"},
		"bad":     "scalar",
	}, map[string]interface{}{"team": "ops"})

	got, err := sc.ExpandStringMap("headers")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Count": "3", "X-Team": "ops"}, got)

	got, err = sc.ExpandStringMap("absent")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = sc.ExpandStringMap("bad")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestStageContextDecode(t *testing.T) {
	type attachment struct {
		Filename string `config:"filename"`
		Size     int    `config:"size"`
	}
	type settings struct {
		Timeout     time.Duration `config:"timeout"`
		Attachments []attachment  `config:"attachments"`
	}

	sc := newTestStageContext(t, map[string]interface{}{
		"settings": map[string]interface{}{
			"timeout": "5s",
			"attachments": []interface{}{
				map[string]interface{}{"filename": "{{ .name }}", "size": "12"},
			},
		},
		"bad": map[string]interface{}{"timeout": "soon"},
	}, map[string]interface{}{"name": "report.csv"})

	var s settings
	require.NoError(t, sc.Decode("settings", &s))
	assert.Equal(t, 5*time.Second, s.Timeout)
	require.Len(t, s.Attachments, 1)
	assert.Equal(t, attachment{Filename: "report.csv", Size: 12}, s.Attachments[0])

	var bad settings
	assert.True(t, errors.IsType(sc.Decode("bad", &bad), errors.ErrTypeValidation))
}

func TestStageContextWithoutExpander(t *testing.T) {
	sc := &StageContext{Config: map[string]interface{}{"a": "{{ .x }}"}}
	_, err := sc.ExpandString("a")
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}
