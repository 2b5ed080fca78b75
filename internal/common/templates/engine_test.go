package templates

import (
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pubsub2inbox/internal/common/errors"
)

func testData() map[string]interface{} {
	return map[string]interface{}{
		"name":  "World",
		"count": 3,
		"user": map[string]interface{}{
			"name":  "Ada",
			"roles": []interface{}{"admin", "ops"},
		},
		"empty": nil,
	}
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine(nil)
	require.NotNil(t, engine)
	assert.Equal(t, 1024*1024, engine.config.MaxTemplateSize)
	assert.True(t, engine.HasFunction("dict"))
	assert.False(t, engine.HasFunction(captureFunc))

	custom := NewEngine(nil, template.FuncMap{"shout": func(s string) string { return strings.ToUpper(s) + "!" }})
	assert.True(t, custom.HasFunction("shout"))
	assert.False(t, engine.HasFunction("shout"))
}

func TestIsTemplate(t *testing.T) {
	assert.True(t, IsTemplate("Hello {{ .name }}"))
	assert.True(t, IsTemplate("{{"))
	assert.False(t, IsTemplate("plain text"))
	assert.False(t, IsTemplate("{ not a template }"))
}

func TestRender(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"simple variable substitution", "Hello {{ .name }}!", "Hello World!"},
		{"nested data access", "User: {{ .user.name }}", "User: Ada"},
		{"single action is stringified", "{{ .count }}", "3"},
		{"string functions", "{{ upper .name }}-{{ lower .name }}", "WORLD-world"},
		{"pipe convention", `{{ .name | replace "o" "0" }}`, "W0rld"},
		{"join list", `{{ .user.roles | join ", " }}`, "admin, ops"},
		{"default for nil", `{{ .empty | default "none" }}`, "none"},
		{"conditional", `{{ if gt .count 2 }}many{{ else }}few{{ end }}`, "many"},
		{"range", `{{ range .user.roles }}[{{ . }}]{{ end }}`, "[admin][ops]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Render(tt.template, testData())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestEvaluate_NativeTypes(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name     string
		template string
		expected interface{}
	}{
		{"list", "{{ .user.roles }}", []interface{}{"admin", "ops"}},
		{"map", "{{ .user }}", testData()["user"]},
		{"int", "{{ .count }}", 3},
		{"nil", "{{ .empty }}", nil},
		{"bool from function", "{{ gt .count 1 }}", true},
		{"pipeline", `{{ .name | hasPrefix "W" }}`, true},
		{"trim markers", "{{- .count -}}", 3},
		{"constructed dict", `{{ dict "a" 1 "b" .name }}`, map[string]interface{}{"a": 1, "b": "World"}},
		{"interpolated text", "count={{ .count }}", "count=3"},
		{"two actions", "{{ .count }}{{ .count }}", "33"},
		{"variable declaration", "{{ $x := .count }}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Evaluate(tt.template, testData())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestIsSingleAction(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		template string
		expected bool
	}{
		{"{{ .a }}", true},
		{"{{ .a | upper }}", true},
		{" {{ .a }}", false},
		{"{{ .a }} ", false},
		{"{{ .a }}{{ .b }}", false},
		{"{{ if .a }}x{{ end }}", false},
		{"{{ $v := .a }}", false},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			got, err := engine.IsSingleAction(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMissingKeyFails(t *testing.T) {
	engine := NewEngine(nil)

	_, err := engine.Render("Hello {{ .missing }}", testData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	for _, src := range []string{"{{ .missing }}", "{{ .missing.output }}", "{{ .user.missing }}"} {
		v, err := engine.Evaluate(src, testData())
		require.Error(t, err, src)
		assert.Contains(t, err.Error(), "map has no entry for key")
		assert.Nil(t, v)
	}

	// the second evaluation is served from the cache
	_, err = engine.Evaluate("{{ .missing }}", testData())
	require.Error(t, err)
}

func TestParseError(t *testing.T) {
	engine := NewEngine(nil)

	_, err := engine.Render("Hello {{ .name", testData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation failed")

	_, err = engine.Render("{{ nosuchfunc .name }}", testData())
	require.Error(t, err)
}

func TestFunctionErrorIsWrapped(t *testing.T) {
	sentinel := errors.InvalidSchemeError("read_object", "https://x", "https")
	engine := NewEngine(nil, template.FuncMap{
		"fail": func(s string) (string, error) { return "", sentinel },
	})

	_, err := engine.Evaluate(`{{ fail "x" }}`, testData())
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, errors.ErrTypeInvalidScheme, appErr.Type)
}

func TestTemplateSizeLimit(t *testing.T) {
	engine := NewEngine(&EngineConfig{MaxTemplateSize: 10})

	err := engine.CompileTemplate("{{ .name }} is far too long")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestCache(t *testing.T) {
	engine := NewEngine(nil)

	require.NoError(t, engine.CompileTemplate("{{ .a }}"))
	require.NoError(t, engine.CompileTemplate("{{ .a }}"))
	require.NoError(t, engine.CompileTemplate("{{ .b }}"))
	assert.Equal(t, 2, engine.CachedTemplates())

	// results are not cached, only parse trees
	out, err := engine.Evaluate("{{ .a }}", map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out)
	out, err = engine.Evaluate("{{ .a }}", map[string]interface{}{"a": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, out)

	engine.ClearCache()
	assert.Equal(t, 0, engine.CachedTemplates())
}

func TestConcurrentEvaluate(t *testing.T) {
	engine := NewEngine(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := engine.Evaluate("{{ .n }}", map[string]interface{}{"n": n})
			assert.NoError(t, err)
			assert.Equal(t, n, out)
		}(i)
	}
	wg.Wait()
}

func TestBaseFunctions(t *testing.T) {
	engine := NewEngine(nil)

	out, err := engine.Evaluate(`{{ split "," "a,b,c" }}`, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, out)

	out, err = engine.Evaluate(`{{ list 1 "two" }}`, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, "two"}, out)

	out, err = engine.Evaluate(`{{ keys .user }}`, testData())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"name", "roles"}, out)

	out, err = engine.Evaluate(`{{ hasKey "name" .user }}`, testData())
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = engine.Evaluate(`{{ merge (dict "a" 1) (dict "a" 2 "b" 3) }}`, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": 2, "b": 3}, out)

	_, err = engine.Evaluate(`{{ dict "a" }}`, nil)
	assert.Error(t, err)

	out, err = engine.Evaluate(`{{ toString .count }}`, testData())
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}
