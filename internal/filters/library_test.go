package filters

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/common/templates"
	"pubsub2inbox/internal/gcs"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger(t *testing.T) logging.Logger {
	t.Helper()
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: io.Discard})
	require.NoError(t, err)
	return logger
}

func newTestLibrary(t *testing.T) (*Library, *gcs.MemoryOpener) {
	t.Helper()
	objects := gcs.NewMemoryOpener()
	return NewLibrary(objects, testLogger(t), WithClock(func() time.Time { return fixedNow })), objects
}

// render evaluates a template through the engine the way pipeline stages do
func render(t *testing.T, lib *Library, src string, data map[string]interface{}) (interface{}, error) {
	t.Helper()
	engine := templates.NewEngine(nil, lib.FuncMap())
	return engine.Evaluate(src, data)
}

func TestFuncMapRegistersAllFunctions(t *testing.T) {
	lib, _ := newTestLibrary(t)
	funcs := lib.FuncMap()

	for _, name := range []string{
		"trim", "ltrim", "rtrim", "remove_mrkdwn", "urlencode", "re_escape", "add_links",
		"parse_string", "strip_html", "markdown", "make_list", "json_encode", "json_decode",
		"yaml_encode", "yaml_decode", "csv_encode", "jmespath", "html_table_to_xlsx",
		"b64decode", "b64encode", "read_file", "read_file_b64", "filemagic", "hash_string",
		"parse_url", "read_gcs_object", "read_gcs_object_range", "generate_signed_url", "uuid",
	} {
		assert.Contains(t, funcs, name)
	}
}

func TestFunctionsComposeWithPipes(t *testing.T) {
	lib, _ := newTestLibrary(t)

	data := map[string]interface{}{
		"payload": b64encode(`{"user": {"name": "  Ada  "}, "ids": [1, 2]}`),
	}

	out, err := render(t, lib, `{{ (.payload | b64decode | json_decode).user.name | trim }}`, data)
	require.NoError(t, err)
	assert.Equal(t, "Ada", out)

	out, err = render(t, lib, `{{ (.payload | b64decode | json_decode).ids }}`, data)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2}, out)

	out, err = render(t, lib, `{{ "hello" | hash_string "sha256" }}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", out)
}

func TestNewLibraryDefaults(t *testing.T) {
	lib := NewLibrary(nil, nil)
	require.NotNil(t, lib.logger)
	assert.WithinDuration(t, time.Now(), lib.now(), time.Minute)
}
