package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const echoPipeline = `
processors:
  - type: setvariable
    output: greeting
    config:
      value: 'hello {{ .event.data }}'
outputs:
  - type: logger
    config:
      message: '{{ .greeting }}'
`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", filepath.Join(t.TempDir(), "test.log"))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", echoPipeline)

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 processors, 1 outputs")

	broken := writeFile(t, "broken.yaml", "outputs:\n  - type: logger\n    config:\n      message: '{{ .x | nope }}'\n")
	_, err = execute(t, "validate", "--config", broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestValidateCommandRequiresConfig(t *testing.T) {
	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG is required")
}

func TestRunCommand(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", echoPipeline)
	eventFile := writeFile(t, "event.json", `{"text":"world","messageId":"42","attributes":{"k":"v"}}`)

	out, err := execute(t, "run", "--config", path, "--event", eventFile)
	require.NoError(t, err)
	assert.Contains(t, out, "processors[0] setvariable")
	assert.Contains(t, out, "-> greeting")
	assert.Contains(t, out, "succeeded in")

	_, err = execute(t, "run", "--config", path)
	assert.Error(t, err)
}

func TestEnvFileFlag(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", echoPipeline)
	envFile := writeFile(t, "test.env", "CONFIG="+path+"\n")

	// godotenv never overrides a variable that is already set
	t.Setenv("CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	require.NoError(t, os.Unsetenv("CONFIG"))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", "--env-file", envFile})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)
}
