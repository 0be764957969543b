package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const yamlFlow = `
nodes:
  - id: "1"
    type: webhook
  - id: "2"
    type: code
    data:
      code: "({result: input.value * 2})"
edges:
  - source: "1"
    target: "2"
`

const jsonFlow = `{
  "nodes": [
    {"id": "1", "type": "manual"},
    {"id": "2", "type": "code", "data": {"code": "throw new Error('boom')"}}
  ],
  "edges": [{"source": "1", "target": "2"}]
}`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestRunCommand_YAMLFlow(t *testing.T) {
	config := writeFile(t, "flowengine.yaml", "log:\n  level: error\n")
	flow := writeFile(t, "flow.yaml", yamlFlow)

	out, err := execute(t, "run", "-c", config, "-f", flow, "--input", `{"value": 5}`, "--flow-id", "doubling")
	require.NoError(t, err)

	var run domain.ExecutionRun
	require.NoError(t, json.Unmarshal([]byte(out), &run))

	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, "doubling", run.FlowID)
	assert.Equal(t, map[string]any{"result": float64(10)}, run.Result)
}

func TestRunCommand_FailedRunReturnsError(t *testing.T) {
	config := writeFile(t, "flowengine.yaml", "log:\n  level: error\n")
	flow := writeFile(t, "flow.json", jsonFlow)

	out, err := execute(t, "run", "-c", config, "-f", flow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")

	var run domain.ExecutionRun
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "boom")
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		invalid bool
	}{
		{name: "yaml", file: "flow.yaml", content: yamlFlow},
		{name: "json", file: "flow.json", content: jsonFlow},
		{name: "duplicate ids", file: "flow.json", content: `{"nodes":[{"id":"a","type":"code"},{"id":"a","type":"code"}],"edges":[]}`, invalid: true},
		{name: "missing nodes", file: "flow.json", content: `{"edges":[]}`, invalid: true},
		{name: "broken yaml", file: "flow.yml", content: "nodes: [", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "validate", writeFile(t, tt.file, tt.content))

			if tt.invalid {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidFlow), err.Error())
				return
			}

			require.NoError(t, err)
			assert.Contains(t, out, "2 nodes, 1 edges, ok")
		})
	}
}

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"value": 5}`, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": float64(5)}, input)

	input, err = parseInput("plain text", "")
	require.NoError(t, err)
	assert.Equal(t, "plain text", input)

	input, err = parseInput("", "")
	require.NoError(t, err)
	assert.Nil(t, input)

	input, err = parseInput("", writeFile(t, "seed.json", `[1, 2]`))
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, input)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "flowengine")
}
