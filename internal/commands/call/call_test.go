// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package call

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowgate/internal/commands/shared"
	"github.com/tombee/flowgate/internal/testing/fakeairflow"
)

func runCallCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)

	root := &cobra.Command{Use: "flowgate", SilenceErrors: true, SilenceUsage: true}
	conn := shared.RegisterConnectionFlagPointers()
	root.PersistentFlags().StringVar(conn.URL, "url", "", "")
	root.AddCommand(NewCommand())

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"call"}, args...))

	err := root.Execute()
	return out.String(), err
}

func TestCall_ListDAGs(t *testing.T) {
	fakeairflow.IsolateEnv(t)
	fa := fakeairflow.New(t, "2.9.3")

	out, err := runCallCommand(t, "list_dags", "--url", fa.URL, "--arg", "limit=5")
	require.NoError(t, err)
	assert.Contains(t, out, `"dag_id": "etl"`)
	assert.Contains(t, out, `"total_entries": 2`)
}

func TestCall_RedactsConnections(t *testing.T) {
	fakeairflow.IsolateEnv(t)
	fa := fakeairflow.New(t, "2.9.3")

	out, err := runCallCommand(t, "list_connections", "--url", fa.URL)
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "sslmode")
	assert.Contains(t, out, `"***"`)
}

func TestCall_JQRawOutput(t *testing.T) {
	fakeairflow.IsolateEnv(t)
	fa := fakeairflow.New(t, "2.9.3")

	out, err := runCallCommand(t, "list_dags", "--url", fa.URL, "--jq", ".dags[].dag_id", "-r")
	require.NoError(t, err)
	assert.Equal(t, "etl\nreport\n", out)
}

func TestCall_YAMLOutput(t *testing.T) {
	fakeairflow.IsolateEnv(t)
	fa := fakeairflow.New(t, "2.9.3")

	out, err := runCallCommand(t, "list_dags", "--url", fa.URL, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "dag_id: etl")
	assert.Contains(t, out, "total_entries: 2")
}

func TestCall_ErrorResult(t *testing.T) {
	fakeairflow.IsolateEnv(t)
	fa := fakeairflow.New(t, "2.9.3")

	out, err := runCallCommand(t, "get_dag", "--url", fa.URL, "--arg", "dag_id=missing")
	require.Error(t, err)
	assert.Equal(t, shared.ExitOperationFailed, shared.ExitCode(err))
	assert.Contains(t, out, `"error"`)
}

func TestCall_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown operation", args: []string{"no_such_op"}},
		{name: "missing required argument", args: []string{"get_dag"}},
		{name: "malformed pair", args: []string{"list_dags", "--arg", "limit"}},
		{name: "malformed args object", args: []string{"list_dags", "--args", "[1,2]"}},
		{name: "bad jq", args: []string{"list_dags", "--jq", ".dags["}},
		{name: "bad output format", args: []string{"list_dags", "-o", "xml"}},
		{name: "destructive without confirmation", args: []string{"delete_variable", "--arg", "key=k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeairflow.IsolateEnv(t)
			fa := fakeairflow.New(t, "2.9.3")

			_, err := runCallCommand(t, append(tt.args, "--url", fa.URL)...)
			require.Error(t, err)
			assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
		})
	}
}

func TestCall_ReadOnlyRefusesWrites(t *testing.T) {
	fakeairflow.IsolateEnv(t)
	fa := fakeairflow.New(t, "2.9.3")
	t.Setenv("FLOWGATE_READ_ONLY", "true")

	_, err := runCallCommand(t, "pause_dag", "--url", fa.URL, "--arg", "dag_id=etl")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
	assert.NotContains(t, fa.Requests(), "PATCH /api/v1/dags/etl")
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"dag_id=etl", "conf={\"a\":1}"}, `{"dag_id":"other","limit":3}`)
	require.NoError(t, err)
	assert.Equal(t, "etl", args.String("dag_id"))
	assert.Equal(t, 3, args.Int("limit", 0))
	assert.Equal(t, map[string]any{"a": float64(1)}, args.Object("conf"))
}
