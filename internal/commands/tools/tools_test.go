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

package tools

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/commands/shared"
)

func runToolsCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)

	root := &cobra.Command{Use: "flowgate", SilenceErrors: true, SilenceUsage: true}
	_, _, jsonPtr, _ := shared.RegisterFlagPointers()
	root.PersistentFlags().BoolVar(jsonPtr, "json", false, "")
	root.AddCommand(NewCommand())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"tools"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestTools_ListAll(t *testing.T) {
	out, err := runToolsCommand(t)
	require.NoError(t, err)

	for _, op := range api.Operations() {
		assert.Contains(t, out, op.Name)
	}
	assert.Contains(t, out, "[write]")
}

func TestTools_JSONReadOnly(t *testing.T) {
	out, err := runToolsCommand(t, "--json", "--read-only")
	require.NoError(t, err)

	var resp ListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "tools", resp.Command)
	require.NotEmpty(t, resp.Tools)
	for _, tool := range resp.Tools {
		assert.True(t, tool.ReadOnly, tool.Name)
		assert.NotEqual(t, "pause_dag", tool.Name)
	}
}

func TestTools_Category(t *testing.T) {
	out, err := runToolsCommand(t, "--json", "--category", "dags")
	require.NoError(t, err)

	var resp ListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	for _, tool := range resp.Tools {
		assert.Equal(t, "dags", tool.Category)
	}

	_, err = runToolsCommand(t, "--category", "nope")
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestTools_Detail(t *testing.T) {
	out, err := runToolsCommand(t, "delete_variable")
	require.NoError(t, err)
	assert.Contains(t, out, "delete_variable")
	assert.Contains(t, out, "--yes")
	assert.Contains(t, out, "key")
	assert.Contains(t, out, "required")

	_, err = runToolsCommand(t, "no_such_op")
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}
