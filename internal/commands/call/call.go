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

// Package call implements the call command, which invokes one catalog
// operation against the configured server and prints the result.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/airflow/normalize"
	"github.com/tombee/flowgate/internal/cli"
	"github.com/tombee/flowgate/internal/commands/completion"
	"github.com/tombee/flowgate/internal/commands/shared"
	"github.com/tombee/flowgate/internal/jq"
)

type options struct {
	args     []string
	argsJSON string
	jq       string
	output   string
	raw      bool
	yes      bool
}

// NewCommand creates the call command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "call <operation>",
		Short: "Invoke one operation and print its result",
		Long: `Invoke one catalog operation, the same way an MCP client would call the
tool of that name. Run 'flowgate tools' for the list of operations.

Arguments are passed as --arg key=value (repeatable) or as a JSON object with
--args. Values given with --arg are strings; numbers, booleans, lists
(comma-separated) and objects (JSON) are converted where the operation
expects them.

Exit codes: 0 ok, 2 bad input, 3 configuration error, 4 detection or
authentication failed, 5 the server returned an error.`,
		Example: `  flowgate call list_dags --arg limit=10
  flowgate call get_dag_run --arg dag_id=etl --arg dag_run_id=manual__2025-01-01
  flowgate call trigger_dag_run --args '{"dag_id":"etl","conf":{"full":true}}'
  flowgate call list_dags --jq '.dags[].dag_id' -r`,
		Args:              cobra.ExactArgs(1),
		Annotations:       map[string]string{cli.AnnotationOperations: "true"},
		ValidArgsFunction: completion.CompleteOperationNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.args, "arg", "a", nil, "Operation argument as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.argsJSON, "args", "", "Operation arguments as a JSON object")
	cmd.Flags().StringVar(&opts.jq, "jq", "", "Filter the result with a jq expression")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "Output format: json or yaml")
	cmd.Flags().BoolVarP(&opts.raw, "raw-output", "r", false, "Print string results of --jq without quotes")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Confirm destructive operations")

	_ = cmd.RegisterFlagCompletionFunc("arg", completion.CompleteArgs)
	_ = cmd.RegisterFlagCompletionFunc("output", completion.CompleteOutputFormats)

	return cmd
}

func runCall(cmd *cobra.Command, name string, opts options) error {
	op, ok := api.Lookup(name)
	if !ok {
		return shared.NewInvalidInputError(fmt.Sprintf("unknown operation %q", name),
			fmt.Errorf("run 'flowgate tools' for the list"))
	}

	args, err := parseArgs(opts.args, opts.argsJSON)
	if err != nil {
		return err
	}

	executor := jq.NewExecutor(0, 0)
	var query *jq.Query
	if opts.jq != "" {
		if query, err = executor.Compile(opts.jq); err != nil {
			return shared.NewInvalidInputError("invalid --jq expression", err)
		}
	}
	if opts.output != "json" && opts.output != "yaml" {
		return shared.NewInvalidInputError(fmt.Sprintf("unknown output format %q (json, yaml)", opts.output), nil)
	}

	rt, err := shared.NewRuntime(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if rt.Config.Server.ReadOnly && !op.ReadOnly() {
		return shared.NewInvalidInputError(fmt.Sprintf("%s changes server state and read-only mode is on", op.Name), nil)
	}
	if op.HasTag("destructive") && !opts.yes {
		return shared.NewInvalidInputError(fmt.Sprintf("%s is destructive; pass --yes to confirm", op.Name), nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	adapter, err := rt.Factory.Create(ctx, rt.Target)
	if err != nil {
		return err
	}

	result, err := op.Invoke(ctx, adapter, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if query != nil {
		err = printJQ(ctx, out, executor, query, result, opts)
	} else {
		err = printValue(out, result, opts.output)
	}
	if err != nil {
		return err
	}

	if normalize.IsError(result) {
		return shared.NewOperationError(fmt.Sprintf("%s failed", op.Name), fmt.Errorf("%v", result["error"]))
	}
	return nil
}

// parseArgs merges --args JSON with --arg pairs; pairs win.
func parseArgs(pairs []string, argsJSON string) (api.Args, error) {
	args := api.Args{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, shared.NewInvalidInputError("--args must be a JSON object", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("invalid --arg %q, expected key=value", pair), nil)
		}
		args[strings.TrimSpace(key)] = value
	}
	return args, nil
}

func printJQ(ctx context.Context, out io.Writer, executor *jq.Executor, query *jq.Query, result api.Result, opts options) error {
	values, err := executor.Execute(ctx, query, result)
	if err != nil {
		return shared.NewInvalidInputError("--jq evaluation failed", err)
	}
	for _, v := range values {
		if s, isString := v.(string); isString && opts.raw {
			fmt.Fprintln(out, s)
			continue
		}
		if err := printValue(out, v, opts.output); err != nil {
			return err
		}
	}
	return nil
}

func printValue(out io.Writer, v any, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	}
	return shared.EmitJSON(out, v)
}
