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

// Package tools implements the tools command, which lists the operation
// catalog served as MCP tools.
package tools

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/commands/completion"
	"github.com/tombee/flowgate/internal/commands/shared"
)

// Tool is the JSON shape of one catalog entry.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Tags        []string    `json:"tags"`
	ReadOnly    bool        `json:"read_only"`
	Params      []api.Param `json:"params"`
}

// ListResponse is the JSON output of the tools command.
type ListResponse struct {
	shared.JSONResponse
	Tools []Tool `json:"tools"`
}

// NewCommand creates the tools command
func NewCommand() *cobra.Command {
	var (
		category string
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "tools [operation]",
		Short: "List the operations exposed as MCP tools",
		Long: `List every operation flowgate exposes as an MCP tool, or show the
parameters of a single operation.`,
		Example: `  flowgate tools
  flowgate tools --category runs
  flowgate tools trigger_dag_run`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completion.CompleteOperationNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := selectOperations(args, category, readOnly)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				resp := ListResponse{JSONResponse: shared.NewJSONResponse("tools")}
				for _, op := range ops {
					resp.Tools = append(resp.Tools, toTool(op))
				}
				return shared.EmitJSON(out, resp)
			}
			if len(args) == 1 {
				renderDetail(out, ops[0])
				return nil
			}
			renderList(out, ops)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only show operations in this category")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Only show operations that change nothing on the server")

	_ = cmd.RegisterFlagCompletionFunc("category", completion.CompleteCategories)

	return cmd
}

func selectOperations(args []string, category string, readOnly bool) ([]api.Operation, error) {
	if len(args) == 1 {
		op, ok := api.Lookup(args[0])
		if !ok {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("unknown operation %q", args[0]), nil)
		}
		return []api.Operation{op}, nil
	}

	var ops []api.Operation
	for _, op := range api.Operations() {
		if category != "" && !strings.EqualFold(op.Category, category) {
			continue
		}
		if readOnly && !op.ReadOnly() {
			continue
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 && category != "" {
		return nil, shared.NewInvalidInputError(fmt.Sprintf("no operations in category %q", category), nil)
	}
	return ops, nil
}

func toTool(op api.Operation) Tool {
	return Tool{
		Name:        op.Name,
		Description: op.Description,
		Category:    op.Category,
		Tags:        op.Tags,
		ReadOnly:    op.ReadOnly(),
		Params:      op.Params,
	}
}

// renderList prints operations grouped by category in catalog order.
func renderList(w io.Writer, ops []api.Operation) {
	width := 0
	for _, op := range ops {
		width = max(width, len(op.Name))
	}

	current := ""
	for _, op := range ops {
		if op.Category != current {
			if current != "" {
				fmt.Fprintln(w)
			}
			current = op.Category
			fmt.Fprintln(w, shared.Header.Render(current))
		}
		line := fmt.Sprintf("  %-*s  %s", width, op.Name, op.Description)
		if !op.ReadOnly() {
			line += " " + shared.StatusWarn.Render("[write]")
		}
		fmt.Fprintln(w, line)
	}
}

func renderDetail(w io.Writer, op api.Operation) {
	fmt.Fprintln(w, shared.Bold.Render(op.Name)+" "+shared.RenderBadge(op.Category))
	fmt.Fprintln(w, op.Description)
	if op.HasTag("destructive") {
		fmt.Fprintln(w, shared.RenderWarn("destructive: 'flowgate call' requires --yes"))
	} else if !op.ReadOnly() {
		fmt.Fprintln(w, shared.RenderWarn("changes server state"))
	}
	if len(op.Params) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, shared.Header.Render("Parameters"))
	width := 0
	for _, p := range op.Params {
		width = max(width, len(p.Name))
	}
	for _, p := range op.Params {
		kind := p.Type
		if p.Required {
			kind += ", required"
		}
		fmt.Fprintln(w, shared.RenderField(p.Name, width+1, shared.Muted.Render("("+kind+")")+" "+p.Description))
	}
}
