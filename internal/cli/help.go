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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/commands/shared"
)

// CommandMetadata describes a command for JSON help output.
type CommandMetadata struct {
	Name        string         `json:"name"`
	Short       string         `json:"short"`
	Long        string         `json:"long,omitempty"`
	Usage       string         `json:"usage"`
	Flags       []FlagMetadata `json:"flags,omitempty"`
	Examples    string         `json:"examples,omitempty"`
	Subcommands []string       `json:"subcommands,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
}

// FlagMetadata describes a flag.
type FlagMetadata struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required"`
}

// OperationMetadata describes one catalog operation. Commands annotated
// with "operations" list the catalog in their JSON help.
type OperationMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	ReadOnly    bool        `json:"read_only"`
	Params      []api.Param `json:"params,omitempty"`
}

// HelpResponse is the JSON response for the help command.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandMetadata   `json:"commands,omitempty"`
	Command     *CommandMetadata    `json:"command,omitempty"`
	Operations  []OperationMetadata `json:"operations,omitempty"`
	GlobalFlags []FlagMetadata      `json:"global_flags,omitempty"`
}

// AnnotationOperations marks commands whose help should include the
// operation catalog.
const AnnotationOperations = "operations"

// NewHelpCommand creates a help command that also speaks JSON.
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help provides detailed information about commands and their usage.

Run 'flowgate help' to see all available commands.
Run 'flowgate help <command>' to see detailed help for a specific command.
Use --json to get machine-readable output for agents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			useJSON := shared.GetJSON() || jsonOutput
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if !useJSON {
					return rootCmd.Help()
				}
				resp := HelpResponse{
					JSONResponse: shared.NewJSONResponse("help"),
					GlobalFlags:  visibleFlags(rootCmd.PersistentFlags()),
				}
				for _, c := range rootCmd.Commands() {
					if !c.Hidden {
						resp.Commands = append(resp.Commands, commandMetadata(c))
					}
				}
				return shared.EmitJSON(out, resp)
			}

			target, _, err := rootCmd.Find(args)
			if err != nil || target == rootCmd {
				return shared.NewInvalidInputError(fmt.Sprintf("command %q not found", args[0]), nil)
			}
			if !useJSON {
				return target.Help()
			}

			meta := commandMetadata(target)
			resp := HelpResponse{
				JSONResponse: shared.NewJSONResponse("help " + target.Name()),
				Command:      &meta,
				GlobalFlags:  visibleFlags(rootCmd.PersistentFlags()),
			}
			if _, ok := target.Annotations[AnnotationOperations]; ok {
				resp.Operations = operationMetadata()
			}
			return shared.EmitJSON(out, resp)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func commandMetadata(cmd *cobra.Command) CommandMetadata {
	meta := CommandMetadata{
		Name:     cmd.Name(),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Examples: cmd.Example,
		Aliases:  cmd.Aliases,
		Flags:    visibleFlags(cmd.LocalFlags()),
	}
	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			meta.Subcommands = append(meta.Subcommands, sub.Name())
		}
	}
	return meta
}

func visibleFlags(fs *pflag.FlagSet) []FlagMetadata {
	var flags []FlagMetadata
	fs.VisitAll(func(flag *pflag.Flag) {
		if flag.Hidden {
			return
		}
		meta := FlagMetadata{
			Name:      flag.Name,
			Shorthand: flag.Shorthand,
			Usage:     flag.Usage,
			Default:   flag.DefValue,
		}
		if ann := flag.Annotations[cobra.BashCompOneRequiredFlag]; len(ann) > 0 && ann[0] == "true" {
			meta.Required = true
		}
		flags = append(flags, meta)
	})
	return flags
}

func operationMetadata() []OperationMetadata {
	ops := api.Operations()
	out := make([]OperationMetadata, 0, len(ops))
	for _, op := range ops {
		out = append(out, OperationMetadata{
			Name:        op.Name,
			Description: op.Description,
			Category:    op.Category,
			ReadOnly:    op.ReadOnly(),
			Params:      op.Params,
		})
	}
	return out
}
