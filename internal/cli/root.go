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
	"github.com/spf13/cobra"

	"github.com/tombee/flowgate/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for flowgate
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowgate",
		Short: "flowgate - MCP gateway for workflow orchestration servers",
		Long: `flowgate exposes an Airflow-compatible orchestration server to AI assistants
as a set of MCP tools. It detects whether the server speaks the /api/v1 or
/api/v2 REST dialect, negotiates credentials, and normalizes results so the
same tools work against both.

Run 'flowgate probe' to check connectivity.
Run 'flowgate mcp-server' to serve tools over stdio.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, quiet, json, config := shared.RegisterFlagPointers()
	conn := shared.RegisterConnectionFlagPointers()

	flags := cmd.PersistentFlags()
	flags.BoolVarP(verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(quiet, "quiet", "q", false, "Only log errors")
	flags.BoolVar(json, "json", false, "Output in JSON format")
	flags.StringVar(config, "config", "", "Path to config file (default: ~/.config/flowgate/config.yaml)")

	flags.StringVar(conn.URL, "url", "", "Server base URL, without /api/v1 or /api/v2")
	flags.StringVar(conn.Token, "token", "", "Bearer token")
	flags.StringVar(conn.Username, "username", "", "Username for basic auth or the token exchange")
	flags.BoolVar(conn.AskPassword, "ask-password", false, "Prompt for the password")
	flags.DurationVar(conn.Timeout, "timeout", 0, "Per-call timeout (default: 30s)")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
