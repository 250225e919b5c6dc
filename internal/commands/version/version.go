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

package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	airflowversion "github.com/tombee/flowgate/internal/airflow/version"
	"github.com/tombee/flowgate/internal/commands/shared"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	shared.JSONResponse
	Version     string   `json:"version"`
	Commit      string   `json:"commit"`
	BuildDate   string   `json:"build_date"`
	GoVersion   string   `json:"go_version"`
	MCPProtocol string   `json:"mcp_protocol"`
	Dialects    []string `json:"dialects"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, build details and the remote API dialects flowgate speaks.`,
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
}

func supportedDialects() []string {
	var out []string
	for _, major := range []int{airflowversion.MajorLegacy, airflowversion.MajorCurrent} {
		d := airflowversion.Dialect{Major: major}
		out = append(out, fmt.Sprintf("%s (%d.x)", d.APIPrefix(), major))
	}
	return out
}

func runVersion(cmd *cobra.Command, args []string) error {
	v, c, b := shared.GetVersion()

	info := VersionInfo{
		JSONResponse: shared.NewJSONResponse("version"),
		Version:      v,
		Commit:       c,
		BuildDate:    b,
		GoVersion:    runtime.Version(),
		MCPProtocol:  mcp.LATEST_PROTOCOL_VERSION,
		Dialects:     supportedDialects(),
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), info)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "flowgate version %s\n", info.Version)
	fmt.Fprintf(out, "  commit:       %s\n", info.Commit)
	fmt.Fprintf(out, "  build date:   %s\n", info.BuildDate)
	fmt.Fprintf(out, "  go:           %s\n", info.GoVersion)
	fmt.Fprintf(out, "  mcp protocol: %s\n", info.MCPProtocol)
	fmt.Fprintf(out, "  dialects:     %s\n", strings.Join(info.Dialects, ", "))

	return nil
}
