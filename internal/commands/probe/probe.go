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

// Package probe implements the probe command, which detects the remote
// dialect and checks that the configured credentials are accepted.
package probe

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/flowgate/internal/airflow/normalize"
	"github.com/tombee/flowgate/internal/commands/shared"
)

// Result is the probe outcome.
type Result struct {
	shared.JSONResponse
	BaseURL       string `json:"base_url"`
	ServerVersion string `json:"server_version,omitempty"`
	Dialect       string `json:"dialect,omitempty"`
	APIPrefix     string `json:"api_prefix,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Health        any    `json:"health,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
}

// NewCommand creates the probe command
func NewCommand() *cobra.Command {
	var skipHealth bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Detect the remote API dialect and check credentials",
		Long: `Probe the configured server: detect which REST dialect it speaks, resolve
credentials for that dialect and fetch its health report.

Exit codes: 0 ok, 3 configuration error, 4 detection or authentication failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, skipHealth)
		},
	}

	cmd.Flags().BoolVar(&skipHealth, "skip-health", false, "Only detect the dialect")

	return cmd
}

func runProbe(cmd *cobra.Command, skipHealth bool) error {
	out := cmd.OutOrStdout()
	rt, err := shared.NewRuntime(cmd.ErrOrStderr())
	if err != nil {
		return reportFailure(out, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	res := Result{
		JSONResponse: shared.NewJSONResponse("probe"),
		BaseURL:      rt.Target.BaseURL,
	}

	dialect, err := rt.Factory.Detect(ctx, rt.Target)
	if err != nil {
		return reportFailure(out, err)
	}
	res.ServerVersion = dialect.Version
	res.Dialect = dialect.Name()
	res.APIPrefix = dialect.APIPrefix()

	adapter, err := rt.Factory.Create(ctx, rt.Target)
	if err != nil {
		return reportFailure(out, err)
	}
	res.Authenticated = true

	var healthErr error
	if !skipHealth {
		health := adapter.GetHealth(ctx)
		res.Health = health
		if normalize.IsError(health) {
			healthErr = shared.NewOperationError("health check failed", fmt.Errorf("%v", health["error"]))
		}
	}
	res.DurationMS = time.Since(start).Milliseconds()
	res.Success = healthErr == nil

	if shared.GetJSON() {
		if err := shared.EmitJSON(out, res); err != nil {
			return err
		}
		return healthErr
	}

	render(out, res, healthErr)
	return healthErr
}

func reportFailure(out io.Writer, err error) error {
	if shared.GetJSON() {
		_ = shared.EmitJSONError(out, "probe", err)
	} else if shared.IsConnectionFailure(err) {
		fmt.Fprintln(out, shared.RenderError("probe failed"))
	}
	return err
}

const labelWidth = 14

func render(out io.Writer, res Result, healthErr error) {
	fmt.Fprintln(out, shared.Header.Render("flowgate probe"))
	fmt.Fprintln(out, shared.RenderField("server", labelWidth, res.BaseURL))
	fmt.Fprintln(out, shared.RenderField("version", labelWidth, res.ServerVersion))
	fmt.Fprintln(out, shared.RenderField("dialect", labelWidth,
		shared.RenderBadge(res.Dialect)+" "+shared.Muted.Render(res.APIPrefix)))
	fmt.Fprintln(out, shared.RenderField("duration", labelWidth, fmt.Sprintf("%dms", res.DurationMS)))
	fmt.Fprintln(out)

	fmt.Fprintln(out, shared.RenderOK("dialect detected"))
	fmt.Fprintln(out, shared.RenderOK("credentials accepted"))
	switch {
	case res.Health == nil:
	case healthErr != nil:
		fmt.Fprintln(out, shared.RenderError(healthErr.Error()))
	default:
		fmt.Fprintln(out, shared.RenderOK("health endpoint reachable"))
		if health, ok := res.Health.(map[string]any); ok {
			renderHealth(out, health)
		}
	}
}

// renderHealth prints the per-component status of a health report, whose
// shape is {"metadatabase": {"status": "healthy"}, "scheduler": {...}}.
func renderHealth(out io.Writer, health map[string]any) {
	for _, name := range slices.Sorted(maps.Keys(health)) {
		component, ok := health[name].(map[string]any)
		if !ok {
			continue
		}
		status, _ := component["status"].(string)
		if status == "" {
			continue
		}
		line := fmt.Sprintf("%s: %s", name, status)
		if status == "healthy" {
			fmt.Fprintln(out, "  "+shared.RenderOK(line))
		} else {
			fmt.Fprintln(out, "  "+shared.RenderWarn(line))
		}
	}
}
