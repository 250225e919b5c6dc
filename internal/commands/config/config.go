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

// Package config implements the config command.
package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/flowgate/internal/commands/shared"
	"github.com/tombee/flowgate/internal/config"
	"github.com/tombee/flowgate/internal/log"
	"github.com/tombee/flowgate/internal/secrets"
)

// ShowResponse is the JSON output of config show.
type ShowResponse struct {
	shared.JSONResponse
	Path   string         `json:"path"`
	Config *config.Config `json:"config"`
}

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View the effective configuration",
		Long: `View the configuration flowgate would use, after the config file, .env,
environment variables, global flags and the keychain are applied.

Subcommands:
  show     - Display the effective configuration
  path     - Show the config file location
  validate - Check the configuration without contacting the server`,
		Args: cobra.NoArgs,
	}

	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newPathCommand())
	cmd.AddCommand(newValidateCommand())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runShow(cmd, args)
	}

	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the effective configuration as YAML, or JSON with --json.

Passwords and tokens are masked.`,
		Args: cobra.NoArgs,
		RunE: runShow,
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Long: `Load and validate the configuration. Exits 3 when it is invalid.

The server is not contacted; use 'flowgate probe' for that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig(secrets.NewKeychain())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, shared.NewJSONResponse("config validate"))
			}
			fmt.Fprintln(out, shared.RenderOK("configuration is valid"))
			if cfg.Airflow.URL == "" {
				fmt.Fprintln(out, shared.RenderWarn("no server URL configured; set AIRFLOW_API_URL or pass --url"))
			}
			return nil
		},
	}
}

func configPath() (string, error) {
	if path := shared.GetConfigPath(); path != "" {
		return path, nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return "", fmt.Errorf("failed to determine config path: %w", err)
	}
	return path, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig(secrets.NewKeychain())
	if err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}

	masked := maskSensitiveConfig(cfg)
	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, ShowResponse{
			JSONResponse: shared.NewJSONResponse("config show"),
			Path:         path,
			Config:       masked,
		})
	}
	return outputYAML(out, path, masked)
}

// maskSensitiveConfig returns a copy of cfg with credentials masked.
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	if masked.Airflow.Password != "" {
		masked.Airflow.Password = log.SanitizeSecret(masked.Airflow.Password)
	}
	if masked.Airflow.Token != "" {
		masked.Airflow.Token = log.SanitizeToken(masked.Airflow.Token)
	}
	if len(cfg.Tracing.Headers) > 0 {
		masked.Tracing.Headers = make(map[string]string, len(cfg.Tracing.Headers))
		for k, v := range cfg.Tracing.Headers {
			masked.Tracing.Headers[k] = log.SanitizeToken(v)
		}
	}
	return &masked
}

func outputYAML(out io.Writer, path string, cfg *config.Config) error {
	fmt.Fprintln(out, shared.Muted.Render("# "+path))

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}
