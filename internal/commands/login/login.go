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

// Package login implements the login and logout commands, which keep a
// server password in the system keychain.
package login

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/airflow/normalize"
	"github.com/tombee/flowgate/internal/commands/shared"
	"github.com/tombee/flowgate/internal/config"
	"github.com/tombee/flowgate/internal/secrets"
	pkgerrors "github.com/tombee/flowgate/pkg/errors"
)

// NewCommand creates the login command
func NewCommand() *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify a password and store it in the system keychain",
		Long: `Check a username and password against the configured server and store the
password in the system keychain. Later commands and the MCP server look it up
whenever a username is configured without a password.

The password is read from the terminal, or from stdin with --password-stdin.`,
		Example: `  flowgate login --url http://localhost:8080 --username admin
  echo "$PASSWORD" | flowgate login --username admin --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, passwordStdin)
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove a stored password from the system keychain",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, passwordStdin bool) error {
	keychain := secrets.NewKeychain()
	if !keychain.Available() {
		return &pkgerrors.ConfigError{
			Key:    "keychain",
			Reason: "system keychain is not available; set AIRFLOW_PASSWORD instead",
		}
	}

	cfg, err := shared.LoadConfigWith(keychain, func(cfg *config.Config) error {
		a := &cfg.Airflow
		if a.URL == "" {
			return &pkgerrors.ConfigError{Key: "airflow.url", Reason: "no server URL configured; set AIRFLOW_API_URL or pass --url"}
		}
		if a.Username == "" {
			return shared.NewInvalidInputError("login needs a username", fmt.Errorf("pass --username or set AIRFLOW_USERNAME"))
		}

		var pw string
		var err error
		if passwordStdin {
			pw, err = shared.ReadSecret(cmd.InOrStdin())
		} else {
			pw, err = shared.PromptPassword(fmt.Sprintf("Password for %s: ", a.Username))
		}
		if err != nil {
			return err
		}
		if pw == "" {
			return shared.NewInvalidInputError("empty password", nil)
		}
		a.Password = pw
		a.Token = ""
		return nil
	})
	if err != nil {
		return err
	}

	rt, err := shared.NewRuntimeFromConfig(cfg, keychain, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	adapter, err := rt.Factory.Create(ctx, rt.Target)
	if err != nil {
		return err
	}
	if err := verify(ctx, adapter); err != nil {
		return err
	}

	a := cfg.Airflow
	account := secrets.Account(a.Username, strings.TrimRight(a.URL, "/"))
	if err := keychain.Set(account, a.Password); err != nil {
		return err
	}
	rt.Logger.Debug("stored password in keychain", "account", account)

	fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("logged in to %s as %s (%s)",
		rt.Target.BaseURL, a.Username, adapter.Dialect().Name())))
	return nil
}

// verify makes one authenticated call. Basic credentials are only checked
// by the server on use.
func verify(ctx context.Context, adapter api.Adapter) error {
	result := adapter.ListDAGs(ctx, api.Page{Limit: 1}, nil)
	if !normalize.IsError(result) {
		return nil
	}
	if status, _ := result["status_code"].(int); status == 401 || status == 403 {
		return shared.NewConnectionError("credentials rejected", fmt.Errorf("%v", result["error"]))
	}
	return shared.NewOperationError("verifying credentials failed", fmt.Errorf("%v", result["error"]))
}

func runLogout(cmd *cobra.Command, args []string) error {
	keychain := secrets.NewKeychain()

	var username, baseURL string
	_, err := shared.LoadConfigWith(keychain, func(cfg *config.Config) error {
		a := &cfg.Airflow
		username, baseURL = a.Username, strings.TrimRight(a.URL, "/")
		// logout only needs the account name, not a usable credential pair
		a.Username, a.Password = "", ""
		return nil
	})
	if err != nil {
		return err
	}
	if baseURL == "" {
		return &pkgerrors.ConfigError{Key: "airflow.url", Reason: "no server URL configured; set AIRFLOW_API_URL or pass --url"}
	}
	if username == "" {
		return shared.NewInvalidInputError("logout needs a username", fmt.Errorf("pass --username or set AIRFLOW_USERNAME"))
	}

	if err := keychain.Delete(secrets.Account(username, baseURL)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("removed stored password for %s on %s", username, baseURL)))
	return nil
}
