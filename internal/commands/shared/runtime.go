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

package shared

import (
	"errors"
	"io"
	"log/slog"

	"github.com/tombee/flowgate/internal/airflow"
	"github.com/tombee/flowgate/internal/config"
	"github.com/tombee/flowgate/internal/log"
	"github.com/tombee/flowgate/internal/secrets"
	pkgerrors "github.com/tombee/flowgate/pkg/errors"
	"github.com/tombee/flowgate/pkg/httpclient"
)

// Runtime bundles what a command needs to reach the remote server.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Keychain *secrets.Keychain
	Factory  *airflow.Factory
	Target   airflow.Target
}

// LoadConfig loads configuration with the global flags applied on top.
func LoadConfig(keychain *secrets.Keychain) (*config.Config, error) {
	return LoadConfigWith(keychain, nil)
}

// LoadConfigWith is LoadConfig with a command-specific override applied
// after the global flags and before validation.
func LoadConfigWith(keychain *secrets.Keychain, override func(*config.Config) error) (*config.Config, error) {
	return config.Load(config.Options{
		Path:     configFlag,
		Keychain: keychain,
		Override: func(cfg *config.Config) error {
			if err := applyFlags(cfg); err != nil {
				return err
			}
			if override != nil {
				return override(cfg)
			}
			return nil
		},
	})
}

// applyFlags layers the connection and verbosity flags over cfg.
func applyFlags(cfg *config.Config) error {
	a := &cfg.Airflow
	if urlFlag != "" {
		a.URL = urlFlag
	}
	if tokenFlag != "" {
		a.Token = tokenFlag
	}
	if usernameFlag != "" && usernameFlag != a.Username {
		if a.Username != "" {
			// The configured password belongs to the configured user.
			a.Password = ""
		}
		a.Username = usernameFlag
	}
	if timeoutFlag > 0 {
		a.Timeout = timeoutFlag
	}
	if askPasswordFlag {
		pw, err := PromptPassword("Password: ")
		if err != nil {
			return err
		}
		a.Password = pw
	}

	if verboseFlag {
		cfg.Log.Level = "debug"
	} else if quietFlag {
		cfg.Log.Level = "error"
	}
	return nil
}

// NewLogger builds the command logger. Logs always go to stderr.
func NewLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	logCfg := cfg.LoggerConfig()
	logCfg.Output = stderr
	return log.New(logCfg)
}

// NewRuntime loads configuration and builds the adapter factory.
func NewRuntime(stderr io.Writer) (*Runtime, error) {
	keychain := secrets.NewKeychain()
	cfg, err := LoadConfig(keychain)
	if err != nil {
		return nil, err
	}
	return NewRuntimeFromConfig(cfg, keychain, stderr)
}

// NewRuntimeFromConfig builds the factory for an already loaded config.
func NewRuntimeFromConfig(cfg *config.Config, keychain *secrets.Keychain, stderr io.Writer) (*Runtime, error) {
	if cfg.Airflow.URL == "" {
		return nil, &pkgerrors.ConfigError{
			Key:    "airflow.url",
			Reason: "no server URL configured; set AIRFLOW_API_URL or pass --url",
		}
	}

	logger := NewLogger(cfg, stderr)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.Airflow.Timeout
	httpCfg.UserAgent = "flowgate/" + version
	httpCfg.TLSInsecure = cfg.Airflow.TLSInsecure
	httpCfg.Logger = log.WithComponent(logger, "http")
	httpClient, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, &pkgerrors.ConfigError{Key: "airflow", Reason: "invalid HTTP settings", Cause: err}
	}

	factory := airflow.NewFactory(airflow.Options{
		HTTPClient:              httpClient,
		ProbeTimeout:            cfg.Airflow.ProbeTimeout,
		CallTimeout:             cfg.Airflow.Timeout,
		AllowDefaultCredentials: cfg.Airflow.DefaultCredentials,
		Logger:                  logger,
	})

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Keychain: keychain,
		Factory:  factory,
		Target: airflow.Target{
			BaseURL:  cfg.Airflow.URL,
			Token:    cfg.Airflow.Token,
			Username: cfg.Airflow.Username,
			Password: cfg.Airflow.Password,
		},
	}, nil
}

// IsConnectionFailure reports whether err came from detection or
// authentication rather than from the command's input.
func IsConnectionFailure(err error) bool {
	var creationErr *airflow.CreationError
	return errors.As(err, &creationErr) && creationErr.Stage != airflow.StageValidate
}
