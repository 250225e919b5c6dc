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

// Package config loads flowgate settings. Sources, lowest precedence first:
// built-in defaults, the YAML config file, a .env file in the working
// directory, then environment variables. CLI flags are applied on top by the
// commands themselves.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tombee/flowgate/internal/log"
	"github.com/tombee/flowgate/internal/secrets"
	flowerrors "github.com/tombee/flowgate/pkg/errors"
)

// Config represents the complete flowgate configuration.
type Config struct {
	Airflow AirflowConfig `yaml:"airflow" json:"airflow"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// AirflowConfig describes the orchestration server to talk to.
type AirflowConfig struct {
	// URL is the server root, without /api/v1 or /api/v2.
	URL string `yaml:"url" json:"url"`

	// Token is a pre-issued bearer token. It wins over username/password.
	Token string `yaml:"token" json:"token"`

	Username string `yaml:"username" json:"username"`

	// Password may be left empty when it is stored in the system keychain.
	Password string `yaml:"password" json:"password"`

	// Timeout bounds each operation call (default: 30s).
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// ProbeTimeout bounds each version probe (default: 5s).
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// DefaultCredentials enables the airflow/airflow pair for 2.x servers
	// when no credentials are configured (default: true).
	DefaultCredentials bool `yaml:"default_credentials" json:"default_credentials"`

	// TLSInsecure skips certificate verification. Development only.
	TLSInsecure bool `yaml:"tls_insecure" json:"tls_insecure"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is trace, debug, info, warn or error (default: info).
	Level string `yaml:"level" json:"level"`

	// Format is json or text (default: text).
	Format string `yaml:"format" json:"format"`

	AddSource bool `yaml:"add_source" json:"add_source"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// RateLimit is the sustained tool calls per second (default: 10).
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`

	// Burst is the rate limiter bucket size (default: 20).
	Burst int `yaml:"burst" json:"burst"`

	// ReadOnly registers only tools that change nothing on the server.
	ReadOnly bool `yaml:"read_only" json:"read_only"`

	// MetricsAddr serves Prometheus metrics when set (e.g. "127.0.0.1:9464").
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// TracingConfig selects an OpenTelemetry span exporter.
type TracingConfig struct {
	// Exporter is none, console or otlp-http (default: none).
	Exporter string `yaml:"exporter" json:"exporter"`

	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Insecure uses plain HTTP towards the collector.
	Insecure bool `yaml:"insecure" json:"insecure"`

	Headers map[string]string `yaml:"headers" json:"headers"`

	// SampleRate is the fraction of root spans recorded (default: 1.0).
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
}

// Default returns a Config with built-in defaults.
func Default() *Config {
	return &Config{
		Airflow: AirflowConfig{
			Timeout:            30 * time.Second,
			ProbeTimeout:       5 * time.Second,
			DefaultCredentials: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			RateLimit: 10,
			Burst:     20,
		},
		Tracing: TracingConfig{
			Exporter:   "none",
			SampleRate: 1.0,
		},
	}
}

// Options controls Load.
type Options struct {
	// Path is an explicit config file. It must exist when set.
	Path string

	// EnvFile is loaded into the environment before overrides are read.
	// Missing files are ignored. Default: ".env".
	EnvFile string

	// Keychain is consulted for a password when only a username is
	// configured. Nil disables the lookup.
	Keychain *secrets.Keychain

	// Override runs after environment overrides and before the keychain
	// lookup and validation. Commands apply their flags here.
	Override func(*Config) error

	Logger *slog.Logger
}

// Load builds the configuration from every source and validates it.
func Load(opts Options) (*Config, error) {
	cfg := Default()
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	path := opts.Path
	mustExist := path != ""
	if path == "" {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			if mustExist || !errors.Is(err, os.ErrNotExist) {
				return nil, &flowerrors.ConfigError{
					Key:    "config_file",
					Reason: fmt.Sprintf("failed to load from %s", path),
					Cause:  err,
				}
			}
		} else {
			logger.Debug("loaded config file", "path", path)
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &flowerrors.ConfigError{
			Key:    "env_file",
			Reason: fmt.Sprintf("failed to parse %s", envFile),
			Cause:  err,
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if opts.Override != nil {
		if err := opts.Override(cfg); err != nil {
			return nil, err
		}
	}

	if opts.Keychain != nil {
		cfg.resolvePassword(opts.Keychain, logger)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// loadFromEnv applies environment overrides.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv("AIRFLOW_API_URL"); val != "" {
		c.Airflow.URL = val
	}
	if val := os.Getenv("AIRFLOW_API_TOKEN"); val != "" {
		c.Airflow.Token = val
	}
	if val := os.Getenv("AIRFLOW_USERNAME"); val != "" {
		c.Airflow.Username = val
	}
	if val := os.Getenv("AIRFLOW_PASSWORD"); val != "" {
		c.Airflow.Password = val
	}
	if val := os.Getenv("AIRFLOW_TIMEOUT"); val != "" {
		d, err := parseDuration(val)
		if err != nil {
			return &flowerrors.ConfigError{Key: "AIRFLOW_TIMEOUT", Reason: "invalid duration", Cause: err}
		}
		c.Airflow.Timeout = d
	}
	if val := os.Getenv("AIRFLOW_DEFAULT_CREDENTIALS"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return &flowerrors.ConfigError{Key: "AIRFLOW_DEFAULT_CREDENTIALS", Reason: "must be true or false", Cause: err}
		}
		c.Airflow.DefaultCredentials = b
	}
	if val := os.Getenv("AIRFLOW_TLS_INSECURE"); val != "" {
		c.Airflow.TLSInsecure = val == "1" || strings.EqualFold(val, "true")
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("FLOWGATE_DEBUG"); val == "1" || strings.EqualFold(val, "true") {
		c.Log.Level = "debug"
		c.Log.AddSource = true
	}

	if val := os.Getenv("FLOWGATE_READ_ONLY"); val != "" {
		c.Server.ReadOnly = val == "1" || strings.EqualFold(val, "true")
	}
	if val := os.Getenv("FLOWGATE_METRICS_ADDR"); val != "" {
		c.Server.MetricsAddr = val
	}
	if val := os.Getenv("FLOWGATE_TRACE_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}
	return nil
}

// parseDuration accepts Go durations ("45s") and bare seconds ("45").
func parseDuration(val string) (time.Duration, error) {
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(val)
}

// resolvePassword fills in a keychain password when only a username is
// configured and no token makes it irrelevant.
func (c *Config) resolvePassword(k *secrets.Keychain, logger *slog.Logger) {
	a := &c.Airflow
	if a.Token != "" || a.Username == "" || a.Password != "" || a.URL == "" {
		return
	}
	password, err := k.Get(secrets.Account(a.Username, strings.TrimRight(a.URL, "/")))
	if err != nil {
		if !errors.Is(err, secrets.ErrNotFound) {
			logger.Warn("keychain lookup failed", "username", a.Username, "error", err)
		}
		return
	}
	a.Password = password
	logger.Debug("using password from keychain", "username", a.Username)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	a := c.Airflow
	if a.URL != "" {
		u, err := url.Parse(a.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &flowerrors.ConfigError{Key: "airflow.url", Reason: fmt.Sprintf("%q is not an http(s) URL", a.URL), Cause: err}
		}
	}
	if a.Token == "" && (a.Username == "") != (a.Password == "") {
		return &flowerrors.ConfigError{Key: "airflow.username", Reason: "username and password must be set together"}
	}
	if a.Timeout <= 0 {
		return &flowerrors.ConfigError{Key: "airflow.timeout", Reason: "must be positive"}
	}
	if a.ProbeTimeout <= 0 {
		return &flowerrors.ConfigError{Key: "airflow.probe_timeout", Reason: "must be positive"}
	}

	logCfg := &log.Config{Level: c.Log.Level, Format: log.Format(c.Log.Format)}
	if err := logCfg.Validate(); err != nil {
		return &flowerrors.ConfigError{Key: "log", Reason: "invalid log settings", Cause: err}
	}

	if c.Server.RateLimit < 0 {
		return &flowerrors.ConfigError{Key: "server.rate_limit", Reason: "cannot be negative"}
	}
	if c.Server.RateLimit > 0 && c.Server.Burst <= 0 {
		return &flowerrors.ConfigError{Key: "server.burst", Reason: "must be positive when rate_limit is set"}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return &flowerrors.ConfigError{Key: "tracing.sample_rate", Reason: "must be between 0 and 1"}
	}
	switch c.Tracing.Exporter {
	case "", "none", "console":
	case "otlp-http", "otlp_http":
		if c.Tracing.Endpoint == "" {
			return &flowerrors.ConfigError{Key: "tracing.endpoint", Reason: "required for the otlp-http exporter"}
		}
	default:
		return &flowerrors.ConfigError{Key: "tracing.exporter", Reason: fmt.Sprintf("unknown exporter %q (none, console, otlp-http)", c.Tracing.Exporter)}
	}
	return nil
}

// LoggerConfig converts the log section for internal/log.
func (c *Config) LoggerConfig() *log.Config {
	return &log.Config{
		Level:     c.Log.Level,
		Format:    log.Format(c.Log.Format),
		AddSource: c.Log.AddSource,
	}
}
