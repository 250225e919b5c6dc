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

// Package airflow builds dialect adapters for orchestration servers. Create
// validates the target, detects the dialect, resolves credentials and
// returns the adapter bound to all three.
//
//	factory := airflow.NewFactory(airflow.DefaultOptions())
//	adapter, err := factory.Create(ctx, airflow.Target{BaseURL: "http://localhost:8080"})
//	if err != nil {
//	    return err
//	}
//	pools := adapter.ListPools(ctx, api.Page{})
package airflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/airflow/auth"
	"github.com/tombee/flowgate/internal/airflow/client"
	v1 "github.com/tombee/flowgate/internal/airflow/v1"
	v2 "github.com/tombee/flowgate/internal/airflow/v2"
	"github.com/tombee/flowgate/internal/airflow/version"
	"github.com/tombee/flowgate/internal/log"
	flowerrors "github.com/tombee/flowgate/pkg/errors"
)

// Target identifies one server and what the caller knows about its
// credentials. It is not modified after Create.
type Target struct {
	BaseURL  string
	Token    string
	Username string
	Password string
}

// Validate checks the base URL and that username and password come as a
// pair.
func (t Target) Validate() error {
	if strings.TrimSpace(t.BaseURL) == "" {
		return &flowerrors.ValidationError{
			Field:   "base_url",
			Message: "base URL is required",
			Hint:    "set AIRFLOW_API_URL, e.g. http://localhost:8080",
		}
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &flowerrors.ValidationError{
			Field:   "base_url",
			Message: fmt.Sprintf("%q is not an http(s) URL", t.BaseURL),
			Hint:    "use the server root, e.g. http://localhost:8080",
		}
	}
	return t.input().Validate()
}

func (t Target) input() auth.Input {
	return auth.Input{Token: t.Token, Username: t.Username, Password: t.Password}
}

// Creation stages, reported on CreationError.
const (
	StageValidate     = "validate"
	StageDetect       = "detect"
	StageAuthenticate = "authenticate"
)

// CreationError is what Create returns. Cause is a *ValidationError,
// *version.DetectionError or *auth.ExchangeError; errors.As reaches it.
type CreationError struct {
	BaseURL string
	Stage   string
	Cause   error
}

// Error implements the error interface.
func (e *CreationError) Error() string {
	return fmt.Sprintf("creating adapter for %s (%s): %v", e.BaseURL, e.Stage, e.Cause)
}

// Unwrap returns the cause.
func (e *CreationError) Unwrap() error { return e.Cause }

// IsUserVisible implements errors.UserVisibleError.
func (e *CreationError) IsUserVisible() bool { return true }

// UserMessage implements errors.UserVisibleError.
func (e *CreationError) UserMessage() string {
	if uv, ok := flowerrors.FindUserVisible(e.Cause); ok {
		return uv.UserMessage()
	}
	return e.Error()
}

// Suggestion implements errors.UserVisibleError.
func (e *CreationError) Suggestion() string {
	if uv, ok := flowerrors.FindUserVisible(e.Cause); ok {
		return uv.Suggestion()
	}
	return ""
}

// Options configures a Factory.
type Options struct {
	// HTTPClient is shared by probes, the token exchange and operations.
	// Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// Cache holds detected dialects. Nil creates a private cache.
	Cache *version.Cache

	// ProbeTimeout bounds each version probe.
	ProbeTimeout time.Duration

	// CallTimeout bounds each operation call.
	CallTimeout time.Duration

	// AllowDefaultCredentials lets 2.x targets without credentials fall
	// back to airflow/airflow.
	AllowDefaultCredentials bool

	Logger *slog.Logger
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		ProbeTimeout:            version.DefaultProbeTimeout,
		CallTimeout:             client.DefaultTimeout,
		AllowDefaultCredentials: true,
	}
}

// Factory creates adapters. It is safe for concurrent use.
type Factory struct {
	httpClient  *http.Client
	cache       *version.Cache
	detector    *version.Detector
	resolver    *auth.Resolver
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewFactory creates a Factory from opts.
func NewFactory(opts Options) *Factory {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cache := opts.Cache
	if cache == nil {
		cache = version.NewCache()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = log.WithComponent(logger, "airflow")

	return &Factory{
		httpClient: httpClient,
		cache:      cache,
		detector: &version.Detector{
			HTTPClient:   httpClient,
			Cache:        cache,
			ProbeTimeout: opts.ProbeTimeout,
			Logger:       logger,
		},
		resolver: &auth.Resolver{
			HTTPClient:              httpClient,
			AllowDefaultCredentials: opts.AllowDefaultCredentials,
			Logger:                  logger,
		},
		callTimeout: opts.CallTimeout,
		logger:      logger,
	}
}

// Cache returns the factory's version cache.
func (f *Factory) Cache() *version.Cache { return f.cache }

// Detect reports the dialect of target without building an adapter.
func (f *Factory) Detect(ctx context.Context, target Target) (version.Dialect, error) {
	if err := target.Validate(); err != nil {
		return version.Dialect{}, &CreationError{BaseURL: target.BaseURL, Stage: StageValidate, Cause: err}
	}
	dialect, err := f.detector.Detect(ctx, baseURL(target), detectionCredentials(target))
	if err != nil {
		return version.Dialect{}, &CreationError{BaseURL: target.BaseURL, Stage: StageDetect, Cause: err}
	}
	return dialect, nil
}

// Create returns the adapter for target's dialect.
func (f *Factory) Create(ctx context.Context, target Target) (api.Adapter, error) {
	dialect, err := f.Detect(ctx, target)
	if err != nil {
		return nil, err
	}

	base := baseURL(target)
	creds, err := f.resolver.Resolve(ctx, base, dialect.Major, target.input())
	if err != nil {
		return nil, &CreationError{BaseURL: target.BaseURL, Stage: StageAuthenticate, Cause: err}
	}

	logger := log.WithTarget(f.logger, base, dialect.Name())
	logger.Debug("adapter ready", "server_version", dialect.Version, "auth", creds.String())

	c := client.New(client.Config{
		BaseURL:     base,
		APIPrefix:   dialect.APIPrefix(),
		Dialect:     dialect.Name(),
		Credentials: creds,
		HTTPClient:  f.httpClient,
		Timeout:     f.callTimeout,
		Logger:      logger,
	})

	if dialect.Major == version.MajorCurrent {
		return v2.New(dialect, c), nil
	}
	return v1.New(dialect, c), nil
}

// Probes carry the token when there is one; Basic and the exchange are only
// chosen once the dialect is known.
func detectionCredentials(target Target) auth.Credentials {
	if target.Token != "" {
		return auth.Bearer(target.Token)
	}
	return auth.None()
}

func baseURL(target Target) string {
	return strings.TrimRight(strings.TrimSpace(target.BaseURL), "/")
}
