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

// Package client is the single typed HTTP call helper both dialect adapters
// use. It joins paths onto the dialect's API prefix, applies credentials,
// bounds every call with a timeout, and classifies failures as
// RemoteCallError. It never retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/flowgate/internal/airflow/auth"
	"github.com/tombee/flowgate/internal/log"
	"github.com/tombee/flowgate/internal/metrics"
)

// DefaultTimeout bounds each operation call.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 32 << 20

const tracerName = "github.com/tombee/flowgate/internal/airflow/client"

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string

	// APIPrefix is "/api/v1" or "/api/v2".
	APIPrefix string

	// Dialect labels logs and metrics ("v1" or "v2").
	Dialect string

	Credentials auth.Credentials

	// HTTPClient performs requests. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// Timeout bounds each call. Zero uses DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client issues JSON requests against one server in one dialect.
type Client struct {
	apiURL  string
	dialect string
	creds   auth.Credentials
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	return &Client{
		apiURL:  strings.TrimRight(cfg.BaseURL, "/") + cfg.APIPrefix,
		dialect: cfg.Dialect,
		creds:   cfg.Credentials,
		http:    httpClient,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// APIURL returns the base URL joined with the API prefix.
func (c *Client) APIURL() string { return c.apiURL }

// Dialect returns the dialect label.
func (c *Client) Dialect() string { return c.dialect }

// Get issues a GET and decodes the JSON object response.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Do issues a request with an optional JSON body. A 204 or empty body yields
// an empty map. A non-object JSON response is returned under "items".
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, "airflow "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("airflow.dialect", c.dialect),
		),
	)
	defer span.End()

	start := time.Now()
	result, status, err := c.do(ctx, method, target, body)
	duration := time.Since(start)

	metrics.RecordRemoteRequest(c.dialect, method, status, duration)
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("remote call failed",
			"method", method,
			"path", path,
			"status", status,
			log.DurationKey, duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (c *Client) do(ctx context.Context, method, target string, body any) (map[string]any, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, &RemoteCallError{Kind: KindTransport, Method: method, URL: target, Cause: fmt.Errorf("encoding request body: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, &RemoteCallError{Kind: KindTransport, Method: method, URL: target, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.creds.Apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &RemoteCallError{Kind: KindTransport, Method: method, URL: target, Cause: classifyTransport(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, &RemoteCallError{Kind: KindTransport, Method: method, URL: target, StatusCode: resp.StatusCode, Cause: err}
	}
	log.Trace(c.logger, "response body", slog.String("url", target), slog.String("body", truncate(raw, 2048)))

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, &RemoteCallError{
			Kind:       KindHTTP,
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       decodeErrorBody(raw),
		}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, resp.StatusCode, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, resp.StatusCode, &RemoteCallError{
			Kind:       KindDecode,
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       truncate(raw, 512),
			Cause:      err,
		}
	}

	if obj, ok := decoded.(map[string]any); ok {
		return obj, resp.StatusCode, nil
	}
	return map[string]any{"items": decoded}, resp.StatusCode, nil
}

// classifyTransport gives deadline errors a recognizable message.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("request cancelled: %w", err)
	}
	return err
}

func decodeErrorBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err == nil {
		return decoded
	}
	return truncate(trimmed, 2048)
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "...(truncated)"
}

// Segment escapes one path segment: a DAG id, run id, variable key etc.
func Segment(s string) string {
	return url.PathEscape(s)
}
