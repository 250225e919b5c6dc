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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tombee/flowgate/internal/airflow/auth"
	"github.com/tombee/flowgate/internal/log"
	"github.com/tombee/flowgate/internal/metrics"
)

// DefaultProbeTimeout bounds each version probe.
const DefaultProbeTimeout = 5 * time.Second

// candidates are probed in order: newest dialect first.
var candidates = []string{
	"/api/v2/version",
	"/api/v1/version",
}

type probeOutcome int

const (
	probeFound probeOutcome = iota
	probeNotFound
	probeFailed
	probeEmpty
)

type probeResult struct {
	outcome probeOutcome
	version string
	err     error
}

// Detector probes servers for their API dialect.
type Detector struct {
	// HTTPClient performs the probes. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// Cache stores results. Nil disables caching.
	Cache *Cache

	// ProbeTimeout bounds each probe. Zero uses DefaultProbeTimeout.
	ProbeTimeout time.Duration

	Logger *slog.Logger

	group singleflight.Group
}

// Detect returns the dialect spoken at baseURL, consulting the cache first.
// Concurrent calls for the same uncached base URL share one probe sequence.
// Failures are always *DetectionError.
func (d *Detector) Detect(ctx context.Context, baseURL string, creds auth.Credentials) (Dialect, error) {
	key := cacheKey(baseURL)

	if d.Cache != nil {
		if dialect, ok := d.Cache.Get(key); ok {
			metrics.RecordDetection(metrics.DetectionCached)
			return dialect, nil
		}
	}

	// Probes run detached from the caller that started the flight and are
	// bounded by ProbeTimeout. Each caller stops waiting when its own
	// context ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (interface{}, error) {
		// Another flight may have finished between the cache check and DoChan.
		if d.Cache != nil {
			if dialect, ok := d.Cache.Get(key); ok {
				return dialect, nil
			}
		}

		dialect, err := d.detect(flightCtx, key, creds)
		if err != nil {
			metrics.RecordDetection(metrics.DetectionFailed)
			return Dialect{}, err
		}
		if d.Cache != nil {
			d.Cache.Set(key, dialect)
		}
		metrics.RecordDetection(dialect.Name())
		return dialect, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Dialect{}, res.Err
		}
		return res.Val.(Dialect), nil
	case <-ctx.Done():
		return Dialect{}, &DetectionError{BaseURL: key, Reason: ReasonUnreachable, LastErr: ctx.Err()}
	}
}

func (d *Detector) detect(ctx context.Context, baseURL string, creds auth.Credentials) (Dialect, error) {
	logger := d.logger().With(log.BaseURLKey, baseURL)

	var (
		lastErr  error
		sawEmpty bool
	)

	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return Dialect{}, &DetectionError{BaseURL: baseURL, Reason: ReasonUnreachable, LastErr: err}
		}
		res := d.probe(ctx, baseURL+path, creds)

		switch res.outcome {
		case probeNotFound:
			logger.Debug("version endpoint not found", "path", path)
			continue
		case probeFailed:
			logger.Debug("version probe failed", "path", path, "error", res.err)
			lastErr = res.err
			continue
		case probeEmpty:
			logger.Debug("version endpoint returned empty version", "path", path)
			sawEmpty = true
			continue
		}

		parsed, err := Parse(res.version)
		if err != nil {
			return Dialect{}, &DetectionError{BaseURL: baseURL, Reason: ReasonInvalidVersion, Version: res.version, LastErr: err}
		}
		if parsed.Major != MajorLegacy && parsed.Major != MajorCurrent {
			return Dialect{}, &DetectionError{BaseURL: baseURL, Reason: ReasonUnsupportedMajor, Version: res.version}
		}

		dialect := Dialect{Major: parsed.Major, Version: res.version}
		logger.Info("detected API dialect", log.DialectKey, dialect.Name(), "version", res.version, "path", path)
		return dialect, nil
	}

	switch {
	case sawEmpty:
		return Dialect{}, &DetectionError{BaseURL: baseURL, Reason: ReasonEmptyVersion, LastErr: lastErr}
	case lastErr != nil:
		return Dialect{}, &DetectionError{BaseURL: baseURL, Reason: ReasonUnreachable, LastErr: lastErr}
	default:
		return Dialect{}, &DetectionError{BaseURL: baseURL, Reason: ReasonNotFound}
	}
}

// probe performs one GET against a version endpoint.
func (d *Detector) probe(ctx context.Context, url string, creds auth.Credentials) probeResult {
	timeout := d.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return probeResult{outcome: probeFailed, err: err}
	}
	req.Header.Set("Accept", "application/json")
	creds.Apply(req)

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return probeResult{outcome: probeFailed, err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return probeResult{outcome: probeFailed, err: fmt.Errorf("reading %s: %w", url, err)}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return probeResult{outcome: probeNotFound}
	case resp.StatusCode != http.StatusOK:
		return probeResult{outcome: probeFailed, err: fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)}
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return probeResult{outcome: probeFailed, err: fmt.Errorf("decoding %s: %w", url, err)}
	}
	if strings.TrimSpace(payload.Version) == "" {
		return probeResult{outcome: probeEmpty}
	}
	return probeResult{outcome: probeFound, version: strings.TrimSpace(payload.Version)}
}

func (d *Detector) logger() *slog.Logger {
	if d.Logger == nil {
		return log.Discard()
	}
	return d.Logger
}
