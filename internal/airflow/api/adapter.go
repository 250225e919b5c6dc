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

// Package api defines the uniform capability interface both dialect
// adapters implement, together with the shared request and result types.
package api

import (
	"context"
	"net/url"
	"sort"
	"strconv"

	"github.com/tombee/flowgate/internal/airflow/version"
)

// Result is a normalized resource: a plain JSON-shaped map. Its key set is
// the same for both dialects. Failed calls come back as results too, with
// "error", "kind", "status_code" and "body" keys.
type Result = map[string]any

// DefaultLimit is the page size used when Page.Limit is not set.
const DefaultLimit = 100

// Page selects a window of a paginated collection.
type Page struct {
	Limit  int
	Offset int
}

// Query returns limit and offset as query parameters, applying defaults.
func (p Page) Query() url.Values {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
}

// Filters are forwarded verbatim as query parameters. Empty values are
// dropped.
type Filters map[string]string

// Apply adds the non-empty filters to q, in key order.
func (f Filters) Apply(q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if f[k] == "" {
			continue
		}
		q.Set(k, f[k])
	}
	return q
}

// TriggerOptions configures a new workflow run.
type TriggerOptions struct {
	// RunID names the run. Empty lets the server generate one.
	RunID string
	// LogicalDate is an RFC 3339 timestamp. Empty means "now" on 2.x and
	// an explicit null on 3.x.
	LogicalDate string
	// Conf is passed to the run as its configuration.
	Conf map[string]any
	// Note is attached to the run.
	Note string
}

// Adapter is the uniform operation surface over one server in one dialect.
// Operations never return Go errors: remote failures are error-shaped
// results and missing capabilities are "supported": false results.
type Adapter interface {
	// Dialect reports the detected dialect.
	Dialect() version.Dialect

	// Workflows
	ListDAGs(ctx context.Context, page Page, filters Filters) Result
	GetDAG(ctx context.Context, dagID string) Result
	GetDAGSource(ctx context.Context, dagID string) Result
	SetDAGPaused(ctx context.Context, dagID string, paused bool) Result
	GetDAGStats(ctx context.Context, dagIDs []string) Result

	// Runs; an empty dagID in ListDAGRuns selects every workflow.
	ListDAGRuns(ctx context.Context, dagID string, page Page, filters Filters) Result
	GetDAGRun(ctx context.Context, dagID, runID string) Result
	TriggerDAGRun(ctx context.Context, dagID string, opts TriggerOptions) Result

	// Tasks
	ListTasks(ctx context.Context, dagID string) Result
	GetTask(ctx context.Context, dagID, taskID string) Result
	ListTaskInstances(ctx context.Context, dagID, runID string, page Page, filters Filters) Result
	GetTaskInstance(ctx context.Context, dagID, runID, taskID string) Result

	// Assets (datasets on 2.x)
	ListAssets(ctx context.Context, page Page, filters Filters) Result

	// Variables and connections; secret values are redacted.
	ListVariables(ctx context.Context, page Page) Result
	GetVariable(ctx context.Context, key string) Result
	SetVariable(ctx context.Context, key, value, description string) Result
	DeleteVariable(ctx context.Context, key string) Result
	ListConnections(ctx context.Context, page Page) Result

	// Pools
	ListPools(ctx context.Context, page Page) Result
	GetPool(ctx context.Context, name string) Result

	// Server
	ListDAGWarnings(ctx context.Context, page Page) Result
	ListImportErrors(ctx context.Context, page Page) Result
	ListPlugins(ctx context.Context, page Page) Result
	ListProviders(ctx context.Context) Result
	GetVersion(ctx context.Context) Result
	GetConfig(ctx context.Context) Result
	GetHealth(ctx context.Context) Result
}
