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

// Package v1 adapts servers that speak the older /api/v1 dialect (2.x) to
// the uniform operation surface.
package v1

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/airflow/client"
	"github.com/tombee/flowgate/internal/airflow/normalize"
	"github.com/tombee/flowgate/internal/airflow/version"
)

// Adapter implements api.Adapter for the /api/v1 dialect.
type Adapter struct {
	*api.BaseAdapter
}

var _ api.Adapter = (*Adapter)(nil)

// New binds an adapter to a dialect and call helper.
func New(dialect version.Dialect, c *client.Client) *Adapter {
	return &Adapter{BaseAdapter: api.NewBaseAdapter(dialect, c)}
}

// ListDAGs implements api.Adapter.
func (a *Adapter) ListDAGs(ctx context.Context, page api.Page, filters api.Filters) api.Result {
	return a.Fetch(ctx, "/dags", filters.Apply(page.Query()))
}

// GetDAG implements api.Adapter.
func (a *Adapter) GetDAG(ctx context.Context, dagID string) api.Result {
	return a.Fetch(ctx, api.Path("dags", dagID), nil)
}

// GetDAGSource resolves the DAG's file_token first; /dagSources is keyed by
// token, not by DAG id, in this dialect.
func (a *Adapter) GetDAGSource(ctx context.Context, dagID string) api.Result {
	dag, err := a.Client().Get(ctx, api.Path("dags", dagID), nil)
	if err != nil {
		var rcErr *client.RemoteCallError
		if errors.As(err, &rcErr) && rcErr.IsNotFound() {
			return normalize.NotFound("dag", dagID)
		}
		return normalize.FromError(err)
	}

	token, _ := dag["file_token"].(string)
	if token == "" {
		return api.Result{
			"dag_id":           dagID,
			"source_available": false,
			"message":          "the server did not return a file_token for this DAG",
		}
	}

	source := a.Fetch(ctx, api.Path("dagSources", token), nil)
	if normalize.IsError(source) {
		return source
	}
	source["dag_id"] = dagID
	return source
}

// SetDAGPaused implements api.Adapter.
func (a *Adapter) SetDAGPaused(ctx context.Context, dagID string, paused bool) api.Result {
	query := url.Values{"update_mask": {"is_paused"}}
	return a.Send(ctx, http.MethodPatch, api.Path("dags", dagID), query, map[string]any{"is_paused": paused})
}

// GetDAGStats has no 2.x endpoint.
func (a *Adapter) GetDAGStats(ctx context.Context, dagIDs []string) api.Result {
	return a.Unsupported("get_dag_stats",
		"run statistics are only available on 3.x servers",
		"list_dag_runs")
}

// ListDAGRuns implements api.Adapter.
func (a *Adapter) ListDAGRuns(ctx context.Context, dagID string, page api.Page, filters api.Filters) api.Result {
	if dagID == "" {
		dagID = "~"
	}
	return a.Fetch(ctx, api.Path("dags", dagID, "dagRuns"), filters.Apply(page.Query()))
}

// GetDAGRun implements api.Adapter.
func (a *Adapter) GetDAGRun(ctx context.Context, dagID, runID string) api.Result {
	return a.Fetch(ctx, api.Path("dags", dagID, "dagRuns", runID), nil)
}

// TriggerDAGRun omits logical_date unless one is given; 2.x servers
// default it to now.
func (a *Adapter) TriggerDAGRun(ctx context.Context, dagID string, opts api.TriggerOptions) api.Result {
	body := map[string]any{"conf": confOrEmpty(opts.Conf)}
	if opts.RunID != "" {
		body["dag_run_id"] = opts.RunID
	}
	if opts.LogicalDate != "" {
		body["logical_date"] = opts.LogicalDate
	}
	if opts.Note != "" {
		body["note"] = opts.Note
	}
	return a.Send(ctx, http.MethodPost, api.Path("dags", dagID, "dagRuns"), nil, body)
}

// ListTasks implements api.Adapter.
func (a *Adapter) ListTasks(ctx context.Context, dagID string) api.Result {
	return a.Fetch(ctx, api.Path("dags", dagID, "tasks"), nil)
}

// GetTask implements api.Adapter.
func (a *Adapter) GetTask(ctx context.Context, dagID, taskID string) api.Result {
	return a.Fetch(ctx, api.Path("dags", dagID, "tasks", taskID), nil)
}

// ListTaskInstances implements api.Adapter.
func (a *Adapter) ListTaskInstances(ctx context.Context, dagID, runID string, page api.Page, filters api.Filters) api.Result {
	return a.Fetch(ctx, api.Path("dags", dagID, "dagRuns", runID, "taskInstances"), filters.Apply(page.Query()))
}

// GetTaskInstance implements api.Adapter.
func (a *Adapter) GetTaskInstance(ctx context.Context, dagID, runID, taskID string) api.Result {
	return a.Fetch(ctx, api.Path("dags", dagID, "dagRuns", runID, "taskInstances", taskID), nil)
}

// ListAssets reads /datasets and renames it to the assets shape.
func (a *Adapter) ListAssets(ctx context.Context, page api.Page, filters api.Filters) api.Result {
	result, err := a.Client().Get(ctx, "/datasets", filters.Apply(page.Query()))
	if err != nil {
		var rcErr *client.RemoteCallError
		if errors.As(err, &rcErr) && rcErr.IsNotFound() {
			return a.Unsupported("list_assets",
				"this server does not expose datasets",
				"list_dags")
		}
		return normalize.FromError(err)
	}
	return normalize.RenameKeys(result, "datasets", "assets", map[string]string{
		"consuming_dags": "scheduled_dags",
	})
}

// ListVariables implements api.Adapter.
func (a *Adapter) ListVariables(ctx context.Context, page api.Page) api.Result {
	result := a.Fetch(ctx, "/variables", page.Query())
	return normalize.RedactEach(result, "variables", normalize.RedactVariable)
}

// GetVariable implements api.Adapter.
func (a *Adapter) GetVariable(ctx context.Context, key string) api.Result {
	return normalize.RedactVariable(a.Fetch(ctx, api.Path("variables", key), nil))
}

// SetVariable implements api.Adapter.
func (a *Adapter) SetVariable(ctx context.Context, key, value, description string) api.Result {
	body := map[string]any{"key": key, "value": value}
	if description != "" {
		body["description"] = description
	}
	return normalize.RedactVariable(a.Send(ctx, http.MethodPost, "/variables", nil, body))
}

// DeleteVariable implements api.Adapter.
func (a *Adapter) DeleteVariable(ctx context.Context, key string) api.Result {
	result := a.Send(ctx, http.MethodDelete, api.Path("variables", key), nil, nil)
	if normalize.IsError(result) {
		return result
	}
	return api.Result{"deleted": true, "key": key}
}

// ListConnections implements api.Adapter.
func (a *Adapter) ListConnections(ctx context.Context, page api.Page) api.Result {
	result := a.Fetch(ctx, "/connections", page.Query())
	return normalize.RedactEach(result, "connections", normalize.RedactConnection)
}

// ListPools implements api.Adapter.
func (a *Adapter) ListPools(ctx context.Context, page api.Page) api.Result {
	return a.Fetch(ctx, "/pools", page.Query())
}

// GetPool implements api.Adapter.
func (a *Adapter) GetPool(ctx context.Context, name string) api.Result {
	return a.Fetch(ctx, api.Path("pools", name), nil)
}

// ListDAGWarnings implements api.Adapter.
func (a *Adapter) ListDAGWarnings(ctx context.Context, page api.Page) api.Result {
	return a.Fetch(ctx, "/dagWarnings", page.Query())
}

// ListImportErrors implements api.Adapter.
func (a *Adapter) ListImportErrors(ctx context.Context, page api.Page) api.Result {
	return a.Fetch(ctx, "/importErrors", page.Query())
}

// ListPlugins implements api.Adapter.
func (a *Adapter) ListPlugins(ctx context.Context, page api.Page) api.Result {
	return a.Fetch(ctx, "/plugins", page.Query())
}

// ListProviders implements api.Adapter.
func (a *Adapter) ListProviders(ctx context.Context) api.Result {
	return a.Fetch(ctx, "/providers", nil)
}

// GetVersion implements api.Adapter.
func (a *Adapter) GetVersion(ctx context.Context) api.Result {
	return a.Fetch(ctx, "/version", nil)
}

// GetConfig implements api.Adapter.
func (a *Adapter) GetConfig(ctx context.Context) api.Result {
	return a.Fetch(ctx, "/config", nil)
}

// GetHealth implements api.Adapter.
func (a *Adapter) GetHealth(ctx context.Context) api.Result {
	return a.Fetch(ctx, "/health", nil)
}

func confOrEmpty(conf map[string]any) map[string]any {
	if conf == nil {
		return map[string]any{}
	}
	return conf
}
