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

package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/airflow/auth"
	"github.com/tombee/flowgate/internal/airflow/client"
	"github.com/tombee/flowgate/internal/airflow/normalize"
	"github.com/tombee/flowgate/internal/airflow/version"
)

type request struct {
	method string
	path   string
	query  string
	body   map[string]any
}

// fakeServer answers from a table keyed by "METHOD /path" and records every
// request it saw.
type fakeServer struct {
	routes   map[string]func(w http.ResponseWriter)
	requests []request
}

func newAdapter(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*Adapter, *fakeServer) {
	t.Helper()
	fs := &fakeServer{routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := request{method: r.Method, path: r.URL.EscapedPath(), query: r.URL.RawQuery}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		fs.requests = append(fs.requests, rec)

		assert.Equal(t, "Basic YWlyZmxvdzphaXJmbG93", r.Header.Get("Authorization"))
		if handler, ok := fs.routes[r.Method+" "+r.URL.EscapedPath()]; ok {
			handler(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found","status":404}`))
	}))
	t.Cleanup(srv.Close)

	dialect := version.Dialect{Major: 2, Version: "2.9.0"}
	c := client.New(client.Config{
		BaseURL:     srv.URL,
		APIPrefix:   dialect.APIPrefix(),
		Dialect:     dialect.Name(),
		Credentials: auth.Basic("airflow", "airflow"),
		HTTPClient:  srv.Client(),
	})
	return New(dialect, c), fs
}

func jsonBody(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestListDAGs(t *testing.T) {
	a, fs := newAdapter(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/dags": jsonBody(200, `{"dags":[{"dag_id":"etl"}],"total_entries":1}`),
	})

	got := a.ListDAGs(context.Background(), api.Page{Limit: 10}, api.Filters{"dag_id_pattern": "et"})

	assert.Equal(t, float64(1), got["total_entries"])
	require.Len(t, fs.requests, 1)
	assert.Equal(t, "dag_id_pattern=et&limit=10&offset=0", fs.requests[0].query)
}

func TestGetDAGSource_ViaFileToken(t *testing.T) {
	a, fs := newAdapter(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/dags/etl":                        jsonBody(200, `{"dag_id":"etl","file_token":"Ii9maWxlcy9ldGwucHki"}`),
		"GET /api/v1/dagSources/Ii9maWxlcy9ldGwucHki": jsonBody(200, `{"content":"from airflow import DAG"}`),
	})

	got := a.GetDAGSource(context.Background(), "etl")

	assert.Equal(t, "from airflow import DAG", got["content"])
	assert.Equal(t, "etl", got["dag_id"])
	assert.Len(t, fs.requests, 2)
}

func TestGetDAGSource_NoFileToken(t *testing.T) {
	a, fs := newAdapter(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/dags/etl": jsonBody(200, `{"dag_id":"etl"}`),
	})

	got := a.GetDAGSource(context.Background(), "etl")

	assert.Equal(t, false, got["source_available"])
	assert.Equal(t, "etl", got["dag_id"])
	assert.NotEmpty(t, got["message"])
	assert.Len(t, fs.requests, 1)
}

func TestGetDAGSource_UnknownDAG(t *testing.T) {
	a, _ := newAdapter(t, nil)

	got := a.GetDAGSource(context.Background(), "nope")
	assert.True(t, normalize.IsError(got))
	assert.Equal(t, 404, got["status_code"])
	assert.Equal(t, "not_found", got["kind"])
}

func TestListDAGRuns_AllDAGs(t *testing.T) {
	a, fs := newAdapter(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/dags/~/dagRuns": jsonBody(200, `{"dag_runs":[],"total_entries":0}`),
	})

	got := a.ListDAGRuns(context.Background(), "", api.Page{}, api.Filters{"state": "failed"})

	assert.False(t, normalize.IsError(got))
	assert.Equal(t, "limit=100&offset=0&state=failed", fs.requests[0].query)
}

func TestListAssets_RenamesDatasets(t *testing.T) {
	a, _ := newAdapter(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/datasets": jsonBody(200, `{
			"datasets":[{"uri":"s3://b/a","consuming_dags":[{"dag_id":"etl"}],"producing_tasks":[]}],
			"total_entries":1
		}`),
	})

	got := a.ListAssets(context.Background(), api.Page{}, nil)

	assert.NotContains(t, got, "datasets")
	items, ok := got["assets"].([]any)
	require.True(t, ok)
	item := items[0].(map[string]any)
	assert.NotContains(t, item, "consuming_dags")
	assert.Equal(t, []any{map[string]any{"dag_id": "etl"}}, item["scheduled_dags"])
}

func TestListAssets_NotSupported(t *testing.T) {
	a, _ := newAdapter(t, nil)

	got := a.ListAssets(context.Background(), api.Page{}, nil)

	assert.Equal(t, false, got["supported"])
	assert.Equal(t, "list_dags", got["alternative"])
	assert.Equal(t, "v1", got["api_version"])
}

func TestGetDAGStats_Unsupported(t *testing.T) {
	a, fs := newAdapter(t, nil)

	got := a.GetDAGStats(context.Background(), []string{"etl"})

	assert.Equal(t, false, got["supported"])
	assert.Equal(t, "list_dag_runs", got["alternative"])
	assert.Empty(t, fs.requests)
}

func TestListConnections_Redacted(t *testing.T) {
	a, _ := newAdapter(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/connections": jsonBody(200, `{"connections":[
			{"connection_id":"pg","conn_type":"postgres","login":"u","password":"hunter2","extra":"{\"k\":1}"},
			{"connection_id":"http","conn_type":"http","password":null,"extra":""}
		],"total_entries":2}`),
	})

	got := a.ListConnections(context.Background(), api.Page{})

	conns := got["connections"].([]any)
	pg := conns[0].(map[string]any)
	assert.Equal(t, "***", pg["password"])
	assert.Equal(t, "***", pg["extra"])
	assert.Equal(t, "u", pg["login"])

	plain := conns[1].(map[string]any)
	assert.Contains(t, plain, "password")
	assert.Nil(t, plain["password"])
	assert.Equal(t, "", plain["extra"])
}

func TestVariables_Redacted(t *testing.T) {
	a, _ := newAdapter(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/variables": jsonBody(200, `{"variables":[
			{"key":"slack_token","value":"xoxb"},
			{"key":"env","value":"prod"}
		],"total_entries":2}`),
		"GET /api/v1/variables/db_password": jsonBody(200, `{"key":"db_password","value":"pw"}`),
	})

	list := a.ListVariables(context.Background(), api.Page{})
	vars := list["variables"].([]any)
	assert.Equal(t, "***", vars[0].(map[string]any)["value"])
	assert.Equal(t, "prod", vars[1].(map[string]any)["value"])

	one := a.GetVariable(context.Background(), "db_password")
	assert.Equal(t, "***", one["value"])
	assert.Equal(t, "db_password", one["key"])
}

func TestSetAndDeleteVariable(t *testing.T) {
	a, fs := newAdapter(t, map[string]func(w http.ResponseWriter){
		"POST /api/v1/variables":           jsonBody(200, `{"key":"api_token","value":"abc"}`),
		"DELETE /api/v1/variables/old_key": func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) },
	})

	set := a.SetVariable(context.Background(), "api_token", "abc", "")
	assert.Equal(t, "***", set["value"])
	assert.Equal(t, map[string]any{"key": "api_token", "value": "abc"}, fs.requests[0].body)

	del := a.DeleteVariable(context.Background(), "old_key")
	assert.Equal(t, api.Result{"deleted": true, "key": "old_key"}, del)

	missing := a.DeleteVariable(context.Background(), "ghost")
	assert.True(t, normalize.IsError(missing))
}

func TestTriggerDAGRun_OmitsLogicalDate(t *testing.T) {
	a, fs := newAdapter(t, map[string]func(w http.ResponseWriter){
		"POST /api/v1/dags/etl/dagRuns": jsonBody(200, `{"dag_run_id":"manual__x","state":"queued"}`),
	})

	got := a.TriggerDAGRun(context.Background(), "etl", api.TriggerOptions{Note: "from test"})

	assert.Equal(t, "queued", got["state"])
	body := fs.requests[0].body
	assert.NotContains(t, body, "logical_date")
	assert.Equal(t, map[string]any{}, body["conf"])
	assert.Equal(t, "from test", body["note"])
}

func TestSetDAGPaused(t *testing.T) {
	a, fs := newAdapter(t, map[string]func(w http.ResponseWriter){
		"PATCH /api/v1/dags/etl": jsonBody(200, `{"dag_id":"etl","is_paused":true}`),
	})

	got := a.SetDAGPaused(context.Background(), "etl", true)

	assert.Equal(t, true, got["is_paused"])
	assert.Equal(t, "update_mask=is_paused", fs.requests[0].query)
	assert.Equal(t, map[string]any{"is_paused": true}, fs.requests[0].body)
}

func TestSimplePassThrough(t *testing.T) {
	routes := map[string]func(w http.ResponseWriter){
		"GET /api/v1/dags/etl":                                  jsonBody(200, `{"dag_id":"etl"}`),
		"GET /api/v1/dags/etl/dagRuns/r1":                       jsonBody(200, `{"dag_run_id":"r1"}`),
		"GET /api/v1/dags/etl/tasks":                            jsonBody(200, `{"tasks":[]}`),
		"GET /api/v1/dags/etl/tasks/extract":                    jsonBody(200, `{"task_id":"extract"}`),
		"GET /api/v1/dags/etl/dagRuns/r1/taskInstances":         jsonBody(200, `{"task_instances":[]}`),
		"GET /api/v1/dags/etl/dagRuns/r1/taskInstances/extract": jsonBody(200, `{"task_id":"extract","state":"success"}`),
		"GET /api/v1/pools":                                     jsonBody(200, `{"pools":[]}`),
		"GET /api/v1/pools/default_pool":                        jsonBody(200, `{"name":"default_pool"}`),
		"GET /api/v1/dagWarnings":                               jsonBody(200, `{"dag_warnings":[]}`),
		"GET /api/v1/importErrors":                              jsonBody(200, `{"import_errors":[]}`),
		"GET /api/v1/plugins":                                   jsonBody(200, `{"plugins":[]}`),
		"GET /api/v1/providers":                                 jsonBody(200, `{"providers":[]}`),
		"GET /api/v1/version":                                   jsonBody(200, `{"version":"2.9.0"}`),
		"GET /api/v1/config":                                    jsonBody(200, `{"sections":[]}`),
		"GET /api/v1/health":                                    jsonBody(200, `{"scheduler":{"status":"healthy"}}`),
	}
	a, _ := newAdapter(t, routes)
	ctx := context.Background()

	results := []api.Result{
		a.GetDAG(ctx, "etl"),
		a.GetDAGRun(ctx, "etl", "r1"),
		a.ListTasks(ctx, "etl"),
		a.GetTask(ctx, "etl", "extract"),
		a.ListTaskInstances(ctx, "etl", "r1", api.Page{}, nil),
		a.GetTaskInstance(ctx, "etl", "r1", "extract"),
		a.ListPools(ctx, api.Page{}),
		a.GetPool(ctx, "default_pool"),
		a.ListDAGWarnings(ctx, api.Page{}),
		a.ListImportErrors(ctx, api.Page{}),
		a.ListPlugins(ctx, api.Page{}),
		a.ListProviders(ctx),
		a.GetVersion(ctx),
		a.GetConfig(ctx),
		a.GetHealth(ctx),
	}
	for i, r := range results {
		assert.False(t, normalize.IsError(r), "result %d: %v", i, r)
	}
}

func TestRemoteFailureIsResult(t *testing.T) {
	a, _ := newAdapter(t, map[string]func(w http.ResponseWriter){
		"GET /api/v1/config": jsonBody(403, `{"detail":"Your Airflow administrator chose not to expose the configuration"}`),
	})

	got := a.GetConfig(context.Background())

	assert.Equal(t, "http", got["kind"])
	assert.Equal(t, 403, got["status_code"])
	assert.Contains(t, got["error"], "expose the configuration")
}
