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

package api

import (
	"context"
	"fmt"
	"sort"

	flowerrors "github.com/tombee/flowgate/pkg/errors"
)

// Param types.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Param describes one operation argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Operation is one entry of the uniform operation catalog. The MCP server
// registers a tool per operation and the CLI "call" command dispatches
// through the same table.
type Operation struct {
	// Name is the tool name (e.g. "list_dags").
	Name string

	Description string

	// Category groups related operations (e.g. "dags", "runs", "server").
	Category string

	// Tags classify operations ("read", "write", "paginated", "destructive").
	Tags []string

	Params []Param

	call func(ctx context.Context, a Adapter, args Args) Result
}

// ReadOnly reports whether the operation changes nothing on the server.
func (op Operation) ReadOnly() bool {
	return op.HasTag("read")
}

// HasTag reports whether op carries tag.
func (op Operation) HasTag(tag string) bool {
	for _, t := range op.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Invoke checks required arguments and runs the operation against a.
// Missing arguments are the only Go error; remote failures are results.
func (op Operation) Invoke(ctx context.Context, a Adapter, args Args) (Result, error) {
	for _, p := range op.Params {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok || args.String(p.Name) == "" {
			return nil, &flowerrors.ValidationError{
				Field:   p.Name,
				Message: fmt.Sprintf("%s requires %s", op.Name, p.Name),
				Hint:    p.Description,
			}
		}
	}
	return op.call(ctx, a, args), nil
}

var (
	pageParams = []Param{
		{Name: "limit", Type: TypeInteger, Description: "Maximum number of items to return (default 100)"},
		{Name: "offset", Type: TypeInteger, Description: "Number of items to skip"},
	}
	filterParam = Param{Name: "filters", Type: TypeObject, Description: "Extra query parameters forwarded to the server, e.g. {\"state\": \"failed\"}"}
	dagIDParam  = Param{Name: "dag_id", Type: TypeString, Description: "Workflow (DAG) identifier", Required: true}
	runIDParam  = Param{Name: "dag_run_id", Type: TypeString, Description: "Run identifier", Required: true}
)

func withPage(params ...Param) []Param {
	return append(append([]Param{}, params...), pageParams...)
}

var catalog = []Operation{
	{
		Name:        "list_dags",
		Description: "List workflows (DAGs) with their schedule and paused state",
		Category:    "dags",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(filterParam),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListDAGs(ctx, args.Page(), args.Filters())
		},
	},
	{
		Name:        "get_dag",
		Description: "Get one workflow's details",
		Category:    "dags",
		Tags:        []string{"read"},
		Params:      []Param{dagIDParam},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetDAG(ctx, args.String("dag_id"))
		},
	},
	{
		Name:        "get_dag_source",
		Description: "Get the source code of a workflow definition file",
		Category:    "dags",
		Tags:        []string{"read"},
		Params:      []Param{dagIDParam},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetDAGSource(ctx, args.String("dag_id"))
		},
	},
	{
		Name:        "pause_dag",
		Description: "Pause or unpause a workflow",
		Category:    "dags",
		Tags:        []string{"write"},
		Params: []Param{
			dagIDParam,
			{Name: "is_paused", Type: TypeBoolean, Description: "true to pause, false to unpause (default true)"},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.SetDAGPaused(ctx, args.String("dag_id"), args.Bool("is_paused", true))
		},
	},
	{
		Name:        "get_dag_stats",
		Description: "Count runs per state for the given workflows (all workflows when empty)",
		Category:    "dags",
		Tags:        []string{"read"},
		Params: []Param{
			{Name: "dag_ids", Type: TypeArray, Description: "Workflow identifiers"},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetDAGStats(ctx, args.StringSlice("dag_ids"))
		},
	},
	{
		Name:        "list_dag_runs",
		Description: "List runs of a workflow, or of every workflow when dag_id is empty",
		Category:    "runs",
		Tags:        []string{"read", "paginated"},
		Params: withPage(
			Param{Name: "dag_id", Type: TypeString, Description: "Workflow identifier; empty for all workflows"},
			filterParam,
		),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListDAGRuns(ctx, args.String("dag_id"), args.Page(), args.Filters())
		},
	},
	{
		Name:        "get_dag_run",
		Description: "Get one run of a workflow",
		Category:    "runs",
		Tags:        []string{"read"},
		Params:      []Param{dagIDParam, runIDParam},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetDAGRun(ctx, args.String("dag_id"), args.String("dag_run_id"))
		},
	},
	{
		Name:        "trigger_dag_run",
		Description: "Start a new run of a workflow",
		Category:    "runs",
		Tags:        []string{"write"},
		Params: []Param{
			dagIDParam,
			{Name: "dag_run_id", Type: TypeString, Description: "Run identifier; generated by the server when empty"},
			{Name: "logical_date", Type: TypeString, Description: "RFC 3339 logical date"},
			{Name: "conf", Type: TypeObject, Description: "Run configuration"},
			{Name: "note", Type: TypeString, Description: "Note attached to the run"},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.TriggerDAGRun(ctx, args.String("dag_id"), TriggerOptions{
				RunID:       args.String("dag_run_id"),
				LogicalDate: args.String("logical_date"),
				Conf:        args.Object("conf"),
				Note:        args.String("note"),
			})
		},
	},
	{
		Name:        "list_tasks",
		Description: "List the tasks of a workflow",
		Category:    "tasks",
		Tags:        []string{"read"},
		Params:      []Param{dagIDParam},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListTasks(ctx, args.String("dag_id"))
		},
	},
	{
		Name:        "get_task",
		Description: "Get one task of a workflow",
		Category:    "tasks",
		Tags:        []string{"read"},
		Params: []Param{
			dagIDParam,
			{Name: "task_id", Type: TypeString, Description: "Task identifier", Required: true},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetTask(ctx, args.String("dag_id"), args.String("task_id"))
		},
	},
	{
		Name:        "list_task_instances",
		Description: "List task instances of a run",
		Category:    "tasks",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(dagIDParam, runIDParam, filterParam),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListTaskInstances(ctx, args.String("dag_id"), args.String("dag_run_id"), args.Page(), args.Filters())
		},
	},
	{
		Name:        "get_task_instance",
		Description: "Get one task instance of a run",
		Category:    "tasks",
		Tags:        []string{"read"},
		Params: []Param{
			dagIDParam,
			runIDParam,
			{Name: "task_id", Type: TypeString, Description: "Task identifier", Required: true},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetTaskInstance(ctx, args.String("dag_id"), args.String("dag_run_id"), args.String("task_id"))
		},
	},
	{
		Name:        "list_assets",
		Description: "List data assets (datasets on 2.x servers) and the workflows they schedule",
		Category:    "assets",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(filterParam),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListAssets(ctx, args.Page(), args.Filters())
		},
	},
	{
		Name:        "list_variables",
		Description: "List variables; values of secret-looking keys are masked",
		Category:    "variables",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListVariables(ctx, args.Page())
		},
	},
	{
		Name:        "get_variable",
		Description: "Get one variable; secret-looking values are masked",
		Category:    "variables",
		Tags:        []string{"read"},
		Params: []Param{
			{Name: "key", Type: TypeString, Description: "Variable key", Required: true},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetVariable(ctx, args.String("key"))
		},
	},
	{
		Name:        "set_variable",
		Description: "Create a variable",
		Category:    "variables",
		Tags:        []string{"write"},
		Params: []Param{
			{Name: "key", Type: TypeString, Description: "Variable key", Required: true},
			{Name: "value", Type: TypeString, Description: "Variable value", Required: true},
			{Name: "description", Type: TypeString, Description: "Variable description"},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.SetVariable(ctx, args.String("key"), args.String("value"), args.String("description"))
		},
	},
	{
		Name:        "delete_variable",
		Description: "Delete a variable",
		Category:    "variables",
		Tags:        []string{"write", "destructive"},
		Params: []Param{
			{Name: "key", Type: TypeString, Description: "Variable key", Required: true},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.DeleteVariable(ctx, args.String("key"))
		},
	},
	{
		Name:        "list_connections",
		Description: "List connections; passwords and extras are masked",
		Category:    "connections",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListConnections(ctx, args.Page())
		},
	},
	{
		Name:        "list_pools",
		Description: "List worker slot pools",
		Category:    "pools",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListPools(ctx, args.Page())
		},
	},
	{
		Name:        "get_pool",
		Description: "Get one pool",
		Category:    "pools",
		Tags:        []string{"read"},
		Params: []Param{
			{Name: "pool_name", Type: TypeString, Description: "Pool name", Required: true},
		},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetPool(ctx, args.String("pool_name"))
		},
	},
	{
		Name:        "list_dag_warnings",
		Description: "List workflow warnings",
		Category:    "server",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListDAGWarnings(ctx, args.Page())
		},
	},
	{
		Name:        "list_import_errors",
		Description: "List workflow files that failed to import",
		Category:    "server",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListImportErrors(ctx, args.Page())
		},
	},
	{
		Name:        "list_plugins",
		Description: "List installed plugins",
		Category:    "server",
		Tags:        []string{"read", "paginated"},
		Params:      withPage(),
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListPlugins(ctx, args.Page())
		},
	},
	{
		Name:        "list_providers",
		Description: "List installed provider packages",
		Category:    "server",
		Tags:        []string{"read"},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.ListProviders(ctx)
		},
	},
	{
		Name:        "get_version",
		Description: "Get the server version",
		Category:    "server",
		Tags:        []string{"read"},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetVersion(ctx)
		},
	},
	{
		Name:        "get_config",
		Description: "Get the server configuration (if the server exposes it)",
		Category:    "server",
		Tags:        []string{"read"},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetConfig(ctx)
		},
	},
	{
		Name:        "get_health",
		Description: "Get scheduler and metadatabase health",
		Category:    "server",
		Tags:        []string{"read"},
		call: func(ctx context.Context, a Adapter, args Args) Result {
			return a.GetHealth(ctx)
		},
	},
}

// Operations returns the catalog sorted by name.
func Operations() []Operation {
	out := make([]Operation, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds an operation by name.
func Lookup(name string) (Operation, bool) {
	for _, op := range catalog {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}
