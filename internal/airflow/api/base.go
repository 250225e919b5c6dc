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
	"net/http"
	"net/url"
	"strings"

	"github.com/tombee/flowgate/internal/airflow/client"
	"github.com/tombee/flowgate/internal/airflow/normalize"
	"github.com/tombee/flowgate/internal/airflow/version"
)

// BaseAdapter carries what both dialect adapters share: the bound dialect
// and the call helper. Dialect adapters embed it.
type BaseAdapter struct {
	dialect version.Dialect
	client  *client.Client
}

// NewBaseAdapter binds a dialect to a call helper.
func NewBaseAdapter(dialect version.Dialect, c *client.Client) *BaseAdapter {
	return &BaseAdapter{dialect: dialect, client: c}
}

// Dialect implements Adapter.
func (b *BaseAdapter) Dialect() version.Dialect { return b.dialect }

// Client returns the call helper.
func (b *BaseAdapter) Client() *client.Client { return b.client }

// Fetch performs a GET and returns the decoded body or an error result.
func (b *BaseAdapter) Fetch(ctx context.Context, path string, query url.Values) Result {
	return b.Send(ctx, http.MethodGet, path, query, nil)
}

// Send performs a request and returns the decoded body or an error result.
func (b *BaseAdapter) Send(ctx context.Context, method, path string, query url.Values, body any) Result {
	result, err := b.client.Do(ctx, method, path, query, body)
	if err != nil {
		return normalize.FromError(err)
	}
	return result
}

// Unsupported reports that operation has no equivalent in this dialect.
func (b *BaseAdapter) Unsupported(operation, message, alternative string) Result {
	return normalize.Unsupported(operation, b.dialect.Name(), message, alternative)
}

// Path joins escaped segments into an API path: Path("dags", id) is
// "/dags/<escaped id>".
func Path(segments ...string) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteByte('/')
		sb.WriteString(client.Segment(s))
	}
	return sb.String()
}
