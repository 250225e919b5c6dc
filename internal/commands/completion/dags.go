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

package completion

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/airflow/normalize"
	"github.com/tombee/flowgate/internal/commands/shared"
)

const (
	dagCacheTTL   = 5 * time.Second
	serverTimeout = 2 * time.Second
	maxDAGIDs     = 100
)

type dagCacheEntry struct {
	ids       []string
	expiresAt time.Time
}

var (
	dagCache   *dagCacheEntry
	dagCacheMu sync.Mutex
)

// getDAGIDs returns workflow identifiers from the configured server, cached
// for dagCacheTTL.
func getDAGIDs() ([]string, error) {
	dagCacheMu.Lock()
	defer dagCacheMu.Unlock()

	if dagCache != nil && time.Now().Before(dagCache.expiresAt) {
		return dagCache.ids, nil
	}

	ids, err := fetchDAGIDs()
	if err != nil {
		return nil, err
	}
	dagCache = &dagCacheEntry{ids: ids, expiresAt: time.Now().Add(dagCacheTTL)}
	return ids, nil
}

func fetchDAGIDs() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), serverTimeout)
	defer cancel()

	// Completion output is parsed by the shell; logs are dropped.
	rt, err := shared.NewRuntime(io.Discard)
	if err != nil {
		return nil, err
	}
	adapter, err := rt.Factory.Create(ctx, rt.Target)
	if err != nil {
		return nil, err
	}

	result := adapter.ListDAGs(ctx, api.Page{Limit: maxDAGIDs}, nil)
	if normalize.IsError(result) {
		return nil, nil
	}
	dags, _ := result["dags"].([]any)

	ids := make([]string, 0, len(dags))
	for _, d := range dags {
		dag, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := dag["dag_id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// resetCache clears cached server lookups.
func resetCache() {
	dagCacheMu.Lock()
	dagCache = nil
	dagCacheMu.Unlock()
}
