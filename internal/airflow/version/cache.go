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
	"strings"
	"sync"
)

// Cache remembers the detected dialect per base URL. It is owned by whoever
// builds adapters, so tests can hold their own instance and Clear it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Dialect
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Dialect)}
}

// Get returns the cached dialect for baseURL.
func (c *Cache) Get(baseURL string) (Dialect, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[cacheKey(baseURL)]
	return d, ok
}

// Set stores d for baseURL, replacing any earlier entry.
func (c *Cache) Set(baseURL string, d Dialect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]Dialect)
	}
	c.entries[cacheKey(baseURL)] = d
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Dialect)
}

// Len reports the number of cached base URLs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// "http://host:8080/" and "http://host:8080" are the same server.
func cacheKey(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}
