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

// Package normalize holds the helpers that make both API dialects look the
// same to callers: secret redaction, key renaming, and the structured
// results for not-found, unsupported and failed calls.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tombee/flowgate/internal/airflow/client"
)

// RedactionMarker replaces secret values. Keys are never removed.
const RedactionMarker = "***"

// ConnectionSecretFields are redacted on every connection item. "extra" is
// free-form JSON that routinely carries keys and tokens.
var ConnectionSecretFields = []string{"password", "extra"}

// sensitiveKeyFragments mark a variable as secret when its key contains
// any of them, case-insensitively.
var sensitiveKeyFragments = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"credential",
	"private_key",
}

// IsSensitiveKey reports whether a variable key looks like it holds a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Redact returns a shallow copy of item with every non-empty field in fields
// replaced by RedactionMarker. Missing, nil and "" values are left alone.
func Redact(item map[string]any, fields []string) map[string]any {
	if item == nil {
		return nil
	}
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = v
	}
	for _, field := range fields {
		if isEmpty(out[field]) {
			continue
		}
		out[field] = RedactionMarker
	}
	return out
}

// RedactConnection redacts one connection object.
func RedactConnection(item map[string]any) map[string]any {
	return Redact(item, ConnectionSecretFields)
}

// RedactVariable redacts a variable's value when its key looks sensitive.
func RedactVariable(item map[string]any) map[string]any {
	key, _ := item["key"].(string)
	if !IsSensitiveKey(key) {
		return item
	}
	return Redact(item, []string{"value"})
}

// RedactEach applies fn to every object in result[collection]. Non-object
// entries are kept as they are.
func RedactEach(result map[string]any, collection string, fn func(map[string]any) map[string]any) map[string]any {
	items, ok := result[collection].([]any)
	if !ok {
		return result
	}
	redacted := make([]any, len(items))
	for i, raw := range items {
		if item, ok := raw.(map[string]any); ok {
			redacted[i] = fn(item)
			continue
		}
		redacted[i] = raw
	}
	out := copyMap(result)
	out[collection] = redacted
	return out
}

// RenameKeys renames the top-level key from to "to" and, inside every
// object of that collection, each key of nested to its mapped name. Input
// already in the target shape passes through unchanged.
func RenameKeys(result map[string]any, from, to string, nested map[string]string) map[string]any {
	if result == nil {
		return nil
	}
	out := copyMap(result)
	value, ok := out[from]
	if !ok {
		return out
	}
	delete(out, from)

	items, ok := value.([]any)
	if !ok || len(nested) == 0 {
		out[to] = value
		return out
	}

	renamed := make([]any, len(items))
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			renamed[i] = raw
			continue
		}
		next := copyMap(item)
		for oldKey, newKey := range nested {
			if v, ok := next[oldKey]; ok {
				delete(next, oldKey)
				next[newKey] = v
			}
		}
		renamed[i] = next
	}
	out[to] = renamed
	return out
}

// NotFound is the structured fallback for a missing resource.
func NotFound(resource, id string) map[string]any {
	return map[string]any{
		"error":       fmt.Sprintf("%s %q not found", resource, id),
		"kind":        "not_found",
		"status_code": 404,
		"resource":    resource,
		"id":          id,
	}
}

// Unsupported describes a capability the detected dialect lacks. It is a
// normal result, not an error.
func Unsupported(operation, apiVersion, message, alternative string) map[string]any {
	return map[string]any{
		"supported":   false,
		"operation":   operation,
		"api_version": apiVersion,
		"message":     message,
		"alternative": alternative,
	}
}

// FromError turns a failed call into an error-shaped result.
func FromError(err error) map[string]any {
	var rcErr *client.RemoteCallError
	if !errors.As(err, &rcErr) {
		return map[string]any{
			"error": err.Error(),
			"kind":  string(client.KindTransport),
		}
	}

	result := map[string]any{
		"error": rcErr.Error(),
		"kind":  string(rcErr.Kind),
	}
	if rcErr.StatusCode != 0 {
		result["status_code"] = rcErr.StatusCode
	}
	if rcErr.Body != nil {
		result["body"] = rcErr.Body
	}
	return result
}

// IsError reports whether result is error-shaped.
func IsError(result map[string]any) bool {
	_, ok := result["error"]
	return ok
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	}
	return false
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
