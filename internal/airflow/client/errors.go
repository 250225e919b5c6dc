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

package client

import (
	"fmt"
)

// Kind classifies a failed remote call.
type Kind string

const (
	// KindTransport covers connection failures, timeouts and cancellations.
	KindTransport Kind = "transport"
	// KindHTTP covers 4xx and 5xx responses.
	KindHTTP Kind = "http"
	// KindDecode covers 2xx responses whose body is not valid JSON.
	KindDecode Kind = "decode"
)

// RemoteCallError describes a single failed call to the orchestration
// server. Operations convert it into an error-shaped result rather than
// returning it.
type RemoteCallError struct {
	Kind   Kind
	Method string
	URL    string

	// StatusCode is zero for transport failures.
	StatusCode int

	// Body is the decoded JSON error body when the server sent one, the raw
	// text otherwise, or nil.
	Body any

	Cause error
}

// Error implements the error interface.
func (e *RemoteCallError) Error() string {
	switch e.Kind {
	case KindHTTP:
		if detail := e.Detail(); detail != "" {
			return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, detail)
		}
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
	case KindDecode:
		return fmt.Sprintf("%s %s: invalid JSON response: %v", e.Method, e.URL, e.Cause)
	default:
		return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Cause)
	}
}

// Unwrap returns the underlying cause.
func (e *RemoteCallError) Unwrap() error { return e.Cause }

// IsNotFound reports whether the server answered 404.
func (e *RemoteCallError) IsNotFound() bool {
	return e.Kind == KindHTTP && e.StatusCode == 404
}

// Detail extracts the server's own explanation from a JSON error body.
// Both dialects use "detail"; the older one also sends "title".
func (e *RemoteCallError) Detail() string {
	body, ok := e.Body.(map[string]any)
	if !ok {
		if s, ok := e.Body.(string); ok && len(s) <= 200 {
			return s
		}
		return ""
	}
	for _, key := range []string{"detail", "title", "message"} {
		switch v := body[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}
