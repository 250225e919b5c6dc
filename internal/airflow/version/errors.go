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
	"fmt"
)

// Reason classifies why detection failed.
type Reason string

const (
	// ReasonEmptyVersion means a version endpoint answered without a version.
	ReasonEmptyVersion Reason = "empty_version"
	// ReasonUnreachable means no candidate answered usefully; LastErr holds
	// the last transport or HTTP failure.
	ReasonUnreachable Reason = "unreachable"
	// ReasonNotFound means every candidate answered 404.
	ReasonNotFound Reason = "not_found"
	// ReasonInvalidVersion means the reported version has no leading numeral.
	ReasonInvalidVersion Reason = "invalid_version"
	// ReasonUnsupportedMajor means the major version is neither 2 nor 3.
	ReasonUnsupportedMajor Reason = "unsupported_major"
)

// DetectionError reports that no dialect could be confirmed for a server.
// It is fatal to adapter construction.
type DetectionError struct {
	BaseURL string
	Reason  Reason
	// Version is the offending version string for invalid/unsupported.
	Version string
	LastErr error
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	switch e.Reason {
	case ReasonEmptyVersion:
		return fmt.Sprintf("could not detect API version at %s: server reported an empty version string", e.BaseURL)
	case ReasonNotFound:
		return fmt.Sprintf("could not detect API version at %s: every version endpoint returned 404", e.BaseURL)
	case ReasonInvalidVersion:
		return fmt.Sprintf("could not detect API version at %s: cannot parse version %q", e.BaseURL, e.Version)
	case ReasonUnsupportedMajor:
		return fmt.Sprintf("could not detect API version at %s: unsupported major version in %q (supported: 2, 3)", e.BaseURL, e.Version)
	default:
		return fmt.Sprintf("could not detect API version at %s: no version endpoint reachable (last error: %v)", e.BaseURL, e.LastErr)
	}
}

// Unwrap returns the last probe failure, if any.
func (e *DetectionError) Unwrap() error { return e.LastErr }

// IsUserVisible implements errors.UserVisibleError.
func (e *DetectionError) IsUserVisible() bool { return true }

// UserMessage implements errors.UserVisibleError.
func (e *DetectionError) UserMessage() string { return e.Error() }

// Suggestion implements errors.UserVisibleError.
func (e *DetectionError) Suggestion() string {
	switch e.Reason {
	case ReasonUnreachable:
		return "Check AIRFLOW_API_URL and that the server is running"
	case ReasonNotFound:
		return "AIRFLOW_API_URL should be the server root, without /api/v1 or /api/v2"
	case ReasonUnsupportedMajor, ReasonInvalidVersion:
		return "flowgate supports servers reporting 2.x or 3.x"
	default:
		return "Check the server's /api/v1/version or /api/v2/version response"
	}
}
