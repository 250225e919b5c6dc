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

// Package version detects which API dialect an orchestration server speaks
// and caches the answer per base URL.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed server version. Only Major drives behavior; the rest is
// kept for display.
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// Servers report versions like "2.9.0", "3.0.0rc1", "2.10.5+astro.1" or
// "2.9.0 (build 42)". Only the leading numeral has to be present; minor and
// patch are read when they follow, and anything after is kept as Suffix.
var versionRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(.*)$`)

// Parse parses a server-reported version string.
func Parse(s string) (*Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty version string")
	}

	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("invalid version format: %s", s)
	}

	v := &Version{Suffix: matches[4]}
	var err error
	if v.Major, err = strconv.Atoi(matches[1]); err != nil {
		return nil, fmt.Errorf("invalid major version in %s: %w", s, err)
	}
	if matches[2] != "" {
		v.Minor, _ = strconv.Atoi(matches[2])
	}
	if matches[3] != "" {
		v.Patch, _ = strconv.Atoi(matches[3])
	}
	return v, nil
}

// String returns the normalized form of the version.
func (v *Version) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Suffix)
}

// Supported major versions.
const (
	MajorLegacy  = 2
	MajorCurrent = 3
)

// Dialect is the API dialect a server speaks, derived once per base URL.
type Dialect struct {
	// Major is 2 (the /api/v1 dialect) or 3 (the /api/v2 dialect).
	Major int
	// Version is the string the server reported.
	Version string
}

// APIPrefix returns the path prefix for the dialect's REST API.
func (d Dialect) APIPrefix() string {
	if d.Major == MajorCurrent {
		return "/api/v2"
	}
	return "/api/v1"
}

// Name returns "v1" or "v2", matching the API prefix. The zero Dialect,
// left by a failed detection, is "unknown".
func (d Dialect) Name() string {
	if d.Major == 0 {
		return "unknown"
	}
	return strings.TrimPrefix(d.APIPrefix(), "/api/")
}

// String implements fmt.Stringer.
func (d Dialect) String() string {
	return fmt.Sprintf("%s (server %s)", d.Name(), d.Version)
}
