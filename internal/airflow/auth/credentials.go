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

// Package auth resolves which credential scheme flowgate presents to an
// orchestration server: a bearer token, HTTP Basic, or nothing. For the newer
// API dialect a username/password pair is exchanged for a bearer token once,
// when the adapter is built.
package auth

import (
	"fmt"
	"net/http"

	"github.com/tombee/flowgate/internal/log"
)

// Scheme identifies the active credential scheme.
type Scheme int

const (
	// SchemeNone sends no Authorization header.
	SchemeNone Scheme = iota
	// SchemeBearer sends "Authorization: Bearer <token>".
	SchemeBearer
	// SchemeBasic sends HTTP Basic authentication.
	SchemeBasic
)

// String returns the scheme name used in logs.
func (s Scheme) String() string {
	switch s {
	case SchemeBearer:
		return "bearer"
	case SchemeBasic:
		return "basic"
	default:
		return "none"
	}
}

// Credentials is a tagged union over the three schemes. The zero value is
// None. Exactly one scheme is active at a time.
type Credentials struct {
	scheme   Scheme
	token    string
	username string
	password string
}

// Bearer returns credentials that send token as a bearer token.
func Bearer(token string) Credentials {
	return Credentials{scheme: SchemeBearer, token: token}
}

// Basic returns HTTP Basic credentials.
func Basic(username, password string) Credentials {
	return Credentials{scheme: SchemeBasic, username: username, password: password}
}

// None returns credentials that add nothing to requests.
func None() Credentials {
	return Credentials{}
}

// Scheme reports the active scheme.
func (c Credentials) Scheme() Scheme { return c.scheme }

// Token returns the bearer token, or "" for other schemes.
func (c Credentials) Token() string { return c.token }

// Username returns the Basic username, or "" for other schemes.
func (c Credentials) Username() string { return c.username }

// Apply sets the Authorization header on req for the active scheme.
func (c Credentials) Apply(req *http.Request) {
	switch c.scheme {
	case SchemeBearer:
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	case SchemeBasic:
		req.SetBasicAuth(c.username, c.password)
	}
}

// String renders the credentials without secrets so they are safe to log.
func (c Credentials) String() string {
	switch c.scheme {
	case SchemeBearer:
		return "bearer(" + log.SanitizeToken(c.token) + ")"
	case SchemeBasic:
		return "basic(" + c.username + ")"
	default:
		return "none"
	}
}
