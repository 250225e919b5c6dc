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

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowerrors "github.com/tombee/flowgate/pkg/errors"
)

func tokenServer(t *testing.T, status int, body map[string]any, posts *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != TokenPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if posts != nil {
			*posts++
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCredentials_Apply(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{name: "bearer", creds: Bearer("abc"), want: "Bearer abc"},
		{name: "basic", creds: Basic("airflow", "airflow"), want: "Basic YWlyZmxvdzphaXJmbG93"},
		{name: "none", creds: None(), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://x/api/v1/dags", nil)
			tt.creds.Apply(req)
			assert.Equal(t, tt.want, req.Header.Get("Authorization"))
		})
	}
}

func TestCredentials_StringHidesSecrets(t *testing.T) {
	assert.NotContains(t, Basic("admin", "hunter2").String(), "hunter2")
	assert.NotContains(t, Bearer("supersecrettokenvalue").String(), "supersecret")
	assert.Equal(t, "none", None().String())
}

func TestResolve(t *testing.T) {
	r := &Resolver{AllowDefaultCredentials: true}

	tests := []struct {
		name       string
		major      int
		in         Input
		wantScheme Scheme
		wantToken  string
		wantUser   string
	}{
		{
			name:       "token wins on 2",
			major:      2,
			in:         Input{Token: "tok", Username: "admin", Password: "admin"},
			wantScheme: SchemeBearer,
			wantToken:  "tok",
		},
		{
			name:       "token wins on 3",
			major:      3,
			in:         Input{Token: "tok", Username: "admin", Password: "admin"},
			wantScheme: SchemeBearer,
			wantToken:  "tok",
		},
		{
			name:       "pair on 2 is basic",
			major:      2,
			in:         Input{Username: "admin", Password: "pw"},
			wantScheme: SchemeBasic,
			wantUser:   "admin",
		},
		{
			name:       "nothing on 2 is default pair",
			major:      2,
			wantScheme: SchemeBasic,
			wantUser:   DefaultUsername,
		},
		{
			name:       "nothing on 3 is none",
			major:      3,
			wantScheme: SchemeNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := r.Resolve(context.Background(), "http://unused", tt.major, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, creds.Scheme())
			assert.Equal(t, tt.wantToken, creds.Token())
			assert.Equal(t, tt.wantUser, creds.Username())
		})
	}
}

func TestResolve_DefaultCredentialsDisabled(t *testing.T) {
	r := &Resolver{AllowDefaultCredentials: false}
	creds, err := r.Resolve(context.Background(), "http://unused", 2, Input{})
	require.NoError(t, err)
	assert.Equal(t, SchemeNone, creds.Scheme())
}

func TestResolve_PartialPair(t *testing.T) {
	r := &Resolver{}
	_, err := r.Resolve(context.Background(), "http://unused", 2, Input{Username: "admin"})
	require.Error(t, err)

	var verr *flowerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "password", verr.Field)

	_, err = r.Resolve(context.Background(), "http://unused", 3, Input{Password: "pw"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "username", verr.Field)
}

func TestResolve_ExchangesOnMajor3(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "admin", r.PostForm.Get("username"))
		assert.Equal(t, "admin", r.PostForm.Get("password"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"access_token":"exchanged-token"}`))
	}))
	defer srv.Close()

	r := &Resolver{HTTPClient: srv.Client()}
	creds, err := r.Resolve(context.Background(), srv.URL+"/", 3, Input{Username: "admin", Password: "admin"})
	require.NoError(t, err)

	assert.Equal(t, 1, posts)
	assert.Equal(t, SchemeBearer, creds.Scheme())
	assert.Equal(t, "exchanged-token", creds.Token())
}

func TestExchange_JWTToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	srv := tokenServer(t, http.StatusOK, map[string]any{"access_token": signed}, nil)

	r := &Resolver{HTTPClient: srv.Client()}
	token, err := r.Exchange(context.Background(), srv.URL, "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, signed, token)
}

func TestExchange_Unauthorized(t *testing.T) {
	srv := tokenServer(t, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"}, nil)

	r := &Resolver{HTTPClient: srv.Client()}
	_, err := r.Exchange(context.Background(), srv.URL, "admin", "wrong")
	require.Error(t, err)

	var exErr *ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, http.StatusUnauthorized, exErr.StatusCode)
	assert.Contains(t, exErr.Body, "Invalid credentials")
	assert.Contains(t, exErr.Suggestion(), "AIRFLOW_API_TOKEN")

	uv, ok := flowerrors.FindUserVisible(err)
	require.True(t, ok)
	assert.NotEmpty(t, uv.UserMessage())
}

func TestExchange_MissingAccessToken(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, map[string]any{"token_type": "bearer"}, nil)

	r := &Resolver{HTTPClient: srv.Client()}
	_, err := r.Exchange(context.Background(), srv.URL, "admin", "admin")

	var exErr *ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Zero(t, exErr.StatusCode)
}

func TestExchange_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := &Resolver{}
	_, err := r.Exchange(context.Background(), url, "admin", "admin")

	var exErr *ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Contains(t, exErr.Suggestion(), TokenPath)
}
