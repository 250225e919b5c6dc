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

// Package fakeairflow serves a minimal Airflow-compatible REST API for
// command tests. The dialect follows the reported version: 2.x answers under
// /api/v1, 3.x under /api/v2 and issues tokens from /auth/token.
package fakeairflow

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"
)

// Username and Password are the credentials the fake accepts.
const (
	Username = "admin"
	Password = "admin"
	Token    = "fake-jwt"
)

// Response is a canned reply.
type Response struct {
	Status int
	Body   any
}

// Server is a running fake.
type Server struct {
	*httptest.Server

	Version string
	Prefix  string

	mu       sync.Mutex
	routes   map[string]Response
	requests []string
}

// New starts a fake reporting serverVersion. It is closed on test cleanup.
func New(t *testing.T, serverVersion string) *Server {
	t.Helper()

	s := &Server{
		Version: serverVersion,
		Prefix:  "/api/v1",
		routes:  map[string]Response{},
	}
	if strings.HasPrefix(serverVersion, "3") {
		s.Prefix = "/api/v2"
	}

	s.Handle("GET", "/version", Response{Body: map[string]any{"version": serverVersion, "git_version": nil}})
	s.Handle("GET", s.healthPath(), Response{Body: map[string]any{
		"metadatabase": map[string]any{"status": "healthy"},
		"scheduler":    map[string]any{"status": "healthy", "latest_scheduler_heartbeat": "2025-01-01T00:00:00+00:00"},
	}})
	s.Handle("GET", "/dags", Response{Body: map[string]any{
		"dags": []any{
			map[string]any{"dag_id": "etl", "is_paused": false},
			map[string]any{"dag_id": "report", "is_paused": true},
		},
		"total_entries": 2,
	}})
	s.Handle("GET", "/connections", Response{Body: map[string]any{
		"connections": []any{
			map[string]any{"connection_id": "pg", "password": "hunter2", "extra": `{"sslmode":"require"}`},
		},
		"total_entries": 1,
	}})

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) healthPath() string {
	if s.Prefix == "/api/v2" {
		return "/monitor/health"
	}
	return "/health"
}

// Handle sets the reply for method and path. Paths are relative to the
// dialect prefix.
func (s *Server) Handle(method, path string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+s.Prefix+path] = resp
}

// Requests returns "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	resp, ok := s.routes[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if r.Method == http.MethodPost && r.URL.Path == "/auth/token" && s.Prefix == "/api/v2" {
		s.exchange(w, r)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not Found"})
		return
	}
	if strings.HasPrefix(r.URL.Path, s.Prefix+"/") && !strings.HasSuffix(r.URL.Path, "/version") && !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Unauthorized"})
		return
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp.Body)
}

func (s *Server) exchange(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"access_token": Token})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.Prefix == "/api/v2" {
		return r.Header.Get("Authorization") == "Bearer "+Token
	}
	user, pass, ok := r.BasicAuth()
	if ok {
		return (user == Username && pass == Password) || (user == "airflow" && pass == "airflow")
	}
	return r.Header.Get("Authorization") == "Bearer "+Token
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

var configEnv = []string{
	"AIRFLOW_API_URL", "AIRFLOW_API_TOKEN", "AIRFLOW_USERNAME", "AIRFLOW_PASSWORD",
	"AIRFLOW_TIMEOUT", "AIRFLOW_DEFAULT_CREDENTIALS", "AIRFLOW_TLS_INSECURE",
	"LOG_LEVEL", "LOG_FORMAT", "FLOWGATE_DEBUG", "FLOWGATE_READ_ONLY",
	"FLOWGATE_METRICS_ADDR", "FLOWGATE_TRACE_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT",
}

// IsolateEnv hides the developer's flowgate configuration from a test: it
// clears the relevant variables, points XDG_CONFIG_HOME at an empty
// directory, changes into it so no .env file is found and swaps the system
// keychain for an in-memory one.
func IsolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnv {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("FLOWGATE_NON_INTERACTIVE", "true")
	t.Chdir(dir)
	keyring.MockInit()
}
