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

// Package server exposes the uniform operation catalog as MCP tools served
// over stdio.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/log"
)

// AdapterFunc builds the dialect adapter. It is called on the first tool
// call and again after a failure, so the server can start before the remote
// server is reachable.
type AdapterFunc func(ctx context.Context) (api.Adapter, error)

// Config configures the MCP server.
type Config struct {
	// Name is the server name (default: "flowgate")
	Name string

	// Version is the flowgate version
	Version string

	// Adapter supplies the dialect adapter tools dispatch to. Required.
	Adapter AdapterFunc

	// ReadOnly registers only tools tagged "read".
	ReadOnly bool

	// RateLimit is sustained tool calls per second; zero disables limiting.
	RateLimit float64
	Burst     int

	// Logger must not write to stdout, which carries the protocol.
	Logger *slog.Logger
}

// Server wraps the MCP server and the lazily built adapter.
type Server struct {
	mcpServer   *server.MCPServer
	name        string
	version     string
	rateLimiter *RateLimiter
	logger      *slog.Logger
	tools       []string

	newAdapter AdapterFunc
	mu         sync.Mutex
	adapter    api.Adapter
}

// NewServer creates a server with one tool per catalog operation.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("adapter source is required")
	}
	if cfg.Name == "" {
		cfg.Name = "flowgate"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	mcpServer := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer:   mcpServer,
		name:        cfg.Name,
		version:     cfg.Version,
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.Burst),
		logger:      log.WithComponent(logger, "mcp"),
		newAdapter:  cfg.Adapter,
	}

	s.registerTools(api.Operations(), cfg.ReadOnly)

	return s, nil
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Run serves the MCP protocol on stdin/stdout until ctx is cancelled or
// stdin is closed.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting flowgate MCP server",
		slog.String("version", s.version),
		slog.Int("tools", len(s.tools)))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown logs the stop. Returning from Run is sufficient for mcp-go.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down flowgate MCP server")
	return nil
}

// getAdapter returns the memoized adapter, building it on first use.
// Failures are not memoized.
func (s *Server) getAdapter(ctx context.Context) (api.Adapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adapter != nil {
		return s.adapter, nil
	}
	a, err := s.newAdapter(ctx)
	if err != nil {
		return nil, err
	}
	s.adapter = a
	s.logger.Info("connected to remote server", slog.String(log.DialectKey, a.Dialect().String()))
	return a, nil
}
