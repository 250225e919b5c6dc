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

package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/commands/shared"
	"github.com/tombee/flowgate/internal/mcp/server"
	"github.com/tombee/flowgate/internal/metrics"
	"github.com/tombee/flowgate/internal/tracing"
)

type options struct {
	readOnly    bool
	metricsAddr string
	rateLimit   float64
	burst       int
}

// NewCommand creates the mcp-server command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the operation catalog as MCP tools over stdio",
		Long: `Start the flowgate MCP (Model Context Protocol) server.

Every catalog operation (see 'flowgate tools') becomes one MCP tool. The
remote server's dialect is detected on the first tool call, so the server
starts even when the remote server is not reachable yet.

The server speaks MCP on stdin/stdout; logs go to stderr.

Configuration example for an MCP client:
  {
    "mcpServers": {
      "airflow": {
        "command": "flowgate",
        "args": ["mcp-server", "--read-only"],
        "env": {"AIRFLOW_API_URL": "http://localhost:8080"}
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServer(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.readOnly, "read-only", false, "Only register tools that change nothing on the server")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	cmd.Flags().Float64Var(&opts.rateLimit, "rate-limit", -1, "Sustained tool calls per second, 0 disables (default from config)")
	cmd.Flags().IntVar(&opts.burst, "burst", 0, "Rate limiter burst size (default from config)")

	return cmd
}

func runMCPServer(cmd *cobra.Command, opts options) error {
	rt, err := shared.NewRuntime(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg := rt.Config
	logger := rt.Logger

	if opts.readOnly {
		cfg.Server.ReadOnly = true
	}
	if opts.metricsAddr != "" {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}
	if opts.rateLimit >= 0 {
		cfg.Server.RateLimit = opts.rateLimit
	}
	if opts.burst > 0 {
		cfg.Server.Burst = opts.burst
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	versionStr, _, _ := shared.GetVersion()
	tp, err := tracing.Setup(ctx, tracing.Config{
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		Headers:        cfg.Tracing.Headers,
		SampleRate:     cfg.Tracing.SampleRate,
		ServiceVersion: versionStr,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("trace exporter shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if cfg.Server.MetricsAddr != "" {
		metricsSrv := startMetricsServer(cfg.Server.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	srv, err := server.NewServer(server.Config{
		Name:    "flowgate",
		Version: versionStr,
		Adapter: func(ctx context.Context) (api.Adapter, error) {
			return rt.Factory.Create(ctx, rt.Target)
		},
		ReadOnly:  cfg.Server.ReadOnly,
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	runErr := srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error during shutdown", slog.String("error", err.Error()))
	}

	return runErr
}

// startMetricsServer serves /metrics in the background.
func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}
