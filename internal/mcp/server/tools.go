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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/flowgate/internal/airflow/api"
	"github.com/tombee/flowgate/internal/airflow/normalize"
	"github.com/tombee/flowgate/internal/log"
	"github.com/tombee/flowgate/internal/metrics"
	flowerrors "github.com/tombee/flowgate/pkg/errors"
)

var tracer = otel.Tracer("github.com/tombee/flowgate/internal/mcp/server")

// registerTools adds one MCP tool per operation. In read-only mode tools
// that change server state are skipped entirely.
func (s *Server) registerTools(ops []api.Operation, readOnly bool) {
	for _, op := range ops {
		if readOnly && !op.ReadOnly() {
			s.logger.Debug("skipping mutating tool in read-only mode", slog.String(log.OperationKey, op.Name))
			continue
		}
		s.mcpServer.AddTool(buildTool(op), s.handleOperation(op))
		s.tools = append(s.tools, op.Name)
	}
	s.logger.Debug("registered tools", slog.Int("count", len(s.tools)), slog.Bool("read_only", readOnly))
}

// buildTool converts an operation's parameter list into an MCP tool schema.
func buildTool(op api.Operation) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(op.Description),
		mcp.WithReadOnlyHintAnnotation(op.ReadOnly()),
		mcp.WithDestructiveHintAnnotation(op.HasTag("destructive")),
	}

	for _, p := range op.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}

		switch p.Type {
		case api.TypeInteger:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case api.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		case api.TypeArray:
			props = append(props, mcp.Items(map[string]any{"type": "string"}))
			opts = append(opts, mcp.WithArray(p.Name, props...))
		case api.TypeObject:
			opts = append(opts, mcp.WithObject(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}

	return mcp.NewTool(op.Name, opts...)
}

// handleOperation returns the tool handler for op. Every outcome, including
// remote failures, is reported as a tool result rather than a protocol error.
func (s *Server) handleOperation(op api.Operation) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		logger := s.logger.With(slog.String(log.OperationKey, op.Name))

		if !s.rateLimiter.Allow(!op.ReadOnly()) {
			metrics.RecordRateLimited(op.Name)
			logger.Warn("tool call rate limited")
			return errorResponse("Rate limit exceeded. Please try again later."), nil
		}

		ctx, span := tracer.Start(ctx, "tool "+op.Name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", op.Name)),
		)
		defer span.End()

		result, err := s.invoke(ctx, op, api.Args(request.GetArguments()))
		ok := err == nil && !normalize.IsError(result)
		metrics.RecordToolCall(op.Name, ok, time.Since(start))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("tool call failed", slog.String("error", err.Error()))
			return errorResponse(userMessage(err)), nil
		}
		if !ok {
			span.SetStatus(codes.Error, fmt.Sprint(result["error"]))
		}

		logger.Debug("tool call completed",
			slog.Bool("ok", ok),
			slog.Int64(log.DurationKey, time.Since(start).Milliseconds()))

		return resultResponse(result, !ok)
	}
}

func (s *Server) invoke(ctx context.Context, op api.Operation, args api.Args) (api.Result, error) {
	adapter, err := s.getAdapter(ctx)
	if err != nil {
		return nil, err
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("airflow.dialect", adapter.Dialect().Name()))
	return op.Invoke(ctx, adapter, args)
}

// userMessage renders err with its suggestion when it carries one.
func userMessage(err error) string {
	if uv, ok := flowerrors.FindUserVisible(err); ok {
		if hint := uv.Suggestion(); hint != "" {
			return fmt.Sprintf("%s\n\nSuggestion: %s", uv.UserMessage(), hint)
		}
		return uv.UserMessage()
	}
	return err.Error()
}

func resultResponse(result api.Result, isError bool) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	res := textResponse(string(data))
	res.IsError = isError
	return res, nil
}

func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
