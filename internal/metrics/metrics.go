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

// Package metrics exposes flowgate's Prometheus collectors. Everything is
// registered with the default registry; Handler serves it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// remoteRequests counts calls to the orchestration server
	remoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgate_remote_requests_total",
			Help: "Total requests to the orchestration server by dialect, method and status class",
		},
		[]string{"dialect", "method", "status"},
	)

	// remoteRequestDuration observes round-trip latency
	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowgate_remote_request_duration_seconds",
			Help:    "Latency of requests to the orchestration server",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dialect", "method"},
	)

	// detections counts dialect detection outcomes
	detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgate_dialect_detections_total",
			Help: "Dialect detection outcomes (v1, v2, cached, failed)",
		},
		[]string{"result"},
	)

	// tokenExchanges counts username/password exchanges
	tokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgate_token_exchanges_total",
			Help: "Password-for-token exchanges by outcome",
		},
		[]string{"outcome"},
	)

	// toolCalls counts MCP tool invocations
	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgate_tool_calls_total",
			Help: "MCP tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	// toolCallDuration observes tool-call latency
	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowgate_tool_call_duration_seconds",
			Help:    "Latency of MCP tool calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

// Detection results.
const (
	DetectionV1     = "v1"
	DetectionV2     = "v2"
	DetectionCached = "cached"
	DetectionFailed = "failed"
)

// RecordRemoteRequest records one request. status 0 means the request never
// got a response.
func RecordRemoteRequest(dialect, method string, status int, d time.Duration) {
	remoteRequests.WithLabelValues(dialect, method, StatusClass(status)).Inc()
	remoteRequestDuration.WithLabelValues(dialect, method).Observe(d.Seconds())
}

// RecordDetection increments the detection counter.
func RecordDetection(result string) {
	detections.WithLabelValues(result).Inc()
}

// RecordTokenExchange increments the exchange counter.
func RecordTokenExchange(ok bool) {
	tokenExchanges.WithLabelValues(outcome(ok)).Inc()
}

// RecordToolCall records a tool invocation.
func RecordToolCall(tool string, ok bool, d time.Duration) {
	toolCalls.WithLabelValues(tool, outcome(ok)).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordRateLimited records a tool call rejected by the rate limiter.
func RecordRateLimited(tool string) {
	toolCalls.WithLabelValues(tool, "rate_limited").Inc()
}

// StatusClass maps an HTTP status to "2xx", "4xx" etc, or "error" for 0.
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
