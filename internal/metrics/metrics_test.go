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

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		0:   "error",
		200: "2xx",
		204: "2xx",
		404: "4xx",
		503: "5xx",
	}
	for status, want := range tests {
		assert.Equal(t, want, StatusClass(status), "status %d", status)
	}
}

func TestRecordRemoteRequest(t *testing.T) {
	before := testutil.ToFloat64(remoteRequests.WithLabelValues("v2", "GET", "4xx"))
	RecordRemoteRequest("v2", "GET", 404, 10*time.Millisecond)
	after := testutil.ToFloat64(remoteRequests.WithLabelValues("v2", "GET", "4xx"))
	assert.Equal(t, before+1, after)
}

func TestRecordDetection(t *testing.T) {
	before := testutil.ToFloat64(detections.WithLabelValues(DetectionCached))
	RecordDetection(DetectionCached)
	RecordDetection(DetectionCached)
	assert.Equal(t, before+2, testutil.ToFloat64(detections.WithLabelValues(DetectionCached)))
}

func TestRecordToolCall(t *testing.T) {
	before := testutil.ToFloat64(toolCalls.WithLabelValues("list_pools", "rate_limited"))
	RecordRateLimited("list_pools")
	assert.Equal(t, before+1, testutil.ToFloat64(toolCalls.WithLabelValues("list_pools", "rate_limited")))

	RecordToolCall("list_pools", true, time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(toolCalls.WithLabelValues("list_pools", "success")), 1.0)
}

func TestHandler(t *testing.T) {
	RecordTokenExchange(true)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flowgate_token_exchanges_total")
}
