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

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format 'text', got %q", cfg.Format)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantLevel  string
		wantFormat Format
		wantSource bool
	}{
		{"defaults", map[string]string{}, "info", FormatText, false},
		{"LOG_LEVEL case insensitive", map[string]string{"LOG_LEVEL": "DEBUG"}, "debug", FormatText, false},
		{"LOG_FORMAT json", map[string]string{"LOG_FORMAT": "json"}, "info", FormatJSON, false},
		{"FLOWGATE_DEBUG wins", map[string]string{"FLOWGATE_DEBUG": "1", "LOG_LEVEL": "error"}, "debug", FormatText, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"FLOWGATE_DEBUG", "LOG_LEVEL", "LOG_FORMAT"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := FromEnv()
			if cfg.Level != tt.wantLevel {
				t.Errorf("level = %q, want %q", cfg.Level, tt.wantLevel)
			}
			if cfg.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", cfg.Format, tt.wantFormat)
			}
			if cfg.AddSource != tt.wantSource {
				t.Errorf("add source = %v, want %v", cfg.AddSource, tt.wantSource)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (&Config{Level: "debug", Format: FormatJSON}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&Config{Level: "loud"}).Validate(); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := (&Config{Level: "info", Format: "xml"}).Validate(); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithTarget(logger, "http://airflow:8080", "v2").Info("detected")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry[BaseURLKey] != "http://airflow:8080" {
		t.Errorf("base_url = %v", entry[BaseURLKey])
	}
	if entry[DialectKey] != "v2" {
		t.Errorf("dialect = %v", entry[DialectKey])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTrace_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "debug", Output: &buf})
	Trace(logger, "body", slog.String("payload", "x"))
	if buf.Len() != 0 {
		t.Errorf("trace entry emitted at debug level: %s", buf.String())
	}

	logger = New(&Config{Level: "trace", Output: &buf})
	Trace(logger, "body", slog.String("payload", "x"))
	if !strings.Contains(buf.String(), "payload=x") {
		t.Errorf("expected trace entry, got %q", buf.String())
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "[REDACTED]" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("eyJhbGciOiJIUzI1NiJ9.abcd"); got != "...abcd" {
		t.Errorf("SanitizeToken(long) = %q", got)
	}
	if got := SanitizeSecret("hunter2"); got != "[REDACTED]" {
		t.Errorf("SanitizeSecret = %q", got)
	}
}
