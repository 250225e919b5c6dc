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

package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/tombee/flowgate/internal/airflow"
	airflowversion "github.com/tombee/flowgate/internal/airflow/version"
	"github.com/tombee/flowgate/internal/config"
	"github.com/tombee/flowgate/internal/secrets"
	pkgerrors "github.com/tombee/flowgate/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain", err: errors.New("boom"), want: ExitFailed},
		{name: "exit error", err: NewOperationError("rejected", nil), want: ExitOperationFailed},
		{name: "wrapped exit error", err: fmt.Errorf("ctx: %w", NewInvalidInputError("bad", nil)), want: ExitInvalidInput},
		{name: "config", err: &pkgerrors.ConfigError{Key: "airflow.url", Reason: "bad"}, want: ExitConfigError},
		{name: "validation", err: &pkgerrors.ValidationError{Field: "dag_id", Message: "required"}, want: ExitInvalidInput},
		{
			name: "creation validate stage",
			err:  &airflow.CreationError{Stage: airflow.StageValidate, Cause: &pkgerrors.ValidationError{Message: "x"}},
			want: ExitInvalidInput,
		},
		{
			name: "creation detect stage",
			err: &airflow.CreationError{
				Stage: airflow.StageDetect,
				Cause: &airflowversion.DetectionError{BaseURL: "http://a", Reason: airflowversion.ReasonNotFound},
			},
			want: ExitConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestPrintError_WithSuggestion(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("outer: %w", &pkgerrors.ValidationError{Message: "missing url", Hint: "pass --url"})

	PrintError(&buf, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Error: outer: validation failed: missing url"))
	assert.Contains(t, out, "Suggestion: pass --url")
}

func TestPrintError_Plain(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestEmitJSONError(t *testing.T) {
	var buf bytes.Buffer
	err := &pkgerrors.ConfigError{Key: "airflow.url", Reason: "missing"}

	require.NoError(t, EmitJSONError(&buf, "probe", err))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "probe", got["command"])
	assert.Equal(t, false, got["success"])

	errObj := got["error"].(map[string]any)
	assert.Equal(t, float64(ExitConfigError), errObj["code"])
	assert.Contains(t, errObj["message"], "missing")
	assert.NotEmpty(t, errObj["suggestion"])
}

func TestReadSecret(t *testing.T) {
	got, err := ReadSecret(strings.NewReader("s3cret\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	got, err = ReadSecret(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)
}

func TestIsCIEnvironment(t *testing.T) {
	for _, name := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "JENKINS_HOME"} {
		t.Setenv(name, "")
	}
	assert.False(t, isCIEnvironment())

	t.Setenv("JENKINS_HOME", "/var/jenkins")
	assert.True(t, isCIEnvironment())
}

func TestPromptPassword_NonInteractive(t *testing.T) {
	t.Setenv("FLOWGATE_NON_INTERACTIVE", "true")

	_, err := PromptPassword("Password: ")
	assert.Equal(t, ExitInvalidInput, ExitCode(err))
}

// isolateConfig keeps the developer's own config and environment out of
// LoadConfig.
func isolateConfig(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"AIRFLOW_API_URL", "AIRFLOW_API_TOKEN", "AIRFLOW_USERNAME", "AIRFLOW_PASSWORD",
		"AIRFLOW_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT", "FLOWGATE_DEBUG", "FLOWGATE_TRACE_EXPORTER",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(dir)
	ResetFlagsForTest()
	t.Cleanup(ResetFlagsForTest)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	isolateConfig(t)
	keyring.MockInit()
	keychain := secrets.NewKeychain()
	require.NoError(t, keychain.Set(secrets.Account("ops", "http://airflow:8080"), "from-keychain"))

	t.Setenv("AIRFLOW_API_URL", "http://from-env:8080")

	flags := RegisterConnectionFlagPointers()
	*flags.URL = "http://airflow:8080"
	*flags.Username = "ops"
	*flags.Timeout = 7 * time.Second
	verbose, _, _, _ := RegisterFlagPointers()
	*verbose = true

	cfg, err := LoadConfig(keychain)
	require.NoError(t, err)

	assert.Equal(t, "http://airflow:8080", cfg.Airflow.URL)
	assert.Equal(t, "ops", cfg.Airflow.Username)
	assert.Equal(t, "from-keychain", cfg.Airflow.Password)
	assert.Equal(t, 7*time.Second, cfg.Airflow.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_UsernameWithoutPassword(t *testing.T) {
	isolateConfig(t)
	keyring.MockInit()

	flags := RegisterConnectionFlagPointers()
	*flags.URL = "http://airflow:8080"
	*flags.Username = "ops"

	_, err := LoadConfig(secrets.NewKeychain())
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestNewRuntimeFromConfig(t *testing.T) {
	cfg := config.Default()

	_, err := NewRuntimeFromConfig(cfg, nil, &bytes.Buffer{})
	var cfgErr *pkgerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "airflow.url", cfgErr.Key)

	cfg.Airflow.URL = "http://airflow:8080/"
	cfg.Airflow.Token = "tok"
	rt, err := NewRuntimeFromConfig(cfg, nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.NotNil(t, rt.Factory)
	assert.Equal(t, "http://airflow:8080/", rt.Target.BaseURL)
	assert.Equal(t, "tok", rt.Target.Token)
}

func TestIsConnectionFailure(t *testing.T) {
	assert.True(t, IsConnectionFailure(&airflow.CreationError{Stage: airflow.StageAuthenticate, Cause: errors.New("401")}))
	assert.False(t, IsConnectionFailure(&airflow.CreationError{Stage: airflow.StageValidate, Cause: errors.New("x")}))
	assert.False(t, IsConnectionFailure(errors.New("x")))
}

func TestRenderHelpers(t *testing.T) {
	assert.Contains(t, RenderOK("ready"), "ready")
	assert.Contains(t, RenderError("down"), SymbolError)
	assert.Contains(t, RenderField("dialect", 10, "v2"), "dialect:")
	assert.Contains(t, RenderBadge("v2"), "v2")
}
