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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/tombee/flowgate/internal/log"
	"github.com/tombee/flowgate/internal/metrics"
	flowerrors "github.com/tombee/flowgate/pkg/errors"
)

// Default pair accepted by stock 2.x deployments.
const (
	DefaultUsername = "airflow"
	DefaultPassword = "airflow"
)

// TokenPath is the password-exchange endpoint of 3.x servers, relative to
// the base URL (not to the API prefix).
const TokenPath = "/auth/token"

// Input is what the caller supplied. Any field may be empty.
type Input struct {
	Token    string
	Username string
	Password string
}

// Validate rejects a username without a password and vice versa. A token
// makes the pair irrelevant, so it is not checked then.
func (in Input) Validate() error {
	if in.Token != "" {
		return nil
	}
	switch {
	case in.Username != "" && in.Password == "":
		return &flowerrors.ValidationError{
			Field:   "password",
			Message: "username given without password",
			Hint:    "set AIRFLOW_PASSWORD or drop AIRFLOW_USERNAME",
		}
	case in.Username == "" && in.Password != "":
		return &flowerrors.ValidationError{
			Field:   "username",
			Message: "password given without username",
			Hint:    "set AIRFLOW_USERNAME or drop AIRFLOW_PASSWORD",
		}
	}
	return nil
}

func (in Input) hasPair() bool {
	return in.Username != "" && in.Password != ""
}

// ExchangeError reports a failed username/password exchange. It is fatal to
// adapter construction; there is no fallback to Basic.
type ExchangeError struct {
	URL        string
	StatusCode int
	Body       string
	Cause      error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange at %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("token exchange at %s failed: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExchangeError) Unwrap() error { return e.Cause }

// IsUserVisible implements errors.UserVisibleError.
func (e *ExchangeError) IsUserVisible() bool { return true }

// UserMessage implements errors.UserVisibleError.
func (e *ExchangeError) UserMessage() string { return e.Error() }

// Suggestion implements errors.UserVisibleError.
func (e *ExchangeError) Suggestion() string {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return "Check AIRFLOW_USERNAME and AIRFLOW_PASSWORD, or supply AIRFLOW_API_TOKEN instead"
	}
	return "Check that the server exposes " + TokenPath + " and is reachable"
}

// Resolver turns Input into Credentials for a detected major version.
type Resolver struct {
	// HTTPClient performs the exchange POST. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// AllowDefaultCredentials enables the airflow/airflow pair for 2.x
	// servers when nothing was supplied.
	AllowDefaultCredentials bool

	Logger *slog.Logger
}

// Resolve picks the scheme:
//   - a token always wins, for either major;
//   - major 3 with a username/password pair exchanges it for a token;
//   - major 2 with a pair uses Basic;
//   - major 2 with nothing uses the default pair when allowed;
//   - anything else is None.
func (r *Resolver) Resolve(ctx context.Context, baseURL string, major int, in Input) (Credentials, error) {
	if err := in.Validate(); err != nil {
		return Credentials{}, err
	}

	switch {
	case in.Token != "":
		return Bearer(in.Token), nil
	case in.hasPair() && major == 3:
		token, err := r.Exchange(ctx, baseURL, in.Username, in.Password)
		if err != nil {
			return Credentials{}, err
		}
		return Bearer(token), nil
	case in.hasPair() && major == 2:
		return Basic(in.Username, in.Password), nil
	case major == 2 && r.AllowDefaultCredentials:
		r.logger().Debug("no credentials supplied, using default pair", "username", DefaultUsername)
		return Basic(DefaultUsername, DefaultPassword), nil
	default:
		return None(), nil
	}
}

// Exchange posts username and password as a form-encoded password grant to
// {baseURL}/auth/token and returns the access_token from the response.
func (r *Resolver) Exchange(ctx context.Context, baseURL, username, password string) (string, error) {
	tokenURL := strings.TrimRight(baseURL, "/") + TokenPath

	cfg := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	httpClient := r.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := cfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		exErr := &ExchangeError{URL: tokenURL, Cause: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			exErr.StatusCode = retrieveErr.Response.StatusCode
			exErr.Body = string(retrieveErr.Body)
		}
		r.logger().Warn("token exchange failed",
			"url", tokenURL,
			"username", username,
			"status", exErr.StatusCode,
		)
		metrics.RecordTokenExchange(false)
		return "", exErr
	}

	metrics.RecordTokenExchange(true)
	r.logExpiry(tok.AccessToken, tokenURL)
	return tok.AccessToken, nil
}

// logExpiry reports the exp claim when the token is a JWT. The signature is
// not checked; the server remains the authority on validity.
func (r *Resolver) logExpiry(token, tokenURL string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		r.logger().Debug("exchanged token is not a JWT", "url", tokenURL, "token", log.SanitizeToken(token))
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		r.logger().Debug("exchanged token has no expiry", "url", tokenURL)
		return
	}
	r.logger().Info("exchanged credentials for bearer token",
		"url", tokenURL,
		"expires_at", exp.Time.Format(time.RFC3339),
		"expires_in", time.Until(exp.Time).Round(time.Second).String(),
	)
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return log.Discard()
	}
	return r.Logger
}
