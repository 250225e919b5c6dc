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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/flowgate/internal/airflow"
	pkgerrors "github.com/tombee/flowgate/pkg/errors"
)

// Exit codes for flowgate commands
const (
	ExitSuccess          = 0
	ExitFailed           = 1
	ExitInvalidInput     = 2 // unknown operation, missing argument, bad flag value
	ExitConfigError      = 3
	ExitConnectionFailed = 4 // dialect detection or credential exchange failed
	ExitOperationFailed  = 5 // the remote server answered with an error
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewInvalidInputError creates an error for bad command input
func NewInvalidInputError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidInput,
		Message: msg,
		Cause:   cause,
	}
}

// NewConnectionError creates an error for detection and authentication failures
func NewConnectionError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConnectionFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewOperationError creates an error for operations the server rejected
func NewOperationError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitOperationFailed,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var creationErr *airflow.CreationError
	if errors.As(err, &creationErr) {
		if creationErr.Stage == airflow.StageValidate {
			return ExitInvalidInput
		}
		return ExitConnectionFailed
	}

	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}

	var validationErr *pkgerrors.ValidationError
	if errors.As(err, &validationErr) {
		return ExitInvalidInput
	}

	return ExitFailed
}

// HandleExitError prints err with any suggestion and exits with the
// matching code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	PrintError(os.Stderr, err)
	os.Exit(ExitCode(err))
}

// PrintError writes err and, when the chain carries one, its suggestion.
func PrintError(w io.Writer, err error) {
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(w, "Error:", msg)
	}
	printUserVisibleSuggestion(w, err)
}

// printUserVisibleSuggestion prints the suggestion of the first
// UserVisibleError in err's chain.
func printUserVisibleSuggestion(w io.Writer, err error) {
	if userErr, ok := pkgerrors.FindUserVisible(err); ok {
		if suggestion := userErr.Suggestion(); suggestion != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
		}
	}
}
