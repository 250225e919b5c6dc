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
	"time"
)

// Global flag values - set by root command
var (
	verboseFlag bool
	quietFlag   bool
	jsonFlag    bool
	configFlag  string

	// Connection overrides; empty means "use config and environment".
	urlFlag         string
	tokenFlag       string
	usernameFlag    string
	askPasswordFlag bool
	timeoutFlag     time.Duration

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterFlagPointers returns pointers to flag variables for binding.
// Called by root command to register flags.
func RegisterFlagPointers() (*bool, *bool, *bool, *string) {
	return &verboseFlag, &quietFlag, &jsonFlag, &configFlag
}

// ConnectionFlags groups the pointers for the remote server overrides.
type ConnectionFlags struct {
	URL         *string
	Token       *string
	Username    *string
	AskPassword *bool
	Timeout     *time.Duration
}

// RegisterConnectionFlagPointers returns pointers for the connection
// override flags.
func RegisterConnectionFlagPointers() ConnectionFlags {
	return ConnectionFlags{
		URL:         &urlFlag,
		Token:       &tokenFlag,
		Username:    &usernameFlag,
		AskPassword: &askPasswordFlag,
		Timeout:     &timeoutFlag,
	}
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verboseFlag
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quietFlag
}

// GetJSON returns the JSON output flag value
func GetJSON() bool {
	return jsonFlag
}

// GetConfigPath returns the config file path
func GetConfigPath() string {
	return configFlag
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// ResetFlagsForTest restores every global flag to its zero value.
func ResetFlagsForTest() {
	verboseFlag, quietFlag, jsonFlag = false, false, false
	configFlag = ""
	urlFlag, tokenFlag, usernameFlag = "", "", ""
	askPasswordFlag = false
	timeoutFlag = 0
}
