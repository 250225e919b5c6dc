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

/*
Package cli provides the root command for the flowgate CLI.

It builds the Cobra command tree, owns the persistent flags and routes errors
to exit codes. Individual commands live in the internal/commands subpackages.

# Command Tree

	flowgate
	├── mcp-server    Serve the operation catalog as MCP tools over stdio
	├── probe         Detect and print the remote API dialect
	├── call          Invoke one operation and print its result
	├── tools         List the operation catalog
	├── login         Store a password in the system keychain
	├── logout        Remove a stored password
	├── config        Show, locate or validate the configuration
	├── version       Show version
	└── help          Show help

# Global Flags

	--verbose, -v    Enable debug logging
	--quiet, -q      Only log errors
	--json           Output in JSON format
	--config         Path to config file
	--url            Server base URL (overrides AIRFLOW_API_URL)
	--token          Bearer token (overrides AIRFLOW_API_TOKEN)
	--username       Username for basic auth or the token exchange
	--ask-password   Prompt for the password
	--timeout        Per-call timeout
*/
package cli
