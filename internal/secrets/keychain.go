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

// Package secrets stores and looks up server passwords in the system
// keychain, so they need not live in config files or the environment.
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain service name for flowgate entries.
const DefaultService = "flowgate"

// ErrNotFound is returned when no password is stored for an account.
var ErrNotFound = errors.New("secret not found in keychain")

// Keychain reads and writes passwords for one service name. Entries are
// keyed by account, which flowgate sets to "<username>@<base url>".
type Keychain struct {
	Service string
}

// NewKeychain returns a keychain bound to DefaultService.
func NewKeychain() *Keychain {
	return &Keychain{Service: DefaultService}
}

// Account builds the keychain account for a user on a server.
func Account(username, baseURL string) string {
	return username + "@" + baseURL
}

// Available reports whether the platform keychain answers at all. A locked
// or missing Secret Service fails here rather than at first use.
func (k *Keychain) Available() bool {
	_, err := keyring.Get(k.service(), "__flowgate_availability_test__")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// Get returns the stored password for account.
func (k *Keychain) Get(account string) (string, error) {
	value, err := keyring.Get(k.service(), account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading keychain entry %s: %w", account, err)
	}
	return value, nil
}

// Set stores password for account, replacing any earlier value.
func (k *Keychain) Set(account, password string) error {
	if err := keyring.Set(k.service(), account, password); err != nil {
		return fmt.Errorf("writing keychain entry %s: %w", account, err)
	}
	return nil
}

// Delete removes the entry for account. Deleting a missing entry is not an
// error.
func (k *Keychain) Delete(account string) error {
	if err := keyring.Delete(k.service(), account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("deleting keychain entry %s: %w", account, err)
	}
	return nil
}

func (k *Keychain) service() string {
	if k.Service == "" {
		return DefaultService
	}
	return k.Service
}
