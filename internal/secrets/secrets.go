// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package secrets keeps provider API keys out of config files. Keys live in
// the OS keyring and config values reference them as keyring://service/key.
package secrets

// DefaultService is the keyring service Mosaic stores its keys under.
const DefaultService = "mosaic"

// Store is a keyring-like secret backend scoped to one service.
type Store interface {
	Service() string
	// Set saves value under key, replacing any previous value.
	Set(key, value string) error
	// Get returns the value for key. A missing key has code
	// CodeSecretNotFound.
	Get(key string) (string, error)
	// Delete removes key. A missing key has code CodeSecretNotFound.
	Delete(key string) error
	// List returns the stored key names in the order they were first set.
	List() ([]string, error)
}

// ProviderKey is the key name holding a provider's API key.
func ProviderKey(provider string) string {
	return provider + ".api_key"
}
