// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package secrets

import (
	"strings"

	"github.com/spf13/viper"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// KeyringURI builds the reference for service and key.
func KeyringURI(service, key string) string {
	return keyringScheme + service + "/" + key
}

// ParseKeyringURI splits keyring://service/key. The key may contain
// slashes.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", mosaicerr.Errorf(mosaicerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", mosaicerr.Errorf(mosaicerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Opener returns the store for a keyring service.
type Opener func(service string) Store

// OpenKeyring is the Opener backed by the OS keyring.
func OpenKeyring(service string) Store {
	return NewKeyringStore(service)
}

// Resolve returns value unchanged unless it is a keyring URI, in which case
// the referenced secret is looked up.
func Resolve(open Opener, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}
	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}
	secret, err := open(service).Get(key)
	if err != nil {
		return "", mosaicerr.Wrapf(err, mosaicerr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets replaces every keyring URI held by v with its
// secret. All unresolvable references are reported together.
func ResolveViperSecrets(v *viper.Viper, open Opener) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}
		resolved, err := Resolve(open, val)
		if err != nil {
			errs = append(errs, mosaicerr.Wrapf(err, mosaicerr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}
		v.Set(key, resolved)
	}
	return mosaicerr.Join(mosaicerr.CodeSecretResolveFailure, errs...)
}
