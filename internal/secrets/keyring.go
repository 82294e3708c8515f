// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// indexKey names the entry holding the JSON list of stored keys, since
// go-keyring cannot enumerate.
const indexKey = "::index"

// KeyringStore implements Store on the OS keyring (Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows).
type KeyringStore struct {
	service string
}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore returns a store for service. An empty service means
// DefaultService.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Service() string { return s.service }

func (s *KeyringStore) Set(key, value string) error {
	if err := checkKey("set", key); err != nil {
		return err
	}
	if err := keyring.Set(s.service, key, value); err != nil {
		return mosaicerr.Wrapf(err, mosaicerr.CodeSecretStoreFailure, "storing secret %s/%s", s.service, key)
	}

	keys, err := s.index()
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.saveIndex(append(keys, key))
}

func (s *KeyringStore) Get(key string) (string, error) {
	if err := checkKey("get", key); err != nil {
		return "", err
	}
	val, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", mosaicerr.Errorf(mosaicerr.CodeSecretNotFound, "secret %s/%s not found", s.service, key)
	}
	if err != nil {
		return "", mosaicerr.Wrapf(err, mosaicerr.CodeSecretStoreFailure, "retrieving secret %s/%s", s.service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(key string) error {
	if err := checkKey("delete", key); err != nil {
		return err
	}
	err := keyring.Delete(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return mosaicerr.Errorf(mosaicerr.CodeSecretNotFound, "secret %s/%s not found", s.service, key)
	}
	if err != nil {
		return mosaicerr.Wrapf(err, mosaicerr.CodeSecretDeleteFailure, "deleting secret %s/%s", s.service, key)
	}

	keys, err := s.index()
	if err != nil {
		return err
	}
	return s.saveIndex(slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}

func (s *KeyringStore) List() ([]string, error) {
	return s.index()
}

func (s *KeyringStore) index() ([]string, error) {
	raw, err := keyring.Get(s.service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mosaicerr.Wrapf(err, mosaicerr.CodeSecretListFailure, "loading key index for %s", s.service)
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, mosaicerr.Wrapf(err, mosaicerr.CodeSecretListFailure, "decoding key index for %s", s.service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(keys []string) error {
	if len(keys) == 0 {
		if err := keyring.Delete(s.service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", s.service, "error", err)
		}
		return nil
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return mosaicerr.Wrapf(err, mosaicerr.CodeSecretListFailure, "encoding key index for %s", s.service)
	}
	if err := keyring.Set(s.service, indexKey, string(data)); err != nil {
		return mosaicerr.Wrapf(err, mosaicerr.CodeSecretListFailure, "saving key index for %s", s.service)
	}
	return nil
}

func checkKey(op, key string) error {
	if key == "" || key == indexKey {
		return mosaicerr.Errorf(mosaicerr.CodeSecretInvalidInput, "secret %s: invalid key %q", op, key)
	}
	return nil
}
