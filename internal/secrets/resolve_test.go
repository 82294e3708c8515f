// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package secrets_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaic-dev/mosaic/internal/secrets"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

func TestKeyringURI(t *testing.T) {
	uri := secrets.KeyringURI("mosaic", "openai.api_key")
	assert.Equal(t, "keyring://mosaic/openai.api_key", uri)
	assert.True(t, secrets.IsKeyringURI(uri))
	assert.False(t, secrets.IsKeyringURI("sk-plain"))
	assert.False(t, secrets.IsKeyringURI(""))
}

func TestParseKeyringURI(t *testing.T) {
	tests := []struct {
		uri     string
		service string
		key     string
		wantErr bool
	}{
		{uri: "keyring://mosaic/anthropic.api_key", service: "mosaic", key: "anthropic.api_key"},
		{uri: "keyring://team/nested/key", service: "team", key: "nested/key"},
		{uri: "keyring://mosaic", wantErr: true},
		{uri: "keyring:///key", wantErr: true},
		{uri: "keyring://mosaic/", wantErr: true},
		{uri: "env://X", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			service, key, err := secrets.ParseKeyringURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, mosaicerr.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.service, service)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestResolve(t *testing.T) {
	require.NoError(t, secrets.NewKeyringStore("mosaic-resolve").Set("anthropic.api_key", "sk-ant"))

	val, err := secrets.Resolve(secrets.OpenKeyring, "sk-literal")
	require.NoError(t, err)
	assert.Equal(t, "sk-literal", val)

	val, err = secrets.Resolve(secrets.OpenKeyring, "keyring://mosaic-resolve/anthropic.api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", val)

	_, err = secrets.Resolve(secrets.OpenKeyring, "keyring://mosaic-resolve/missing")
	require.Error(t, err)
	assert.True(t, mosaicerr.HasCode(err, mosaicerr.CodeSecretNotFound))

	_, err = secrets.Resolve(secrets.OpenKeyring, "keyring://bad")
	require.Error(t, err)
}

func TestResolveViperSecrets(t *testing.T) {
	ks := secrets.NewKeyringStore("mosaic-viper")
	require.NoError(t, ks.Set("anthropic.api_key", "sk-ant-secret"))
	require.NoError(t, ks.Set("openai.api_key", "sk-oai-secret"))

	v := viper.New()
	v.Set("providers.anthropic.api_key", "keyring://mosaic-viper/anthropic.api_key")
	v.Set("providers.openai.api_key", "keyring://mosaic-viper/openai.api_key")
	v.Set("agent.provider", "anthropic")

	require.NoError(t, secrets.ResolveViperSecrets(v, secrets.OpenKeyring))

	assert.Equal(t, "sk-ant-secret", v.GetString("providers.anthropic.api_key"))
	assert.Equal(t, "sk-oai-secret", v.GetString("providers.openai.api_key"))
	assert.Equal(t, "anthropic", v.GetString("agent.provider"))
}

func TestResolveViperSecrets_ReportsUnresolvedKeys(t *testing.T) {
	v := viper.New()
	v.Set("providers.anthropic.api_key", "keyring://mosaic-viper-missing/anthropic.api_key")
	v.Set("providers.google.api_key", "keyring://mosaic-viper-missing/google.api_key")

	err := secrets.ResolveViperSecrets(v, secrets.OpenKeyring)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.anthropic.api_key")
	assert.Contains(t, err.Error(), "providers.google.api_key")
	assert.True(t, mosaicerr.HasCode(err, mosaicerr.CodeSecretResolveFailure))
	assert.Equal(t, "keyring://mosaic-viper-missing/anthropic.api_key", v.GetString("providers.anthropic.api_key"))
}
