// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaic-dev/mosaic/internal/provider"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

func TestValidateKey_SendsVendorHeaders(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		path     string
		header   string
		want     string
	}{
		{"anthropic", "anthropic", "/v1/models", "x-api-key", "k1"},
		{"openai", "openai-like", "/models", "Authorization", "Bearer k1"},
		{"google", "gemini", "/v1beta/models", "x-goog-api-key", "k1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, tt.want, r.Header.Get(tt.header))
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
			}))
			defer srv.Close()

			err := provider.ValidateKey(context.Background(), srv.Client(), tt.provider, "k1", srv.URL+"/")
			require.NoError(t, err)
		})
	}
}

func TestValidateKey_Failures(t *testing.T) {
	tests := []struct {
		name       string
		provider   string
		statusCode int
		wantCode   mosaicerr.Code
	}{
		{"anthropic 401", "anthropic", http.StatusUnauthorized, mosaicerr.CodeProviderKeyInvalid},
		{"openai 403", "openai", http.StatusForbidden, mosaicerr.CodeProviderKeyInvalid},
		{"google 500", "google", http.StatusInternalServerError, mosaicerr.CodeProviderKeyCheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			err := provider.ValidateKey(context.Background(), srv.Client(), tt.provider, "bad-key", srv.URL)
			require.Error(t, err)
			assert.True(t, mosaicerr.HasCode(err, tt.wantCode), "expected %s, got %s", tt.wantCode, mosaicerr.CodeOf(err))
		})
	}
}

func TestValidateKey_RejectsUnknownProviderAndEmptyKey(t *testing.T) {
	err := provider.ValidateKey(context.Background(), nil, "mistral", "key", "")
	require.Error(t, err)
	assert.True(t, mosaicerr.IsNotFound(err))

	err = provider.ValidateKey(context.Background(), nil, "anthropic", "", "")
	require.Error(t, err)
	assert.True(t, mosaicerr.HasCode(err, mosaicerr.CodeProviderKeyInvalid))
}
