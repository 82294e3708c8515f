// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"strings"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// Default API roots used when no base URL is configured.
const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultGoogleBaseURL    = "https://generativelanguage.googleapis.com"
)

// ValidateKey makes a lightweight call to the provider's models endpoint
// to confirm the API key is accepted. An empty baseURL uses the vendor
// default.
func ValidateKey(ctx context.Context, client *http.Client, name, key, baseURL string) error {
	canon, err := CanonicalName(name)
	if err != nil {
		return mosaicerr.Wrap(err, mosaicerr.CodeProviderKeyInvalid, "validating key")
	}
	if key == "" {
		return mosaicerr.New(mosaicerr.CodeProviderKeyInvalid, "no API key configured", mosaicerr.FieldProvider(canon))
	}

	var (
		url     string
		headers = map[string]string{}
	)
	switch canon {
	case NameAnthropic:
		url = joinURL(baseURL, DefaultAnthropicBaseURL, "/v1/models")
		headers["x-api-key"] = key
		headers["anthropic-version"] = "2023-06-01"
	case NameOpenAI:
		url = joinURL(baseURL, DefaultOpenAIBaseURL, "/models")
		headers["Authorization"] = "Bearer " + key
	case NameGoogle:
		url = joinURL(baseURL, DefaultGoogleBaseURL, "/v1beta/models")
		headers["x-goog-api-key"] = key
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mosaicerr.Errorf(mosaicerr.CodeProviderKeyCheckFailed, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return mosaicerr.Errorf(mosaicerr.CodeProviderKeyCheckFailed, "validating %s key: %w", canon, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return mosaicerr.Errorf(mosaicerr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", canon, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return mosaicerr.Errorf(mosaicerr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", canon, resp.StatusCode)
	}
	return nil
}

func joinURL(base, fallback, path string) string {
	if base == "" {
		base = fallback
	}
	return strings.TrimRight(base, "/") + path
}
