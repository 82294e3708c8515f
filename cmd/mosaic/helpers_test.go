// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/mosaic-dev/mosaic/internal/provider"
	"github.com/mosaic-dev/mosaic/internal/provider/providertest"
)

func init() {
	keyring.MockInit()
}

// isolate points HOME at a temp dir and clears vendor key variables so a
// developer's own setup never leaks into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, env := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(env, "")
	}
}

// execute runs the root command and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mosaic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// scriptModel makes every provider lookup return sp. The received provider
// configs are appended to seen when it is not nil.
func scriptModel(t *testing.T, sp *providertest.Scripted, seen *[]provider.Config) {
	t.Helper()
	old := newProviderRegistry
	newProviderRegistry = func() *provider.Registry {
		reg := provider.NewRegistry()
		for _, name := range allProviders {
			require.NoError(t, reg.Register(name, func(cfg provider.Config) (provider.Provider, error) {
				if seen != nil {
					*seen = append(*seen, cfg)
				}
				return sp, nil
			}))
		}
		return reg
	}
	t.Cleanup(func() { newProviderRegistry = old })
}
