// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

//go:embed mosaic.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/mosaic/mosaic.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", mosaicerr.Errorf(mosaicerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mosaic", "mosaic.yaml"), nil
}

// BootstrapConfig writes the default commented config to the default path
// if nothing is there yet. It returns the path written, or "" when the file
// already existed or could not be written. Failures are logged, not fatal.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return bootstrapAt(cfgPath)
}

func bootstrapAt(cfgPath string) string {
	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	// O_EXCL: a file that appeared since the Stat is left alone.
	f, err := os.OpenFile(cfgPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		slog.Debug("skipping config bootstrap: cannot create config", "path", cfgPath, "error", err)
		return ""
	}
	_, werr := f.Write(DefaultConfigYAML)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", werr)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
