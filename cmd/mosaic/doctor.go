// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mosaic-dev/mosaic/internal/config"
	"github.com/mosaic-dev/mosaic/internal/provider"
	"github.com/mosaic-dev/mosaic/internal/secrets"
)

// doctorHTTPClient is used for key validation. Tests replace it.
var doctorHTTPClient = &http.Client{Timeout: 10 * time.Second}

var allProviders = []string{provider.NameAnthropic, provider.NameOpenAI, provider.NameGoogle}

func newDoctorCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check configuration, provider credentials, the selected model and free disk space in the project directory.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, v)
		},
	}
	cmd.Flags().Bool("check-keys", false, "validate configured API keys against each provider")
	cmd.Flags().StringP("project", "p", ".", "project directory to check")
	return cmd
}

type check struct {
	name string
	fn   func() string
}

func runDoctor(cmd *cobra.Command, v *viper.Viper) error {
	w := cmd.OutOrStdout()
	checkKeys, _ := cmd.Flags().GetBool("check-keys")
	project, _ := cmd.Flags().GetString("project")

	// Keyring references stay unresolved here so their source can be shown.
	cfg, cfgErr := config.FromViper(v)

	checks := []check{
		{"Binary", checkBinary},
		{"Config", func() string {
			if cfgErr != nil {
				return "invalid: " + cfgErr.Error()
			}
			return configSource(v)
		}},
	}
	if cfgErr == nil {
		checks = append(checks,
			check{"Provider", func() string { return checkProvider(cfg) }},
			check{"API Keys", func() string { return checkKeySources(cfg) }},
		)
		if checkKeys {
			for _, name := range allProviders {
				checks = append(checks, check{"Key " + name, func() string {
					return validateKey(cmd.Context(), cfg, name)
				}})
			}
		}
	}
	checks = append(checks, check{"Disk Space", func() string { return checkDiskSpace(project) }})

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}
	return nil
}

func checkBinary() string {
	return fmt.Sprintf("mosaic %s (%s/%s, %s)", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// checkProvider builds the selected adapter and reports its model and
// health.
func checkProvider(cfg *config.Config) string {
	p, err := buildProvider(cfg, slog.Default())
	if err != nil {
		return fmt.Sprintf("%s unavailable: %s", cfg.Agent.Provider, err)
	}
	ref := provider.ModelRef(p)
	hr, ok := p.(provider.HealthReporter)
	if !ok {
		return ref
	}
	m := hr.HealthMetrics()
	return fmt.Sprintf("%s (%s, %d ok / %d failed)", ref, m.Status(), m.SuccessCount, m.FailureCount)
}

func checkKeySources(cfg *config.Config) string {
	parts := make([]string, 0, len(allProviders))
	for _, name := range allProviders {
		parts = append(parts, name+": "+cfg.APIKeySource(name))
	}
	return strings.Join(parts, ", ")
}

func validateKey(ctx context.Context, cfg *config.Config, name string) string {
	_, pc, err := cfg.Provider(name)
	if err != nil {
		return "error: " + err.Error()
	}
	if pc.APIKey == "" {
		return "skipped (no key)"
	}
	key, err := secrets.Resolve(secretOpener, pc.APIKey)
	if err != nil {
		return "error: " + err.Error()
	}
	if err := provider.ValidateKey(ctx, doctorHTTPClient, name, key, pc.BaseURL); err != nil {
		return "invalid: " + err.Error()
	}
	return "valid"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
