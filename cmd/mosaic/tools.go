// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mosaic-dev/mosaic/internal/config"
	"github.com/mosaic-dev/mosaic/internal/provider"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

type toolInfo struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Description string   `yaml:"description"`
	Parameters  []string `yaml:"parameters"`
	Required    []string `yaml:"required,omitempty"`
}

func newToolsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the agent can call",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTools(cmd, v)
		},
	}
	cmd.Flags().String("format", "text", "output format: text or yaml")
	return cmd
}

func runTools(cmd *cobra.Command, v *viper.Viper) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "yaml" {
		return mosaicerr.Errorf(mosaicerr.CodeCLIInputInvalid, "unknown format %q (want text or yaml)", format)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	reg, err := buildTools(cfg, slog.Default())
	if err != nil {
		return err
	}

	var infos []toolInfo
	for _, d := range reg.Descriptors() {
		props, required := provider.SchemaParts(d.Schema)
		params := make([]string, 0, len(props))
		for name := range props {
			params = append(params, name)
		}
		slices.Sort(params)
		infos = append(infos, toolInfo{
			Name:        d.Name,
			Kind:        d.Kind.String(),
			Description: d.Description,
			Parameters:  params,
			Required:    required,
		})
	}

	out := cmd.OutOrStdout()
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return mosaicerr.Errorf(mosaicerr.CodeCLIRunFailure, "encoding tools: %w", err)
		}
		return enc.Close()
	}

	for _, info := range infos {
		_, _ = fmt.Fprintf(out, "%s (%s)\n", toolStyle.Render(info.Name), info.Kind)
		_, _ = fmt.Fprintf(out, "  %s\n", info.Description)
		if len(info.Parameters) > 0 {
			_, _ = fmt.Fprintf(out, "  parameters: %s\n", strings.Join(info.Parameters, ", "))
		}
	}
	return nil
}
