// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/mosaic-dev/mosaic/internal/config"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// NewRootCmd creates the root mosaic command with all subcommands
// registered. Each root gets its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "mosaic",
		Short: "Mosaic: a UI/UX research agent for your project",
		Long: "Mosaic explores a project with an LLM of your choice, researches modern UI patterns on the web,\n" +
			"and writes improved components next to your files without overwriting them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd, v)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(
		newRunCmd(v),
		newToolsCmd(v),
		newDoctorCmd(v),
		newInitCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up logging, the .env file, defaults, environment and the
// config file so the standard precedence (flag > env > file > defaults) is
// handled uniformly.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Root().PersistentFlags()

	verbose, _ := flags.GetBool("verbose")
	format, _ := flags.GetString("log-format")
	if err := setupLogging(cmd.ErrOrStderr(), format, verbose); err != nil {
		return err
	}

	if envFile, _ := flags.GetString("env-file"); envFile != "" {
		// Existing environment variables win over the file.
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return mosaicerr.Errorf(mosaicerr.CodeConfigLoadReadFailure, "loading %s: %w", envFile, err)
		}
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := flags.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return mosaicerr.Errorf(mosaicerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted on purpose: with it set, viper also tries
		// the bare name, which collides with a ./mosaic binary.
		v.SetConfigName("mosaic")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/mosaic")
		v.AddConfigPath("/etc/mosaic")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return mosaicerr.Errorf(mosaicerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return mosaicerr.Errorf(mosaicerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
	}
	return nil
}

func setupLogging(w io.Writer, format string, verbose bool) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return mosaicerr.Errorf(mosaicerr.CodeCLIInputInvalid, "unknown log format %q (want text or json)", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// configSource describes where configuration came from.
func configSource(v *viper.Viper) string {
	if used := v.ConfigFileUsed(); used != "" {
		return "loaded from " + used
	}
	return "using defaults (no config file found)"
}
