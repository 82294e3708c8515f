// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"log/slog"
	"net/http"

	"github.com/spf13/viper"

	"github.com/mosaic-dev/mosaic/internal/agent"
	"github.com/mosaic-dev/mosaic/internal/config"
	"github.com/mosaic-dev/mosaic/internal/provider"
	anthropicprov "github.com/mosaic-dev/mosaic/internal/provider/anthropic"
	googleprov "github.com/mosaic-dev/mosaic/internal/provider/google"
	openaiprov "github.com/mosaic-dev/mosaic/internal/provider/openai"
	"github.com/mosaic-dev/mosaic/internal/safewrite"
	"github.com/mosaic-dev/mosaic/internal/scanner"
	"github.com/mosaic-dev/mosaic/internal/secrets"
	"github.com/mosaic-dev/mosaic/internal/tool"
	"github.com/mosaic-dev/mosaic/internal/tool/builtin"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// newProviderRegistry returns the registry of vendor adapters. Tests
// replace it to script the model.
var newProviderRegistry = func() *provider.Registry {
	reg := provider.NewRegistry()
	for name, f := range map[string]provider.Factory{
		provider.NameAnthropic: anthropicprov.Factory,
		provider.NameOpenAI:    openaiprov.Factory,
		provider.NameGoogle:    googleprov.Factory,
	} {
		if err := reg.Register(name, f); err != nil {
			panic(err)
		}
	}
	return reg
}

// secretOpener opens keyring services for keyring:// references and the
// secret commands.
var secretOpener secrets.Opener = secrets.OpenKeyring

// loadConfig resolves keyring references held by v and decodes the result.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	if err := secrets.ResolveViperSecrets(v, secretOpener); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

// buildProvider creates the adapter selected by agent.provider.
func buildProvider(cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	name, pc, err := cfg.Provider(cfg.Agent.Provider)
	if err != nil {
		return nil, err
	}
	apiKey, err := secrets.Resolve(secretOpener, pc.APIKey)
	if err != nil {
		return nil, err
	}
	p, err := newProviderRegistry().New(name, provider.Config{
		APIKey:  apiKey,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		Logger:  logger,
	})
	if err != nil {
		return nil, mosaicerr.Wrapf(err, mosaicerr.CodeCLISetupFailure, "creating %s provider", name)
	}
	return p, nil
}

// buildTools registers the built-in tools. Writes go through a SafeWriter
// unless safety mode is off.
func buildTools(cfg *config.Config, logger *slog.Logger) (*tool.Registry, error) {
	var writer safewrite.Writer = safewrite.NewSafe(logger)
	if !cfg.Agent.SafetyMode {
		writer = safewrite.NewDirect(logger)
	}

	mode, err := scanner.ParseMode(cfg.Tools.ScanMode)
	if err != nil {
		return nil, mosaicerr.Wrapf(err, mosaicerr.CodeCLISetupFailure, "configuring tool output scanner")
	}

	reg := tool.NewRegistry(tool.RegistryConfig{
		Writer:   writer,
		Timeout:  cfg.Tools.CallTimeout,
		Scanner:  scanner.Default(),
		ScanMode: mode,
		Logger:   logger,
	})
	err = builtin.Register(reg, builtin.Config{
		ReadLimit:      cfg.Tools.ReadLimit,
		ListLimit:      cfg.Tools.ListLimit,
		FetchLimit:     cfg.Tools.FetchLimit,
		SearchResults:  cfg.Tools.SearchResults,
		SearchEndpoint: cfg.Tools.SearchEndpoint,
		UserAgent:      cfg.Tools.UserAgent,
		SkipDirs:       cfg.Tools.SkipDirs,
		HTTPClient:     &http.Client{Timeout: cfg.Tools.HTTPTimeout},
	})
	if err != nil {
		return nil, mosaicerr.Wrapf(err, mosaicerr.CodeCLISetupFailure, "registering built-in tools")
	}
	return reg, nil
}

// agentConfig maps the agent section onto the loop configuration.
func agentConfig(cfg *config.Config) agent.Config {
	return agent.Config{
		MaxIterations:   cfg.Agent.MaxIterations,
		Timeout:         cfg.Agent.Timeout,
		AllowOverwrite:  !cfg.Agent.SafetyMode,
		MaxTokens:       cfg.Agent.MaxTokens,
		ToolConcurrency: cfg.Agent.ToolConcurrency,
		Retry: agent.RetryPolicy{
			MaxAttempts: cfg.Agent.Retry.MaxAttempts,
			BaseDelay:   cfg.Agent.Retry.BaseDelay,
			MaxDelay:    cfg.Agent.Retry.MaxDelay,
			Multiplier:  cfg.Agent.Retry.Multiplier,
		},
	}
}

// wireLoop builds the provider, tools and loop for one command.
func wireLoop(cfg *config.Config, observer agent.Observer, logger *slog.Logger) (*agent.Loop, provider.Provider, error) {
	p, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	tools, err := buildTools(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	loop, err := agent.NewLoop(agent.LoopConfig{
		Provider: p,
		Tools:    tools,
		Config:   agentConfig(cfg),
		Observer: observer,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return loop, p, nil
}
