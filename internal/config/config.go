// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mosaic-dev/mosaic/internal/provider"
	"github.com/mosaic-dev/mosaic/internal/scanner"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// Config is the top-level Mosaic configuration.
type Config struct {
	Agent     AgentConfig               `mapstructure:"agent"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Tools     ToolsConfig               `mapstructure:"tools"`
}

// AgentConfig controls one agent run.
type AgentConfig struct {
	Provider        string        `mapstructure:"provider"`
	Model           string        `mapstructure:"model"`
	MaxIterations   int           `mapstructure:"max_iterations"`
	Timeout         time.Duration `mapstructure:"timeout"`
	SafetyMode      bool          `mapstructure:"safety_mode"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	ToolConcurrency int           `mapstructure:"tool_concurrency"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
// APIKey may be a keyring:// reference.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// ToolsConfig tunes the built-in tools.
type ToolsConfig struct {
	ReadLimit      int           `mapstructure:"read_limit"`
	ListLimit      int           `mapstructure:"list_limit"`
	FetchLimit     int           `mapstructure:"fetch_limit"`
	SearchResults  int           `mapstructure:"search_results"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	SearchEndpoint string        `mapstructure:"search_endpoint"`
	UserAgent      string        `mapstructure:"user_agent"`
	SkipDirs       []string      `mapstructure:"skip_dirs"`
	// ScanMode is off, flag, redact or block.
	ScanMode string `mapstructure:"scan_mode"`
}

// Vendor environment variables consulted when a provider has no api_key.
var apiKeyEnv = map[string][]string{
	provider.NameAnthropic: {"ANTHROPIC_API_KEY"},
	provider.NameOpenAI:    {"OPENAI_API_KEY"},
	provider.NameGoogle:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("agent.provider", provider.NameAnthropic)
	v.SetDefault("agent.model", "")
	v.SetDefault("agent.max_iterations", 15)
	v.SetDefault("agent.timeout", "10m")
	v.SetDefault("agent.safety_mode", true)
	v.SetDefault("agent.max_tokens", 4096)
	v.SetDefault("agent.tool_concurrency", 4)
	v.SetDefault("agent.retry.max_attempts", 3)
	v.SetDefault("agent.retry.base_delay", "1s")
	v.SetDefault("agent.retry.max_delay", "30s")
	v.SetDefault("agent.retry.multiplier", 2.0)

	v.SetDefault("tools.read_limit", 10000)
	v.SetDefault("tools.list_limit", 50)
	v.SetDefault("tools.fetch_limit", 5000)
	v.SetDefault("tools.search_results", 5)
	v.SetDefault("tools.http_timeout", "15s")
	v.SetDefault("tools.call_timeout", "2m")
	v.SetDefault("tools.search_endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("tools.user_agent", "Mozilla/5.0 (compatible; mosaic/1.0)")
	v.SetDefault("tools.skip_dirs", []string{"node_modules", ".git", "__pycache__", ".next"})
	v.SetDefault("tools.scan_mode", string(scanner.ModeFlag))
}

// SetupEnv binds MOSAIC_* environment variables to config keys, so
// MOSAIC_AGENT_MAX_ITERATIONS overrides agent.max_iterations.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("MOSAIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix MOSAIC_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, mosaicerr.Errorf(mosaicerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mosaicerr.Errorf(mosaicerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, mosaicerr.Errorf(mosaicerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateAgent()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateTools()...)
	return errs
}

func invalid(format string, args ...any) error {
	return mosaicerr.Errorf(mosaicerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateAgent() []error {
	var errs []error
	a := c.Agent

	if _, err := provider.CanonicalName(a.Provider); err != nil {
		errs = append(errs, invalid("agent.provider must be one of [anthropic, openai, google] or an alias, got %q", a.Provider))
	}
	if a.MaxIterations <= 0 {
		errs = append(errs, invalid("agent.max_iterations must be greater than 0, got %d", a.MaxIterations))
	}
	if a.Timeout <= 0 {
		errs = append(errs, invalid("agent.timeout must be greater than 0, got %s", a.Timeout))
	}
	if a.MaxTokens <= 0 {
		errs = append(errs, invalid("agent.max_tokens must be greater than 0, got %d", a.MaxTokens))
	}
	if a.ToolConcurrency < 1 {
		errs = append(errs, invalid("agent.tool_concurrency must be at least 1, got %d", a.ToolConcurrency))
	}

	r := a.Retry
	if r.MaxAttempts < 1 {
		errs = append(errs, invalid("agent.retry.max_attempts must be at least 1, got %d", r.MaxAttempts))
	}
	if r.BaseDelay <= 0 {
		errs = append(errs, invalid("agent.retry.base_delay must be greater than 0, got %s", r.BaseDelay))
	}
	if r.MaxDelay < r.BaseDelay {
		errs = append(errs, invalid("agent.retry.max_delay (%s) must not be less than base_delay (%s)", r.MaxDelay, r.BaseDelay))
	}
	if r.Multiplier < 1 {
		errs = append(errs, invalid("agent.retry.multiplier must be at least 1, got %g", r.Multiplier))
	}
	return errs
}

func (c *Config) validateProviders() []error {
	var errs []error
	for name := range c.Providers {
		if _, err := provider.CanonicalName(name); err != nil {
			errs = append(errs, invalid("providers.%s is not a known provider", name))
		}
	}
	return errs
}

func (c *Config) validateTools() []error {
	var errs []error
	t := c.Tools
	for key, val := range map[string]int{
		"read_limit":     t.ReadLimit,
		"list_limit":     t.ListLimit,
		"fetch_limit":    t.FetchLimit,
		"search_results": t.SearchResults,
	} {
		if val <= 0 {
			errs = append(errs, invalid("tools.%s must be greater than 0, got %d", key, val))
		}
	}
	if t.HTTPTimeout <= 0 {
		errs = append(errs, invalid("tools.http_timeout must be greater than 0, got %s", t.HTTPTimeout))
	}
	if t.CallTimeout < 0 {
		errs = append(errs, invalid("tools.call_timeout must not be negative, got %s", t.CallTimeout))
	}
	if _, err := scanner.ParseMode(t.ScanMode); err != nil {
		errs = append(errs, invalid("tools.scan_mode: %v", err))
	}
	return errs
}

// Provider returns the settings for the named provider (aliases allowed).
// The model falls back from agent.model to the provider's own model. An
// empty api_key is filled from the vendor's conventional environment
// variable.
func (c *Config) Provider(name string) (string, ProviderConfig, error) {
	canonical, err := provider.CanonicalName(name)
	if err != nil {
		return "", ProviderConfig{}, err
	}

	var pc ProviderConfig
	for key, p := range c.Providers {
		if k, err := provider.CanonicalName(key); err == nil && k == canonical {
			pc = p
			break
		}
	}
	if c.Agent.Model != "" {
		pc.Model = c.Agent.Model
	}
	if pc.APIKey == "" {
		pc.APIKey = envAPIKey(canonical)
	}
	return canonical, pc, nil
}

// APIKeySource describes where a provider's key comes from, without
// revealing it.
func (c *Config) APIKeySource(name string) string {
	canonical, err := provider.CanonicalName(name)
	if err != nil {
		return "unknown provider"
	}
	for key, p := range c.Providers {
		if k, err := provider.CanonicalName(key); err == nil && k == canonical && p.APIKey != "" {
			if strings.HasPrefix(p.APIKey, "keyring://") {
				return "keyring"
			}
			return "config"
		}
	}
	for _, env := range apiKeyEnv[canonical] {
		if os.Getenv(env) != "" {
			return fmt.Sprintf("env %s", env)
		}
	}
	return "missing"
}

func envAPIKey(canonical string) string {
	for _, env := range apiKeyEnv[canonical] {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}
