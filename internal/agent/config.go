// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package agent

import (
	"math"
	"time"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultMaxIterations   = 15
	DefaultTimeout         = 10 * time.Minute
	DefaultMaxTokens       = 4096
	DefaultToolConcurrency = 4
)

// RetryPolicy bounds retries of transient provider failures.
type RetryPolicy struct {
	// MaxAttempts counts every attempt, the first one included.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns three attempts spaced 1s then 2s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Delay returns the wait before retry n (1-based). There is no jitter.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Config controls one agent run.
type Config struct {
	MaxIterations int
	Timeout       time.Duration
	// AllowOverwrite records that write tools bypass the SafeWriter. It is
	// applied by whoever builds the tool registry; the loop only reports it.
	// The zero value is the safe mode.
	AllowOverwrite  bool
	MaxTokens       int
	ToolConcurrency int
	Retry           RetryPolicy
	// SystemPrompt overrides the built-in research prompt when set.
	SystemPrompt string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   DefaultMaxIterations,
		Timeout:         DefaultTimeout,
		MaxTokens:       DefaultMaxTokens,
		ToolConcurrency: DefaultToolConcurrency,
		Retry:           DefaultRetryPolicy(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.ToolConcurrency == 0 {
		c.ToolConcurrency = d.ToolConcurrency
	}
	if c.Retry == (RetryPolicy{}) {
		c.Retry = d.Retry
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = SystemPrompt
	}
	return c
}

func (c Config) validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, mosaicerr.Errorf(mosaicerr.CodeAgentLoopInvalidInput, format, args...))
	}
	if c.MaxIterations < 1 {
		bad("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Timeout <= 0 {
		bad("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxTokens < 1 {
		bad("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.ToolConcurrency < 1 {
		bad("tool_concurrency must be positive, got %d", c.ToolConcurrency)
	}
	if c.Retry.MaxAttempts < 1 {
		bad("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		bad("retry delays must satisfy 0 <= base_delay <= max_delay")
	}
	if c.Retry.Multiplier < 1 {
		bad("retry.multiplier must be at least 1, got %g", c.Retry.Multiplier)
	}
	return mosaicerr.Join(mosaicerr.CodeAgentLoopInvalidInput, errs...)
}
