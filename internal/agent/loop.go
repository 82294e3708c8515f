// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package agent drives a provider and a tool set over one conversation until
// the model produces a final answer or the run fails.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/provider"
	"github.com/mosaic-dev/mosaic/internal/safewrite"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// LoopConfig holds dependencies for the Loop.
type LoopConfig struct {
	Provider provider.Provider
	Tools    ToolSet
	Config   Config
	// Observer receives progress events. Optional.
	Observer Observer
	Logger   *slog.Logger
}

// Loop runs agent tasks. A Loop holds no per-run state and may run several
// tasks one after another or concurrently.
type Loop struct {
	provider provider.Provider
	tools    ToolSet
	cfg      Config
	observer Observer
	logger   *slog.Logger
}

// Result is the outcome of a successful run.
type Result struct {
	RunID string
	// Text is the concatenated text of the final assistant response.
	Text       string
	Iterations int
	Usage      provider.Usage
	// Turns is the full conversation, final answer included.
	Turns []conversation.Turn
}

// NewLoop validates cfg and creates a Loop. Zero config fields take their
// defaults.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Provider == nil {
		return nil, mosaicerr.New(mosaicerr.CodeAgentLoopInvalidInput, "provider is required")
	}
	if cfg.Tools == nil {
		return nil, mosaicerr.New(mosaicerr.CodeAgentLoopInvalidInput, "tool set is required")
	}
	runCfg := cfg.Config.withDefaults()
	if err := runCfg.validate(); err != nil {
		return nil, err
	}

	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		provider: cfg.Provider,
		tools:    cfg.Tools,
		cfg:      runCfg,
		observer: observer,
		logger:   logger.With("provider", cfg.Provider.Name(), "model", cfg.Provider.Model()),
	}, nil
}

// Config returns the effective configuration.
func (l *Loop) Config() Config {
	return l.cfg
}

// Run executes task against the project at projectPath. It returns a Result
// when the model finishes its answer, and a *Failure otherwise.
func (l *Loop) Run(ctx context.Context, task, projectPath string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	r := &run{
		Loop:   l,
		parent: ctx,
		conv:   conversation.New(),
		state:  StateAwaitingCompletion,
	}
	r.logger = l.logger.With("run_id", r.conv.ID())

	if err := r.conv.Append(conversation.UserText(SeedText(task, projectPath))); err != nil {
		return nil, mosaicerr.Wrap(err, mosaicerr.CodeAgentLoopInvalidInput, "seeding conversation")
	}
	if l.cfg.AllowOverwrite {
		r.logger.Warn("safety mode is off, write tools may overwrite existing files")
	}
	r.logger.Info("agent run started", "max_iterations", l.cfg.MaxIterations, "timeout", l.cfg.Timeout)

	return r.loop(runCtx)
}

// run is the state of one Run call. It is owned by a single goroutine.
type run struct {
	*Loop
	parent     context.Context
	conv       *conversation.State
	state      State
	iterations int
	usage      provider.Usage
	logger     *slog.Logger
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	req := provider.Request{
		Tools:        provider.ToolDefinitions(r.tools.Descriptors()),
		SystemPrompt: r.cfg.SystemPrompt,
		MaxTokens:    r.cfg.MaxTokens,
	}

	for {
		if r.iterations >= r.cfg.MaxIterations {
			return nil, r.fail(ReasonLoopBudgetExceeded, nil,
				"no final answer after %d iterations", r.iterations)
		}
		if ctx.Err() != nil {
			return nil, r.contextFailure(ctx)
		}

		r.iterations++
		r.observer.Iteration(r.iterations)
		logger := r.logger.With("iteration", r.iterations)

		req.Turns = r.conv.Snapshot()
		resp, err := r.complete(ctx, logger, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, r.contextFailure(ctx)
			}
			return nil, r.fail(ReasonProviderError, err, "%v", err)
		}
		r.usage.InputTokens += resp.Usage.InputTokens
		r.usage.OutputTokens += resp.Usage.OutputTokens
		logger.Debug("completion received",
			"stop_reason", resp.StopReason,
			"raw_stop_reason", resp.RawStopReason,
			"blocks", len(resp.Blocks),
		)

		switch resp.StopReason {
		case provider.StopEndTurn:
			return r.finish(resp), nil

		case provider.StopToolUse:
			if err := r.dispatch(ctx, logger, resp); err != nil {
				return nil, err
			}

		case provider.StopLengthLimit:
			return nil, r.fail(ReasonTruncatedResponse, nil,
				"response hit the output token limit (%d)", r.cfg.MaxTokens)

		default:
			return nil, r.fail(ReasonInvalidResponse, nil,
				"provider stopped with unsupported reason %q", resp.RawStopReason)
		}
	}
}

// complete calls the provider, retrying transient failures.
func (r *run) complete(ctx context.Context, logger *slog.Logger, req provider.Request) (*provider.Response, error) {
	onRetry := func(attempt int, delay time.Duration, err error) {
		logger.Warn("transient provider failure, retrying", "attempt", attempt, "delay", delay, "error", err)
		r.observer.Retrying(attempt, delay, err)
	}

	resp, attempts, err := retry(ctx, r.cfg.Retry, provider.IsTransient, onRetry, func(ctx context.Context) (*provider.Response, error) {
		return r.provider.Complete(ctx, req)
	})
	if err != nil {
		logger.Error("provider call failed", "attempts", attempts, "error", err)
		return nil, err
	}
	if resp == nil {
		return nil, provider.NewResponseError(r.provider.Name(), "empty response")
	}
	return resp, nil
}

func (r *run) dispatch(ctx context.Context, logger *slog.Logger, resp *provider.Response) error {
	uses := conversation.ToolUses(resp.Blocks)
	if len(uses) == 0 {
		return r.fail(ReasonInvalidResponse, nil, "tool_use stop without tool calls")
	}
	if err := r.conv.Append(conversation.Turn{Role: conversation.RoleAssistant, Blocks: resp.Blocks}); err != nil {
		return r.fail(ReasonInvalidResponse, err, "rejected assistant turn: %v", err)
	}
	r.transition(StateDispatching)

	for _, use := range uses {
		logger.Info("tool requested", "tool", use.Name, "tool_use_id", use.ID)
		r.observer.ToolCall(use)
	}

	results, err := dispatchUntilDone(ctx, r.tools, uses, r.cfg.ToolConcurrency)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("discarding in-flight tool results", "pending", len(uses))
			return r.contextFailure(ctx)
		}
		var collision *safewrite.PathCollisionError
		if errors.As(err, &collision) {
			return r.fail(ReasonPathCollision, err, "%v", err)
		}
		return r.fail(ReasonToolFailure, err, "%v", err)
	}

	blocks := make([]conversation.Block, 0, len(results))
	for i, res := range results {
		r.observer.ToolResult(uses[i], res.Block)
		blocks = append(blocks, res.Block)
	}
	if err := r.conv.Append(conversation.Turn{Role: conversation.RoleToolResult, Blocks: blocks}); err != nil {
		return r.fail(ReasonInvalidResponse, err, "rejected tool results: %v", err)
	}
	r.transition(StateAwaitingCompletion)
	return nil
}

// finish builds the Result for an end_turn response. Tool uses that arrive
// with end_turn are not executed.
func (r *run) finish(resp *provider.Response) *Result {
	var text []conversation.Block
	for _, b := range resp.Blocks {
		if t, ok := b.(conversation.Text); ok {
			text = append(text, t)
		}
	}
	if len(text) > 0 {
		if err := r.conv.Append(conversation.Turn{Role: conversation.RoleAssistant, Blocks: text}); err != nil {
			r.logger.Warn("final answer not recorded", "error", err)
		}
	}
	if n := len(conversation.ToolUses(resp.Blocks)); n > 0 {
		r.logger.Warn("ignoring tool calls sent with end_turn", "count", n)
	}

	r.transition(StateDone)
	r.logger.Info("agent run finished",
		"iterations", r.iterations,
		"input_tokens", r.usage.InputTokens,
		"output_tokens", r.usage.OutputTokens,
	)
	return &Result{
		RunID:      r.conv.ID(),
		Text:       conversation.TextOf(text),
		Iterations: r.iterations,
		Usage:      r.usage,
		Turns:      r.conv.Snapshot(),
	}
}

func (r *run) contextFailure(ctx context.Context) *Failure {
	if errors.Is(r.parent.Err(), context.Canceled) {
		return r.fail(ReasonCancelled, r.parent.Err(), "run cancelled")
	}
	return r.fail(ReasonTimeout, ctx.Err(), "run exceeded timeout of %s", r.cfg.Timeout)
}

func (r *run) fail(reason Reason, cause error, format string, args ...any) *Failure {
	f := newFailure(reason, r.iterations, cause, format, args...)
	r.transition(StateFailed)
	r.logger.Error("agent run failed", "reason", reason, "iterations", r.iterations, "error", f.Message)
	return f
}

func (r *run) transition(to State) {
	if r.state == to {
		return
	}
	from := r.state
	r.state = to
	r.observer.StateChanged(from, to)
}
