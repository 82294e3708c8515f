// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package providertest provides a scripted provider.Provider for tests.
package providertest

import (
	"context"
	"sync"
	"time"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/provider"
)

// Name is the provider name reported by Scripted.
const Name = "scripted"

// Step is one scripted reply. Exactly one of Response and Err should be set.
type Step struct {
	Response *provider.Response
	Err      error
	// Delay holds the reply back. A cancelled context ends the wait with a
	// transient error, as a real adapter would report it.
	Delay time.Duration
}

// Respond returns a Step replying with resp.
func Respond(resp *provider.Response) Step { return Step{Response: resp} }

// Fail returns a Step failing with err.
func Fail(err error) Step { return Step{Err: err} }

// TransientErr returns a retryable provider error.
func TransientErr(msg string) *provider.Error {
	return provider.NewError(Name, 503, msg, nil)
}

// FatalErr returns a non-retryable provider error.
func FatalErr(msg string) *provider.Error {
	return provider.NewError(Name, 401, msg, nil)
}

// EndTurn builds a final text response.
func EndTurn(text string) *provider.Response {
	return &provider.Response{
		StopReason: provider.StopEndTurn,
		Blocks:     []conversation.Block{conversation.Text{Value: text}},
	}
}

// ToolCalls builds a response requesting the given tool uses.
func ToolCalls(uses ...conversation.ToolUse) *provider.Response {
	blocks := make([]conversation.Block, 0, len(uses))
	for _, u := range uses {
		blocks = append(blocks, u)
	}
	return &provider.Response{StopReason: provider.StopToolUse, Blocks: blocks}
}

// Scripted replays its steps in order and records every request. Once the
// script is exhausted it repeats the last step when Repeat is set, and
// fails with a fatal error otherwise.
type Scripted struct {
	ModelName string
	Repeat    bool

	mu       sync.Mutex
	steps    []Step
	requests []provider.Request
}

var _ provider.Provider = (*Scripted)(nil)

// New creates a Scripted provider.
func New(steps ...Step) *Scripted {
	return &Scripted{ModelName: "scripted-model", steps: steps}
}

func (s *Scripted) Name() string  { return Name }
func (s *Scripted) Model() string { return s.ModelName }

func (s *Scripted) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	var step Step
	switch {
	case n < len(s.steps):
		step = s.steps[n]
	case s.Repeat && len(s.steps) > 0:
		step = s.steps[len(s.steps)-1]
	default:
		s.mu.Unlock()
		return nil, provider.NewResponseError(Name, "script exhausted")
	}
	s.mu.Unlock()

	if step.Delay > 0 {
		t := time.NewTimer(step.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, provider.NewError(Name, 0, ctx.Err().Error(), ctx.Err())
		case <-t.C:
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

// Calls returns how many times Complete was called.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the recorded requests in call order.
func (s *Scripted) Requests() []provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Request(nil), s.requests...)
}
