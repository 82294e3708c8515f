// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package agent

import (
	"time"

	"github.com/mosaic-dev/mosaic/internal/conversation"
)

// State is a phase of the loop.
type State int

const (
	StateAwaitingCompletion State = iota
	StateDispatching
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingCompletion:
		return "AwaitingCompletion"
	case StateDispatching:
		return "Dispatching"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Observer receives progress events from a run. Events arrive on the run's
// goroutine, in order. Implementations must not block for long.
type Observer interface {
	StateChanged(from, to State)
	// Iteration fires before completion call n (1-based).
	Iteration(n int)
	Retrying(attempt int, delay time.Duration, err error)
	ToolCall(use conversation.ToolUse)
	ToolResult(use conversation.ToolUse, result conversation.ToolResult)
}

// NopObserver ignores every event. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State)                                {}
func (NopObserver) Iteration(int)                                            {}
func (NopObserver) Retrying(int, time.Duration, error)                       {}
func (NopObserver) ToolCall(conversation.ToolUse)                            {}
func (NopObserver) ToolResult(conversation.ToolUse, conversation.ToolResult) {}
