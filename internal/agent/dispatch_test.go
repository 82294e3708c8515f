// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/tool"
)

// funcTools dispatches every use through fn.
type funcTools func(ctx context.Context, use conversation.ToolUse) tool.Result

func (funcTools) Descriptors() []tool.Descriptor { return nil }

func (f funcTools) Dispatch(ctx context.Context, use conversation.ToolUse) tool.Result {
	return f(ctx, use)
}

func uses(ids ...string) []conversation.ToolUse {
	out := make([]conversation.ToolUse, 0, len(ids))
	for _, id := range ids {
		out = append(out, conversation.ToolUse{ID: id, Name: "t"})
	}
	return out
}

func TestDispatchAll_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	tools := funcTools(func(_ context.Context, use conversation.ToolUse) tool.Result {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return tool.Result{Block: conversation.ToolResult{ToolUseID: use.ID, Content: use.ID}}
	})

	results, err := dispatchAll(context.Background(), tools, uses("a", "b", "c", "d", "e", "f"), 2)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		assert.Equal(t, id, results[i].Block.ToolUseID)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatchAll_AbortStopsTheBatch(t *testing.T) {
	abort := errors.New("collision")
	var ran atomic.Int32
	tools := funcTools(func(_ context.Context, use conversation.ToolUse) tool.Result {
		ran.Add(1)
		if use.ID == "a" {
			return tool.Result{Abort: abort}
		}
		return tool.Result{Block: conversation.ToolResult{ToolUseID: use.ID}}
	})

	results, err := dispatchAll(context.Background(), tools, uses("a", "b", "c"), 1)
	assert.ErrorIs(t, err, abort)
	assert.Nil(t, results)
	assert.Equal(t, int32(1), ran.Load(), "later calls are skipped once the batch aborts")
}

func TestDispatchUntilDone_ContextEndsFirst(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	tools := funcTools(func(context.Context, conversation.ToolUse) tool.Result {
		<-block
		return tool.Result{}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	results, err := dispatchUntilDone(ctx, tools, uses("a"), 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, results)
}
