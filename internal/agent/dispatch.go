// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package agent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/tool"
)

// ToolSet is the part of tool.Registry the loop depends on.
type ToolSet interface {
	Descriptors() []tool.Descriptor
	Dispatch(ctx context.Context, use conversation.ToolUse) tool.Result
}

// dispatchAll runs uses with at most limit handlers in flight. results[i]
// always answers uses[i], whatever order the handlers finish in. The first
// fatal tool error stops new handlers from starting and is returned.
func dispatchAll(ctx context.Context, tools ToolSet, uses []conversation.ToolUse, limit int) ([]tool.Result, error) {
	results := make([]tool.Result, len(uses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, use := range uses {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = tools.Dispatch(gctx, use)
			return results[i].Abort
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type dispatchOutcome struct {
	results []tool.Result
	err     error
}

// dispatchUntilDone is dispatchAll bounded by ctx. When ctx ends first the
// in-flight results are dropped; handlers see the cancellation through
// their own context and finish on their own.
func dispatchUntilDone(ctx context.Context, tools ToolSet, uses []conversation.ToolUse, limit int) ([]tool.Result, error) {
	done := make(chan dispatchOutcome, 1)
	go func() {
		results, err := dispatchAll(ctx, tools, uses, limit)
		done <- dispatchOutcome{results: results, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return out.results, out.err
	}
}
