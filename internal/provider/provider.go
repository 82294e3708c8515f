// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package provider defines the vendor-neutral completion contract and the
// shared pieces used by the anthropic, openai and google adapters.
package provider

import (
	"context"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/tool"
	"github.com/mosaic-dev/mosaic/pkg/health"
)

// Provider completes a conversation against one vendor and model.
type Provider interface {
	// Name is the canonical provider name, e.g. "anthropic".
	Name() string
	// Model is the model every Complete call targets.
	Model() string
	// Complete sends the turns and tools and returns the normalized reply.
	// Failures are *Error values.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// HealthReporter is implemented by providers that track call outcomes.
type HealthReporter interface {
	HealthMetrics() health.Metrics
}

// Request is one completion call.
type Request struct {
	Turns        []conversation.Turn
	Tools        []ToolDefinition
	SystemPrompt string
	MaxTokens    int
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// StopReason is the canonical reason a completion ended.
type StopReason string

const (
	StopEndTurn     StopReason = "end_turn"
	StopToolUse     StopReason = "tool_use"
	StopLengthLimit StopReason = "length_limit"
	StopError       StopReason = "error"
)

// Response is the canonical form of one completion.
type Response struct {
	StopReason StopReason
	// Blocks are Text and ToolUse blocks in the order the vendor sent them.
	Blocks []conversation.Block
	// RawStopReason is the vendor's own finish vocabulary, for diagnostics.
	RawStopReason string
	Usage         Usage
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ModelRef renders "provider/model" for display.
func ModelRef(p Provider) string {
	return p.Name() + "/" + p.Model()
}

// ToolDefinitions converts registry descriptors into provider definitions.
func ToolDefinitions(ds []tool.Descriptor) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(ds))
	for _, d := range ds {
		defs = append(defs, ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Schema,
		})
	}
	return defs
}

// SchemaParts splits a JSON schema object into its properties and required
// field names. Required may be []string or []any.
func SchemaParts(schema map[string]any) (map[string]any, []string) {
	if schema == nil {
		return map[string]any{}, nil
	}

	props, _ := schema["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}

	var required []string
	switch req := schema["required"].(type) {
	case []string:
		required = append(required, req...)
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}
	return props, required
}

// NormalizeToolStop promotes an end-of-turn reply that still carries tool
// uses to StopToolUse. Used for vendors whose finish reason does not
// reliably reflect tool calls.
func NormalizeToolStop(resp *Response) {
	if resp.StopReason == StopEndTurn && len(conversation.ToolUses(resp.Blocks)) > 0 {
		resp.StopReason = StopToolUse
	}
}
