// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package openai adapts the OpenAI Chat Completions API to
// provider.Provider.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/provider"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
	"github.com/mosaic-dev/mosaic/pkg/health"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4.1"

// Provider implements provider.Provider using Chat Completions.
type Provider struct {
	client openaisdk.Client
	model  string
	health *provider.HealthTracker
	logger *slog.Logger
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

// New creates an OpenAI provider. It fails when the API key is missing.
func New(cfg provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, mosaicerr.New(mosaicerr.CodeProviderRequestInvalid, "openai: missing api_key in config",
			mosaicerr.FieldProvider(provider.NameOpenAI))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		client: openaisdk.NewClient(opts...),
		model:  model,
		health: provider.MustHealthTracker(provider.NameOpenAI),
		logger: logger.With("provider", provider.NameOpenAI, "model", model),
	}, nil
}

// Factory adapts New to provider.Factory.
func Factory(cfg provider.Config) (provider.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string  { return provider.NameOpenAI }
func (p *Provider) Model() string { return p.model }

func (p *Provider) HealthMetrics() health.Metrics {
	return p.health.HealthMetrics()
}

func (p *Provider) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params := buildParams(p.model, req)

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		perr := classify(err)
		p.health.RecordFailure(perr)
		p.logger.Debug("chat completion failed", "error", err, "kind", perr.Kind)
		return nil, perr
	}

	resp, err := p.convertResponse(completion)
	if err != nil {
		p.health.RecordFailure(err)
		return nil, err
	}
	p.health.RecordSuccess()
	return resp, nil
}

func buildParams(model string, req provider.Request) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: convertTurns(req.Turns, req.SystemPrompt),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params
}

// convertTurns flattens turns into chat messages. An assistant turn becomes
// one message carrying its text and tool calls; a tool-result turn becomes
// one tool message per result, in order.
func convertTurns(turns []conversation.Turn, systemPrompt string) []openaisdk.ChatCompletionMessageParamUnion {
	var result []openaisdk.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}

	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			result = append(result, openaisdk.UserMessage(conversation.TextOf(turn.Blocks)))

		case conversation.RoleAssistant:
			msg := openaisdk.ChatCompletionAssistantMessageParam{}
			if text := conversation.TextOf(turn.Blocks); text != "" {
				msg.Content.OfString = param.NewOpt(text)
			}
			for _, use := range conversation.ToolUses(turn.Blocks) {
				args, err := json.Marshal(orEmpty(use.Input))
				if err != nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: use.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      use.Name,
						Arguments: string(args),
					},
				})
			}
			result = append(result, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &msg})

		case conversation.RoleToolResult:
			for _, b := range turn.Blocks {
				if r, ok := b.(conversation.ToolResult); ok {
					result = append(result, openaisdk.ToolMessage(r.Content, r.ToolUseID))
				}
			}
		}
	}
	return result
}

func convertTools(tools []provider.ToolDefinition) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(schema),
			},
		})
	}
	return result
}

func (p *Provider) convertResponse(c *openaisdk.ChatCompletion) (*provider.Response, error) {
	if len(c.Choices) == 0 {
		return nil, provider.NewResponseError(provider.NameOpenAI, "completion has no choices")
	}
	choice := c.Choices[0]

	resp := &provider.Response{
		StopReason:    mapFinishReason(choice.FinishReason),
		RawStopReason: choice.FinishReason,
		Usage: provider.Usage{
			InputTokens:  int(c.Usage.PromptTokens),
			OutputTokens: int(c.Usage.CompletionTokens),
		},
	}

	if choice.Message.Content != "" {
		resp.Blocks = append(resp.Blocks, conversation.Text{Value: choice.Message.Content})
	}
	for _, call := range choice.Message.ToolCalls {
		id := call.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		use := conversation.ToolUse{ID: id, Name: call.Function.Name, Input: map[string]any{}}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &use.Input); err != nil {
				p.logger.Debug("tool call arguments are not a JSON object",
					"tool", call.Function.Name, "tool_use_id", id, "error", err)
				use.Input = map[string]any{}
				use.InputErr = "arguments are not valid JSON: " + err.Error()
			}
		}
		resp.Blocks = append(resp.Blocks, use)
	}

	provider.NormalizeToolStop(resp)
	return resp, nil
}

func mapFinishReason(reason string) provider.StopReason {
	switch reason {
	case "stop":
		return provider.StopEndTurn
	case "tool_calls", "function_call":
		return provider.StopToolUse
	case "length":
		return provider.StopLengthLimit
	default:
		return provider.StopError
	}
}

func classify(err error) *provider.Error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return provider.NewError(provider.NameOpenAI, apiErr.StatusCode, apiErr.Error(), err)
	}
	return provider.NewError(provider.NameOpenAI, 0, err.Error(), err)
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
