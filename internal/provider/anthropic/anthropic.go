// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package anthropic adapts the Anthropic Messages API to provider.Provider.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/provider"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
	"github.com/mosaic-dev/mosaic/pkg/health"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

const defaultMaxTokens = 4096

// Provider implements provider.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	model  string
	health *provider.HealthTracker
	logger *slog.Logger
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

// New creates an Anthropic provider. It fails when the API key is missing.
func New(cfg provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, mosaicerr.New(mosaicerr.CodeProviderRequestInvalid, "anthropic: missing api_key in config",
			mosaicerr.FieldProvider(provider.NameAnthropic))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// the agent loop owns retries
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
		client: anthropicsdk.NewClient(opts...),
		model:  model,
		health: provider.MustHealthTracker(provider.NameAnthropic),
		logger: logger.With("provider", provider.NameAnthropic, "model", model),
	}, nil
}

// Factory adapts New to provider.Factory.
func Factory(cfg provider.Config) (provider.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string  { return provider.NameAnthropic }
func (p *Provider) Model() string { return p.model }

func (p *Provider) HealthMetrics() health.Metrics {
	return p.health.HealthMetrics()
}

func (p *Provider) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params, err := buildParams(p.model, req)
	if err != nil {
		return nil, err
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		perr := classify(err)
		p.health.RecordFailure(perr)
		p.logger.Debug("messages call failed", "error", err, "kind", perr.Kind)
		return nil, perr
	}

	resp, err := convertResponse(msg)
	if err != nil {
		p.health.RecordFailure(err)
		return nil, err
	}
	p.health.RecordSuccess()
	p.logger.Debug("messages call finished",
		"stop_reason", msg.StopReason,
		"blocks", len(resp.Blocks),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

func buildParams(model string, req provider.Request) (anthropicsdk.MessageNewParams, error) {
	msgs, err := convertTurns(req.Turns)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params, nil
}

// convertTurns maps turns onto Messages API messages. Tool results travel
// in a user message.
func convertTurns(turns []conversation.Turn) ([]anthropicsdk.MessageParam, error) {
	result := make([]anthropicsdk.MessageParam, 0, len(turns))

	for _, turn := range turns {
		blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, len(turn.Blocks))
		for _, b := range turn.Blocks {
			switch v := b.(type) {
			case conversation.Text:
				if v.Value == "" {
					continue
				}
				blocks = append(blocks, anthropicsdk.NewTextBlock(v.Value))
			case conversation.ToolUse:
				input := v.Input
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(v.ID, input, v.Name))
			case conversation.ToolResult:
				blocks = append(blocks, anthropicsdk.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		switch turn.Role {
		case conversation.RoleUser, conversation.RoleToolResult:
			result = append(result, anthropicsdk.NewUserMessage(blocks...))
		case conversation.RoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(blocks...))
		default:
			return nil, provider.NewResponseError(provider.NameAnthropic, "unsupported turn role "+string(turn.Role))
		}
	}

	return result, nil
}

func convertTools(tools []provider.ToolDefinition) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props, required := provider.SchemaParts(t.InputSchema)
		result = append(result, anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.String(t.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		})
	}
	return result
}

func convertResponse(msg *anthropicsdk.Message) (*provider.Response, error) {
	resp := &provider.Response{
		StopReason:    mapStopReason(msg.StopReason),
		RawStopReason: string(msg.StopReason),
		Usage: provider.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Blocks = append(resp.Blocks, conversation.Text{Value: block.Text})
		case "tool_use":
			input := map[string]any{}
			if len(block.Input) > 0 && string(block.Input) != "null" {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return nil, provider.NewResponseError(provider.NameAnthropic,
						"tool_use "+block.ID+" input is not a JSON object: "+err.Error())
				}
			}
			resp.Blocks = append(resp.Blocks, conversation.ToolUse{ID: block.ID, Name: block.Name, Input: input})
		}
	}

	return resp, nil
}

func mapStopReason(r anthropicsdk.StopReason) provider.StopReason {
	switch r {
	case anthropicsdk.StopReasonEndTurn, anthropicsdk.StopReasonStopSequence:
		return provider.StopEndTurn
	case anthropicsdk.StopReasonToolUse:
		return provider.StopToolUse
	case anthropicsdk.StopReasonMaxTokens:
		return provider.StopLengthLimit
	default:
		return provider.StopError
	}
}

func classify(err error) *provider.Error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return provider.NewError(provider.NameAnthropic, apiErr.StatusCode, apiErr.Error(), err)
	}
	return provider.NewError(provider.NameAnthropic, 0, err.Error(), err)
}
