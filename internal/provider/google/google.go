// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package google adapts the Gemini GenerateContent API to
// provider.Provider.
package google

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/provider"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
	"github.com/mosaic-dev/mosaic/pkg/health"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-pro"

// Provider implements provider.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
	health *provider.HealthTracker
	logger *slog.Logger
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

// New creates a Google provider. It fails when the API key is missing.
func New(cfg provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, mosaicerr.New(mosaicerr.CodeProviderRequestInvalid, "google: missing api_key in config",
			mosaicerr.FieldProvider(provider.NameGoogle))
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, mosaicerr.Wrapf(err, mosaicerr.CodeProviderRequestInvalid, "google: creating client")
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
		client: client,
		model:  model,
		health: provider.MustHealthTracker(provider.NameGoogle),
		logger: logger.With("provider", provider.NameGoogle, "model", model),
	}, nil
}

// Factory adapts New to provider.Factory.
func Factory(cfg provider.Config) (provider.Provider, error) {
	return New(cfg)
}

func (p *Provider) Name() string  { return provider.NameGoogle }
func (p *Provider) Model() string { return p.model }

func (p *Provider) HealthMetrics() health.Metrics {
	return p.health.HealthMetrics()
}

func (p *Provider) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	contents := convertTurns(req.Turns)

	out, err := p.client.Models.GenerateContent(ctx, p.model, contents, buildConfig(req))
	if err != nil {
		perr := classify(err)
		p.health.RecordFailure(perr)
		p.logger.Debug("generate content failed", "error", err, "kind", perr.Kind)
		return nil, perr
	}

	resp, err := convertResponse(out)
	if err != nil {
		p.health.RecordFailure(err)
		return nil, err
	}
	p.health.RecordSuccess()
	return resp, nil
}

func buildConfig(req provider.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if len(req.Tools) > 0 {
		cfg.Tools = convertTools(req.Tools)
	}
	return cfg
}

// convertTurns maps turns to Gemini contents. Function responses need the
// function name, so names are remembered from the preceding model turn.
func convertTurns(turns []conversation.Turn) []*genai.Content {
	result := make([]*genai.Content, 0, len(turns))
	names := make(map[string]string)

	for _, turn := range turns {
		var parts []*genai.Part
		for _, b := range turn.Blocks {
			switch v := b.(type) {
			case conversation.Text:
				if v.Value != "" {
					parts = append(parts, &genai.Part{Text: v.Value})
				}
			case conversation.ToolUse:
				names[v.ID] = v.Name
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   v.ID,
					Name: v.Name,
					Args: v.Input,
				}})
			case conversation.ToolResult:
				key := "output"
				if v.IsError {
					key = "error"
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       v.ToolUseID,
					Name:     names[v.ToolUseID],
					Response: map[string]any{key: v.Content},
				}})
			}
		}
		if len(parts) == 0 {
			continue
		}

		role := genai.RoleUser
		if turn.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		result = append(result, &genai.Content{Role: role, Parts: parts})
	}
	return result
}

func convertTools(tools []provider.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertResponse(out *genai.GenerateContentResponse) (*provider.Response, error) {
	if out == nil || len(out.Candidates) == 0 {
		msg := "response has no candidates"
		if out != nil && out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			msg += ": prompt blocked (" + string(out.PromptFeedback.BlockReason) + ")"
		}
		return nil, provider.NewResponseError(provider.NameGoogle, msg)
	}
	cand := out.Candidates[0]

	resp := &provider.Response{
		StopReason:    mapFinishReason(cand.FinishReason),
		RawStopReason: string(cand.FinishReason),
	}
	if out.UsageMetadata != nil {
		resp.Usage = provider.Usage{
			InputTokens:  int(out.UsageMetadata.PromptTokenCount),
			OutputTokens: int(out.UsageMetadata.CandidatesTokenCount),
		}
	}

	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			switch {
			case part == nil || part.Thought:
			case part.FunctionCall != nil:
				fc := part.FunctionCall
				id := fc.ID
				if id == "" {
					id = uuid.NewString()
				}
				args := fc.Args
				if args == nil {
					args = map[string]any{}
				}
				resp.Blocks = append(resp.Blocks, conversation.ToolUse{ID: id, Name: fc.Name, Input: args})
			case part.Text != "":
				resp.Blocks = append(resp.Blocks, conversation.Text{Value: part.Text})
			}
		}
	}

	provider.NormalizeToolStop(resp)
	return resp, nil
}

func mapFinishReason(r genai.FinishReason) provider.StopReason {
	switch r {
	case genai.FinishReasonStop:
		return provider.StopEndTurn
	case genai.FinishReasonMaxTokens:
		return provider.StopLengthLimit
	default:
		return provider.StopError
	}
}

func classify(err error) *provider.Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.NewError(provider.NameGoogle, apiErr.Code, apiErr.Error(), err)
	}
	return provider.NewError(provider.NameGoogle, 0, err.Error(), err)
}
