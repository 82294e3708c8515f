// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/provider"
	"github.com/mosaic-dev/mosaic/internal/provider/openai"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

type fakeChat struct {
	status int
	body   string
	got    map[string]any
}

func (f *fakeChat) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		f.got = map[string]any{}
		require.NoError(t, json.Unmarshal(raw, &f.got))

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
		}
		_, _ = io.WriteString(w, f.body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server) *openai.Provider {
	t.Helper()
	p, err := openai.New(provider.Config{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return p
}

func completion(finish, message string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4.1",
		"usage":{"prompt_tokens":20,"completion_tokens":5,"total_tokens":25},
		"choices":[{"index":0,"finish_reason":%q,"message":%s}]}`, finish, message)
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := openai.New(provider.Config{})
	require.Error(t, err)
	assert.True(t, mosaicerr.HasCode(err, mosaicerr.CodeProviderRequestInvalid))
}

func TestComplete_ToolCallsAndWireShape(t *testing.T) {
	fake := &fakeChat{body: completion("tool_calls", `{"role":"assistant","content":null,"tool_calls":[
		{"id":"call_a","type":"function","function":{"name":"search_web","arguments":"{\"query\":\"bento grid\"}"}},
		{"id":"call_b","type":"function","function":{"name":"fetch_url","arguments":"{\"url\":\"https://x.dev\"}"}}
	]}`)}
	p := newProvider(t, fake.server(t))

	turns := []conversation.Turn{
		conversation.UserText("Task: modernize"),
		{Role: conversation.RoleAssistant, Blocks: []conversation.Block{
			conversation.Text{Value: "Let me look."},
			conversation.ToolUse{ID: "call_1", Name: "list_files", Input: map[string]any{"directory": "."}},
			conversation.ToolUse{ID: "call_2", Name: "read_file", Input: map[string]any{"file_path": "a"}},
		}},
		{Role: conversation.RoleToolResult, Blocks: []conversation.Block{
			conversation.ToolResult{ToolUseID: "call_1", Content: "a"},
			conversation.ToolResult{ToolUseID: "call_2", Content: "Error: File a not found", IsError: true},
		}},
	}

	resp, err := p.Complete(context.Background(), provider.Request{
		Turns:        turns,
		SystemPrompt: "system prompt",
		MaxTokens:    2048,
		Tools: []provider.ToolDefinition{{
			Name: "search_web", Description: "search",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, provider.StopToolUse, resp.StopReason)
	assert.Equal(t, provider.Usage{InputTokens: 20, OutputTokens: 5}, resp.Usage)
	require.Len(t, resp.Blocks, 2)
	assert.Equal(t, conversation.ToolUse{ID: "call_a", Name: "search_web", Input: map[string]any{"query": "bento grid"}}, resp.Blocks[0])
	assert.Equal(t, "call_b", resp.Blocks[1].(conversation.ToolUse).ID)

	msgs := fake.got["messages"].([]any)
	require.Len(t, msgs, 5)
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.(map[string]any)["role"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool", "tool"}, roles)

	assistant := msgs[2].(map[string]any)
	assert.Equal(t, "Let me look.", assistant["content"])
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 2)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "list_files", fn["name"])
	assert.JSONEq(t, `{"directory":"."}`, fn["arguments"].(string))

	assert.Equal(t, "call_1", msgs[3].(map[string]any)["tool_call_id"])
	assert.Equal(t, "call_2", msgs[4].(map[string]any)["tool_call_id"])
	assert.EqualValues(t, 2048, fake.got["max_completion_tokens"])
	assert.Len(t, fake.got["tools"], 1)
}

func TestComplete_FinishReasonMapping(t *testing.T) {
	tests := []struct {
		finish string
		want   provider.StopReason
	}{
		{"stop", provider.StopEndTurn},
		{"length", provider.StopLengthLimit},
		{"content_filter", provider.StopError},
		{"tool_calls", provider.StopToolUse},
	}
	for _, tt := range tests {
		t.Run(tt.finish, func(t *testing.T) {
			fake := &fakeChat{body: completion(tt.finish, `{"role":"assistant","content":"Done"}`)}
			p := newProvider(t, fake.server(t))

			resp, err := p.Complete(context.Background(), provider.Request{Turns: []conversation.Turn{conversation.UserText("hi")}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StopReason)
			assert.Equal(t, "Done", conversation.TextOf(resp.Blocks))
		})
	}
}

func TestComplete_StopWithToolCallsIsNormalized(t *testing.T) {
	fake := &fakeChat{body: completion("stop", `{"role":"assistant","content":"Checking","tool_calls":[
		{"id":"","type":"function","function":{"name":"list_files","arguments":"not json"}}]}`)}
	p := newProvider(t, fake.server(t))

	resp, err := p.Complete(context.Background(), provider.Request{Turns: []conversation.Turn{conversation.UserText("hi")}})
	require.NoError(t, err)
	assert.Equal(t, provider.StopToolUse, resp.StopReason)

	uses := conversation.ToolUses(resp.Blocks)
	require.Len(t, uses, 1)
	assert.True(t, strings.HasPrefix(uses[0].ID, "call_"), "missing ids are synthesized")
	assert.Empty(t, uses[0].Input)
	assert.Contains(t, uses[0].InputErr, "arguments are not valid JSON")
}

func TestComplete_UndecodableArgumentsAreCarried(t *testing.T) {
	fake := &fakeChat{body: completion("tool_calls", `{"role":"assistant","content":null,"tool_calls":[
		{"id":"call_1","type":"function","function":{"name":"list_files","arguments":"{\"directory\": \".\""}},
		{"id":"call_2","type":"function","function":{"name":"list_files","arguments":"{\"directory\":\"src\"}"}}]}`)}
	p := newProvider(t, fake.server(t))

	resp, err := p.Complete(context.Background(), provider.Request{Turns: []conversation.Turn{conversation.UserText("hi")}})
	require.NoError(t, err)

	uses := conversation.ToolUses(resp.Blocks)
	require.Len(t, uses, 2)
	assert.Empty(t, uses[0].Input)
	assert.True(t, strings.HasPrefix(uses[0].InputErr, "arguments are not valid JSON: "), uses[0].InputErr)
	assert.Equal(t, map[string]any{"directory": "src"}, uses[1].Input)
	assert.Empty(t, uses[1].InputErr)
}

func TestComplete_NoChoices(t *testing.T) {
	fake := &fakeChat{body: `{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[]}`}
	p := newProvider(t, fake.server(t))

	_, err := p.Complete(context.Background(), provider.Request{Turns: []conversation.Turn{conversation.UserText("hi")}})
	require.Error(t, err)
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.Fatal, perr.Kind)
}

func TestComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantKind provider.ErrorKind
	}{
		{http.StatusTooManyRequests, provider.Transient},
		{http.StatusBadGateway, provider.Transient},
		{http.StatusUnauthorized, provider.Fatal},
		{http.StatusUnprocessableEntity, provider.Fatal},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP %d", tt.status), func(t *testing.T) {
			fake := &fakeChat{status: tt.status, body: `{"error":{"message":"nope","type":"x"}}`}
			p := newProvider(t, fake.server(t))

			_, err := p.Complete(context.Background(), provider.Request{Turns: []conversation.Turn{conversation.UserText("hi")}})
			var perr *provider.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantKind, perr.Kind)
			assert.Equal(t, tt.status, perr.StatusCode)
		})
	}
}
