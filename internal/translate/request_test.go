package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/config"
)

func testConfig() *config.ProviderConfig {
	return &config.ProviderConfig{
		BaseURL:         "https://openrouter.ai/api/v1",
		EndpointKind:    config.EndpointOpenAI,
		ProviderLabel:   "openrouter",
		APIKey:          "test-key",
		ReasoningModel:  "anthropic/claude-opus-4.5",
		CompletionModel: "anthropic/claude-sonnet-4.5",
		ValueModel:      "anthropic/claude-haiku-4.5",
	}
}

func TestSelectModel(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name string
		req  *anthropicapi.Request
		want string
	}{
		{
			name: "thinking block selects reasoning model",
			req:  &anthropicapi.Request{Model: "claude-3-5-sonnet", Thinking: &anthropicapi.Thinking{Type: "enabled", BudgetTokens: 1024}},
			want: cfg.ReasoningModel,
		},
		{
			name: "opus alias selects reasoning model",
			req:  &anthropicapi.Request{Model: "claude-opus-4-20250514"},
			want: cfg.ReasoningModel,
		},
		{
			name: "sonnet alias selects completion model",
			req:  &anthropicapi.Request{Model: "claude-3-5-sonnet-20241022"},
			want: cfg.CompletionModel,
		},
		{
			name: "haiku alias selects completion model",
			req:  &anthropicapi.Request{Model: "claude-3-5-haiku-20241022"},
			want: cfg.CompletionModel,
		},
		{
			name: "value alias selects value model",
			req:  &anthropicapi.Request{Model: "my-value-model"},
			want: cfg.ValueModel,
		},
		{
			name: "unrecognized alias falls back to completion model",
			req:  &anthropicapi.Request{Model: "something-unknown"},
			want: cfg.CompletionModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectModel(cfg, tt.req))
		})
	}
}

func TestToOpenAIRequest_SystemString(t *testing.T) {
	cfg := testConfig()
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		System:    json.RawMessage(`"You are a helpful assistant."`),
		MaxTokens: 1024,
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`"hello"`)},
		},
	}

	out, err := ToOpenAIRequest(cfg, req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "system", out.Messages[0].Role)
	assert.Equal(t, "You are a helpful assistant.", out.Messages[0].Content)
	assert.Equal(t, "user", out.Messages[1].Role)
	assert.Equal(t, "hello", out.Messages[1].Content)
	assert.Equal(t, 1024, out.MaxTokens)
	assert.Zero(t, out.MaxCompletionTokens)
}

func TestToOpenAIRequest_SystemBlockArrayDropsNonText(t *testing.T) {
	cfg := testConfig()
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		System:    json.RawMessage(`[{"type":"text","text":"part one"},{"type":"image","source":{"type":"base64","media_type":"image/png","data":"abc123"}},{"type":"text","text":"part two"}]`),
		MaxTokens: 10,
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`"hi"`)},
		},
	}

	out, err := ToOpenAIRequest(cfg, req)
	require.NoError(t, err)
	assert.Equal(t, "part one\npart two", out.Messages[0].Content)
}

func TestToOpenAIRequest_RenameMaxTokensForO1(t *testing.T) {
	cfg := testConfig()
	cfg.CompletionModel = "o1-preview"
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 2048,
		Messages:  []anthropicapi.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	}

	out, err := ToOpenAIRequest(cfg, req)
	require.NoError(t, err)
	assert.Equal(t, 2048, out.MaxCompletionTokens)
	assert.Zero(t, out.MaxTokens)
}

func TestToOpenAIRequest_ToolResultFlattensToToolMessage(t *testing.T) {
	cfg := testConfig()
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 100,
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`"What's the weather?"`)},
			{Role: "assistant", Content: json.RawMessage(`[{"type":"tool_use","id":"toolu_01","name":"get_weather","input":{"city":"nyc"}}]`)},
			{Role: "user", Content: json.RawMessage(`[{"type":"tool_result","tool_use_id":"toolu_01","content":"72F and sunny"}]`)},
		},
	}

	out, err := ToOpenAIRequest(cfg, req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)

	assistantMsg := out.Messages[1]
	require.Len(t, assistantMsg.ToolCalls, 1)
	assert.Equal(t, "toolu_01", assistantMsg.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", assistantMsg.ToolCalls[0].Function.Name)

	toolMsg := out.Messages[2]
	assert.Equal(t, "tool", toolMsg.Role)
	assert.Equal(t, "toolu_01", toolMsg.ToolCallID)
	assert.Equal(t, "72F and sunny", toolMsg.Content)
}

func TestToOpenAIRequest_ToolResultUnknownIDFails(t *testing.T) {
	cfg := testConfig()
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 100,
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`[{"type":"tool_result","tool_use_id":"toolu_unknown","content":"x"}]`)},
		},
	}

	_, err := ToOpenAIRequest(cfg, req)
	assert.Error(t, err)
}

func TestToOpenAIRequest_ImageBlockBecomesImageURL(t *testing.T) {
	cfg := testConfig()
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 100,
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`[
				{"type":"text","text":"what is this?"},
				{"type":"image","source":{"type":"base64","media_type":"image/png","data":"abc123"}}
			]`)},
		},
	}

	out, err := ToOpenAIRequest(cfg, req)
	require.NoError(t, err)
	parts, ok := out.Messages[0].Content.([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1]["type"])
}

func TestToOpenAIRequest_InvalidToolSchemaFails(t *testing.T) {
	cfg := testConfig()
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 100,
		Messages:  []anthropicapi.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
		Tools: []anthropicapi.Tool{
			{Name: "broken_tool", InputSchema: json.RawMessage(`not-json`)},
		},
	}

	_, err := ToOpenAIRequest(cfg, req)
	assert.Error(t, err)
}

func TestToOpenAIRequest_UnsupportedRoleFails(t *testing.T) {
	cfg := testConfig()
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 100,
		Messages:  []anthropicapi.Message{{Role: "narrator", Content: json.RawMessage(`"hi"`)}},
	}

	_, err := ToOpenAIRequest(cfg, req)
	assert.Error(t, err)
}

func TestToOpenAIRequest_StreamSetsIncludeUsage(t *testing.T) {
	cfg := testConfig()
	req := &anthropicapi.Request{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 100,
		Stream:    true,
		Messages:  []anthropicapi.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	}

	out, err := ToOpenAIRequest(cfg, req)
	require.NoError(t, err)
	require.NotNil(t, out.StreamOptions)
	assert.True(t, out.StreamOptions.IncludeUsage)
}
