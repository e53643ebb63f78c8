package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallysavvy/anthropic-proxy/internal/openaiapi"
)

func TestFromOpenAIResponse_TextScenario(t *testing.T) {
	resp := &openaiapi.ChatResponse{
		Choices: []openaiapi.Choice{
			{
				Message:      openaiapi.Message{Role: "assistant", Content: "Hello!"},
				FinishReason: "stop",
			},
		},
		Usage: openaiapi.Usage{PromptTokens: 1, CompletionTokens: 2},
	}

	out := FromOpenAIResponse(resp, "anthropic/claude-sonnet-4.5")
	assert.Equal(t, "assistant", out.Role)
	require.Len(t, out.Content, 1)
	assert.Equal(t, "text", out.Content[0].Type)
	assert.Equal(t, "Hello!", out.Content[0].Text)
	assert.Equal(t, "end_turn", out.StopReason)
	assert.Equal(t, 1, out.Usage.InputTokens)
	assert.Equal(t, 2, out.Usage.OutputTokens)
}

func TestFromOpenAIResponse_ToolCalls(t *testing.T) {
	resp := &openaiapi.ChatResponse{
		Choices: []openaiapi.Choice{
			{
				Message: openaiapi.Message{
					Role: "assistant",
					ToolCalls: []openaiapi.ToolCall{
						{ID: "call_1", Type: "function", Function: openaiapi.ToolCallFunc{Name: "get_weather", Arguments: `{"location":"Paris"}`}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
	}

	out := FromOpenAIResponse(resp, "m")
	require.Len(t, out.Content, 1)
	assert.Equal(t, "tool_use", out.Content[0].Type)
	assert.Equal(t, "call_1", out.Content[0].ID)
	assert.Equal(t, "get_weather", out.Content[0].Name)
	assert.JSONEq(t, `{"location":"Paris"}`, string(out.Content[0].Input))
	assert.Equal(t, "tool_use", out.StopReason)
}

// Malformed tool-call arguments degrade to an empty input object; they never
// fail the whole response.
func TestFromOpenAIResponse_MalformedToolArgumentsNeverFailsResponse(t *testing.T) {
	resp := &openaiapi.ChatResponse{
		Choices: []openaiapi.Choice{
			{
				Message: openaiapi.Message{
					ToolCalls: []openaiapi.ToolCall{
						{ID: "call_1", Function: openaiapi.ToolCallFunc{Name: "broken", Arguments: `{not-json`}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
	}

	out := FromOpenAIResponse(resp, "m")
	require.Len(t, out.Content, 1)
	assert.JSONEq(t, `{}`, string(out.Content[0].Input))
}

func TestFromOpenAIResponse_GeneratesIDWhenMissing(t *testing.T) {
	resp := &openaiapi.ChatResponse{Choices: []openaiapi.Choice{{FinishReason: "stop"}}}
	out := FromOpenAIResponse(resp, "m")
	assert.Contains(t, out.ID, "msg_")
}

func TestStopReasonFromOpenAI(t *testing.T) {
	cases := map[string]string{
		"stop":           "end_turn",
		"length":         "max_tokens",
		"tool_calls":     "tool_use",
		"content_filter": "stop_sequence",
		"unknown-value":  "end_turn",
	}
	for in, want := range cases {
		assert.Equal(t, want, StopReasonFromOpenAI(in), in)
	}
}

func TestFromOpenAIResponse_EmptyChoicesStillProducesMessage(t *testing.T) {
	resp := &openaiapi.ChatResponse{}
	out := FromOpenAIResponse(resp, "m")
	assert.Equal(t, "assistant", out.Role)
	assert.Equal(t, "message", out.Type)
	assert.Equal(t, "end_turn", out.StopReason)
}
