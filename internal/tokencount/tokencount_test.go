package tokencount

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
)

func TestEstimate_SimpleTextMessage(t *testing.T) {
	req := &anthropicapi.Request{
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`"Hello world"`)},
		},
	}
	// "Hello world" is 11 chars -> ceil(11/4) == 3
	assert.Equal(t, 3, Estimate(req))
}

func TestEstimate_ToolsCountTowardTotal(t *testing.T) {
	req := &anthropicapi.Request{
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`"Hello world"`)},
		},
		Tools: []anthropicapi.Tool{
			{Name: "t", Description: "d", InputSchema: json.RawMessage(`{}`)},
		},
	}
	// Declaring a tool must push the estimate above the bare-message case.
	withoutTools := Estimate(&anthropicapi.Request{Messages: req.Messages})
	withTools := Estimate(req)
	assert.Greater(t, withTools, withoutTools)
}

// TestEstimate_Monotonic: adding a non-empty text block to any request
// strictly increases input_tokens.
func TestEstimate_Monotonic(t *testing.T) {
	base := &anthropicapi.Request{
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`"short"`)},
		},
	}
	extended := &anthropicapi.Request{
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`[{"type":"text","text":"short"},{"type":"text","text":"an extra block of text"}]`)},
		},
	}
	require.Greater(t, Estimate(extended), Estimate(base))
}

func TestEstimate_SystemStringCounted(t *testing.T) {
	withSystem := &anthropicapi.Request{
		System: json.RawMessage(`"You are a helpful assistant with a long preamble."`),
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`"hi"`)},
		},
	}
	withoutSystem := &anthropicapi.Request{
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`"hi"`)},
		},
	}
	assert.Greater(t, Estimate(withSystem), Estimate(withoutSystem))
}

func TestEstimate_ToolResultContentCounted(t *testing.T) {
	req := &anthropicapi.Request{
		Messages: []anthropicapi.Message{
			{Role: "user", Content: json.RawMessage(`[{"type":"tool_result","tool_use_id":"t1","content":"a fairly long tool result payload"}]`)},
		},
	}
	assert.Greater(t, Estimate(req), 0)
}

func TestEstimate_EmptyRequestIsZero(t *testing.T) {
	assert.Equal(t, 0, Estimate(&anthropicapi.Request{}))
}
