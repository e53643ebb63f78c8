package translate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
)

func TestToolsToOpenAI(t *testing.T) {
	tools := []anthropicapi.Tool{
		{Name: "get_weather", Description: "gets the weather", InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`)},
	}

	out := ToolsToOpenAI(tools)
	require.Len(t, out, 1)
	assert.Equal(t, "function", out[0].Type)
	assert.Equal(t, "get_weather", out[0].Function.Name)
	assert.Equal(t, "gets the weather", out[0].Function.Description)
	assert.JSONEq(t, `{"type":"object","properties":{"city":{"type":"string"}}}`, string(out[0].Function.Parameters))
}

func TestToolsToOpenAI_Empty(t *testing.T) {
	assert.Nil(t, ToolsToOpenAI(nil))
}

func TestToolChoiceToOpenAI(t *testing.T) {
	tests := []struct {
		name string
		in   *anthropicapi.ToolChoice
		want interface{}
	}{
		{"nil choice", nil, nil},
		{"auto", &anthropicapi.ToolChoice{Type: "auto"}, "auto"},
		{"none", &anthropicapi.ToolChoice{Type: "none"}, "none"},
		{"any maps to required", &anthropicapi.ToolChoice{Type: "any"}, "required"},
		{"unknown falls back to auto", &anthropicapi.ToolChoice{Type: "bogus"}, "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToolChoiceToOpenAI(tt.in))
		})
	}

	specific := ToolChoiceToOpenAI(&anthropicapi.ToolChoice{Type: "tool", Name: "get_weather"})
	m, ok := specific.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "function", m["type"])
	fn, ok := m["function"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "get_weather", fn["name"])
}

func TestTruncateToolCallID(t *testing.T) {
	short := "toolu_01abc"
	assert.Equal(t, short, TruncateToolCallID(short))

	long := "toolu_" + strings.Repeat("x", 80)
	truncated := TruncateToolCallID(long)
	assert.Len(t, truncated, maxToolCallIDLen)
	assert.Equal(t, long[:maxToolCallIDLen], truncated)
}

func TestParseToolArguments(t *testing.T) {
	raw, err := ParseToolArguments("")
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(raw))

	raw, err = ParseToolArguments(`{"city":"nyc"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"nyc"}`, string(raw))

	_, err = ParseToolArguments(`{"city":`)
	assert.Error(t, err)
}
