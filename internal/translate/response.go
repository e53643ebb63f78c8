package translate

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/openaiapi"
	"github.com/google/uuid"
)

// stopReasonTable maps OpenAI finish_reason to an Anthropic stop_reason.
// Anything unrecognized falls back to "end_turn".
var stopReasonTable = map[string]string{
	"stop":           "end_turn",
	"length":         "max_tokens",
	"tool_calls":     "tool_use",
	"content_filter": "stop_sequence",
}

// StopReasonFromOpenAI maps an OpenAI finish_reason to an Anthropic stop_reason.
func StopReasonFromOpenAI(finishReason string) string {
	if r, ok := stopReasonTable[finishReason]; ok {
		return r
	}
	return "end_turn"
}

// FromOpenAIResponse converts a non-streaming OpenAI ChatResponse into an
// Anthropic Response. model is the name to echo back to the caller.
func FromOpenAIResponse(resp *openaiapi.ChatResponse, model string) *anthropicapi.Response {
	out := &anthropicapi.Response{
		ID:    resp.ID,
		Type:  "message",
		Role:  "assistant",
		Model: model,
		Usage: anthropicapi.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if out.ID == "" {
		out.ID = "msg_" + uuid.NewString()
	}

	var content []anthropicapi.ContentBlock
	finishReason := "stop"
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		finishReason = choice.FinishReason

		if text, ok := choice.Message.Content.(string); ok && text != "" {
			content = append(content, anthropicapi.ContentBlock{Type: "text", Text: text})
		}

		for _, tc := range choice.Message.ToolCalls {
			input, err := parseToolCallArguments(tc.Function.Arguments)
			if err != nil {
				log.Printf("anthropic-proxy: translation warning: tool call %q arguments did not parse as JSON: %v", tc.Function.Name, err)
				input = json.RawMessage("{}")
			}
			content = append(content, anthropicapi.ContentBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: input,
			})
		}
	}
	out.Content = content
	out.StopReason = StopReasonFromOpenAI(finishReason)
	return out
}

func parseToolCallArguments(raw string) (json.RawMessage, error) {
	if raw == "" {
		return json.RawMessage("{}"), nil
	}
	var probe interface{}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, fmt.Errorf("parse tool call arguments: %w", err)
	}
	return json.RawMessage(raw), nil
}
