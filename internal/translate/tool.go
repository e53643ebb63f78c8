// Package translate converts between the Anthropic Messages wire format and
// the OpenAI-compatible chat completions dialect: request flattening, tool
// and tool_choice conversion, and non-streaming response mapping.
package translate

import (
	"encoding/json"
	"fmt"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/openaiapi"
)

// ToolsToOpenAI converts Anthropic tool definitions to the OpenAI function-tool format.
func ToolsToOpenAI(tools []anthropicapi.Tool) []openaiapi.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openaiapi.Tool, len(tools))
	for i, t := range tools {
		result[i] = openaiapi.Tool{
			Type: "function",
			Function: openaiapi.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// ToolChoiceToOpenAI converts an Anthropic tool_choice into the OpenAI
// tool_choice shape: auto->auto, any->required, tool->function, none->none.
func ToolChoiceToOpenAI(choice *anthropicapi.ToolChoice) interface{} {
	if choice == nil {
		return nil
	}
	switch choice.Type {
	case "auto":
		return "auto"
	case "none":
		return "none"
	case "any":
		return "required"
	case "tool":
		return map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name": choice.Name,
			},
		}
	default:
		return "auto"
	}
}

// maxToolCallIDLen is OpenAI's limit on the tool_call_id / tool call id field.
const maxToolCallIDLen = 40

// TruncateToolCallID enforces OpenAI's 40-character tool-call ID limit.
func TruncateToolCallID(id string) string {
	if len(id) <= maxToolCallIDLen {
		return id
	}
	return id[:maxToolCallIDLen]
}

// ParseToolArguments parses an accumulated OpenAI tool-call arguments string
// (which may be empty, partial, or complete JSON) into a json.RawMessage
// suitable for an Anthropic tool_use block's "input" field.
func ParseToolArguments(args string) (json.RawMessage, error) {
	if args == "" {
		return json.RawMessage("{}"), nil
	}
	var probe interface{}
	if err := json.Unmarshal([]byte(args), &probe); err != nil {
		return nil, fmt.Errorf("parse tool call arguments: %w", err)
	}
	return json.RawMessage(args), nil
}
