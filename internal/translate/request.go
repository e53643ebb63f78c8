package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/config"
	"github.com/digitallysavvy/anthropic-proxy/internal/openaiapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/proxyerr"
)

// SelectModel picks the upstream model name: a `thinking` block means the
// reasoning role; an explicit client `model` that matches a recognized alias
// overrides the thinking-derived default; otherwise the completion role is
// used. The client's raw Anthropic model name is never forwarded upstream.
func SelectModel(cfg *config.ProviderConfig, req *anthropicapi.Request) string {
	def := cfg.CompletionModel
	if req.Thinking != nil {
		def = cfg.ReasoningModel
	}

	alias := strings.ToLower(req.Model)
	switch {
	case strings.Contains(alias, "opus"):
		return cfg.ReasoningModel
	case strings.Contains(alias, "sonnet"), strings.Contains(alias, "haiku"):
		return cfg.CompletionModel
	case strings.Contains(alias, "value"):
		return cfg.ValueModel
	}
	return def
}

// ToOpenAIRequest converts an Anthropic request into an OpenAI-dialect chat
// request. It is a pure function: no I/O, no upstream call.
func ToOpenAIRequest(cfg *config.ProviderConfig, req *anthropicapi.Request) (*openaiapi.ChatRequest, error) {
	model := SelectModel(cfg, req)
	capRow := LookupCapability(model)

	out := &openaiapi.ChatRequest{
		Model:       model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Stream:      req.Stream,
	}
	if req.Stream {
		out.StreamOptions = &openaiapi.StreamOptions{IncludeUsage: true}
	}

	if capRow.RenameMaxTokens {
		out.MaxCompletionTokens = req.MaxTokens
	} else {
		out.MaxTokens = req.MaxTokens
	}

	var messages []openaiapi.Message
	if sysMsg, ok, err := systemMessage(req.System); err != nil {
		return nil, err
	} else if ok {
		messages = append(messages, sysMsg)
	}

	flattened, err := flattenMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	messages = append(messages, flattened...)
	out.Messages = messages

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			if len(t.InputSchema) > 0 {
				var probe map[string]interface{}
				if err := json.Unmarshal(t.InputSchema, &probe); err != nil {
					return nil, proxyerr.Translation(fmt.Sprintf("tool %q input_schema is not a JSON object", t.Name), err)
				}
			}
		}
		out.Tools = ToolsToOpenAI(req.Tools)
	}
	if req.ToolChoice != nil {
		out.ToolChoice = ToolChoiceToOpenAI(req.ToolChoice)
	}

	return out, nil
}

// systemMessage builds the single leading system message from an Anthropic
// `system` field (string or array of text blocks).
func systemMessage(raw json.RawMessage) (openaiapi.Message, bool, error) {
	if len(raw) == 0 {
		return openaiapi.Message{}, false, nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return openaiapi.Message{}, false, proxyerr.Translation("invalid system field", err)
		}
		if s == "" {
			return openaiapi.Message{}, false, nil
		}
		return openaiapi.Message{Role: "system", Content: s}, true, nil
	}

	blocks, err := anthropicapi.DecodeContentBlocks(raw)
	if err != nil {
		return openaiapi.Message{}, false, proxyerr.Translation("invalid system field", err)
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
		// non-text system blocks are dropped
	}
	if len(parts) == 0 {
		return openaiapi.Message{}, false, nil
	}
	return openaiapi.Message{Role: "system", Content: strings.Join(parts, "\n")}, true, nil
}

// flattenMessages walks Anthropic messages in order, producing OpenAI
// messages: tool_result blocks become role:"tool" messages, tool_use blocks
// become assistant tool_calls, and ordering is preserved (never reordered).
func flattenMessages(msgs []anthropicapi.Message) ([]openaiapi.Message, error) {
	var out []openaiapi.Message
	knownToolUseIDs := map[string]bool{}

	for _, m := range msgs {
		blocks, err := m.DecodeContent()
		if err != nil {
			return nil, proxyerr.Translation("invalid message content", err)
		}

		switch m.Role {
		case "user":
			userMsg, toolMsgs, err := flattenUserMessage(blocks, knownToolUseIDs)
			if err != nil {
				return nil, err
			}
			if userMsg != nil {
				out = append(out, *userMsg)
			}
			out = append(out, toolMsgs...)

		case "assistant":
			assistantMsg, err := flattenAssistantMessage(blocks, knownToolUseIDs)
			if err != nil {
				return nil, err
			}
			out = append(out, assistantMsg)

		default:
			return nil, proxyerr.Translation(fmt.Sprintf("unsupported message role %q", m.Role), nil)
		}
	}
	return out, nil
}

func flattenUserMessage(blocks []anthropicapi.ContentBlock, knownToolUseIDs map[string]bool) (*openaiapi.Message, []openaiapi.Message, error) {
	if len(blocks) == 1 && blocks[0].Type == "text" {
		msg := openaiapi.Message{Role: "user", Content: blocks[0].Text}
		return &msg, nil, nil
	}

	var contentParts []map[string]interface{}
	var toolMsgs []openaiapi.Message

	for _, b := range blocks {
		switch b.Type {
		case "text":
			contentParts = append(contentParts, map[string]interface{}{"type": "text", "text": b.Text})
		case "image":
			contentParts = append(contentParts, imagePart(b))
		case "tool_result":
			if !knownToolUseIDs[b.ToolUseID] {
				return nil, nil, proxyerr.Translation(fmt.Sprintf("tool_result references unknown tool_use_id %q", b.ToolUseID), nil)
			}
			content, err := stringifyToolResult(b)
			if err != nil {
				return nil, nil, err
			}
			toolMsgs = append(toolMsgs, openaiapi.Message{
				Role:       "tool",
				ToolCallID: b.ToolUseID,
				Content:    content,
			})
		default:
			return nil, nil, proxyerr.Translation(fmt.Sprintf("unsupported user content block %q", b.Type), nil)
		}
	}

	var userMsg *openaiapi.Message
	if len(contentParts) > 0 {
		userMsg = &openaiapi.Message{Role: "user", Content: contentParts}
	}
	return userMsg, toolMsgs, nil
}

func flattenAssistantMessage(blocks []anthropicapi.ContentBlock, knownToolUseIDs map[string]bool) (openaiapi.Message, error) {
	var textParts []string
	var toolCalls []openaiapi.ToolCall

	for _, b := range blocks {
		switch b.Type {
		case "text":
			textParts = append(textParts, b.Text)
		case "thinking":
			// Dropped for OpenAI-dialect providers: not representable there.
			continue
		case "tool_use":
			if b.ID == "" {
				return openaiapi.Message{}, proxyerr.Translation("assistant tool_use block is missing an id", nil)
			}
			knownToolUseIDs[b.ID] = true
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			toolCalls = append(toolCalls, openaiapi.ToolCall{
				ID:   TruncateToolCallID(b.ID),
				Type: "function",
				Function: openaiapi.ToolCallFunc{
					Name:      b.Name,
					Arguments: args,
				},
			})
		default:
			return openaiapi.Message{}, proxyerr.Translation(fmt.Sprintf("unsupported assistant content block %q", b.Type), nil)
		}
	}

	msg := openaiapi.Message{Role: "assistant"}
	if len(textParts) > 0 {
		msg.Content = strings.Join(textParts, "")
	}
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}
	return msg, nil
}

func imagePart(b anthropicapi.ContentBlock) map[string]interface{} {
	url := ""
	if b.Source != nil {
		if b.Source.Type == "url" {
			url = b.Source.URL
		} else {
			url = fmt.Sprintf("data:%s;base64,%s", b.Source.MediaType, b.Source.Data)
		}
	}
	return map[string]interface{}{
		"type":      "image_url",
		"image_url": map[string]interface{}{"url": url},
	}
}

// stringifyToolResult renders a tool_result block's content as the single
// string an OpenAI-dialect `tool` message requires. Content may be a bare
// string or itself an array of blocks; text blocks join, others drop.
func stringifyToolResult(b anthropicapi.ContentBlock) (string, error) {
	if len(b.Content) == 0 {
		return "", nil
	}
	trimmed := strings.TrimSpace(string(b.Content))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(b.Content, &s); err != nil {
			return "", proxyerr.Translation("invalid tool_result content", err)
		}
		return s, nil
	}
	blocks, err := anthropicapi.DecodeContentBlocks(b.Content)
	if err != nil {
		return "", proxyerr.Translation("invalid tool_result content", err)
	}
	var parts []string
	for _, inner := range blocks {
		if inner.Type == "text" {
			parts = append(parts, inner.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
