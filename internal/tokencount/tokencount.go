// Package tokencount implements the approximate estimator behind
// POST /v1/messages/count_tokens. It is deliberately a char/4 heuristic, not
// a real tokenizer: the endpoint exists so cost-pre-checking clients get an
// answer instead of a 404, and an exact count for one encoding family would
// still be wrong for every other configured upstream.
package tokencount

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/digitallysavvy/anthropic-proxy/internal/anthropicapi"
)

// Estimate sums the UTF-8 character counts of every text-bearing field in
// req (system prompt, message text blocks, tool_result payloads, tool
// name+description+schema) and divides by 4, rounded up.
func Estimate(req *anthropicapi.Request) int {
	var chars int

	chars += systemChars(req.System)

	for _, m := range req.Messages {
		blocks, err := m.DecodeContent()
		if err != nil {
			continue
		}
		for _, b := range blocks {
			chars += blockChars(b)
		}
	}

	for _, t := range req.Tools {
		chars += utf8.RuneCountInString(t.Name)
		chars += utf8.RuneCountInString(t.Description)
		chars += len(t.InputSchema) // serialized schema; byte count approximates rune count for JSON
	}

	return ceilDiv4(chars)
}

func systemChars(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return utf8.RuneCountInString(s)
		}
		return 0
	}
	blocks, err := anthropicapi.DecodeContentBlocks(raw)
	if err != nil {
		return 0
	}
	var n int
	for _, b := range blocks {
		n += blockChars(b)
	}
	return n
}

func blockChars(b anthropicapi.ContentBlock) int {
	switch b.Type {
	case "text":
		return utf8.RuneCountInString(b.Text)
	case "thinking":
		return utf8.RuneCountInString(b.Thinking)
	case "tool_result":
		return toolResultChars(b.Content)
	default:
		return 0
	}
}

func toolResultChars(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return utf8.RuneCountInString(s)
		}
		return 0
	}
	blocks, err := anthropicapi.DecodeContentBlocks(raw)
	if err != nil {
		// Not a recognizable string or block array; count its serialized form.
		return len(raw)
	}
	var n int
	for _, inner := range blocks {
		n += blockChars(inner)
	}
	return n
}

func ceilDiv4(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
