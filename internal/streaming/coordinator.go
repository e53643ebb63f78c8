// Package streaming implements the coordinator that converts an OpenAI SSE
// token stream into the ordered Anthropic event sequence. At most one
// content block is open at any moment: a delta of a different kind (text,
// thinking, tool call) first closes the current block, then opens the next
// one at the following index, so every content_block_start is paired with
// its content_block_stop before another block starts.
package streaming

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/digitallysavvy/anthropic-proxy/internal/openaiapi"
	"github.com/digitallysavvy/anthropic-proxy/internal/translate"
)

// blockKind identifies what an open Anthropic content block currently holds.
type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockThinking
	blockToolUse
)

type toolAccumulator struct {
	id         string
	name       string
	args       strings.Builder
	blockIndex int
	// oaiIndex is the OpenAI tool_calls[].index this block tracks.
	oaiIndex int
}

// Coordinator drives one streaming /v1/messages response: it reads an
// upstream OpenAI-compatible SSE body and emits the Anthropic event sequence
// (message_start, content_block_start/delta/stop, message_delta,
// message_stop) in strict order, tracking header commitment via headersSent.
type Coordinator struct {
	w       http.ResponseWriter
	flusher http.Flusher
	sseW    *SSEWriter

	headersSent bool
	messageID   string
	model       string
	debug       bool

	nextBlockIndex int
	openKind       blockKind // blockNone when no block is open
	openIndex      int
	currentTool    *toolAccumulator
	toolBlocks     map[int]*toolAccumulator // keyed by OpenAI tool_calls[].index

	inputTokens  int
	outputTokens int
	blockCount   int
}

// NewCoordinator builds a Coordinator bound to w, failing fast if w cannot be
// flushed incrementally.
func NewCoordinator(w http.ResponseWriter, model string, debug bool) (*Coordinator, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported by this connection")
	}
	return &Coordinator{
		w:          w,
		flusher:    flusher,
		sseW:       NewSSEWriter(w),
		model:      model,
		debug:      debug,
		toolBlocks: map[int]*toolAccumulator{},
	}, nil
}

// HeadersSent reports whether response headers have already been committed.
// Every error path in the HTTP surface reads this to choose between a JSON
// error body and an SSE error event.
func (c *Coordinator) HeadersSent() bool { return c.headersSent }

func (c *Coordinator) commitHeaders() {
	if c.headersSent {
		return
	}
	c.w.Header().Set("Content-Type", "text/event-stream")
	c.w.Header().Set("Cache-Control", "no-cache")
	c.w.Header().Set("Connection", "keep-alive")
	c.w.WriteHeader(http.StatusOK)
	c.headersSent = true
}

func (c *Coordinator) writeEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if err := c.sseW.WriteNamedEvent(event, string(data)); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// Start commits headers and writes message_start. It allocates the message ID.
func (c *Coordinator) Start() error {
	c.commitHeaders()
	c.messageID = "msg_" + uuid.NewString()
	return c.writeEvent("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            c.messageID,
			"type":          "message",
			"role":          "assistant",
			"content":       []any{},
			"model":         c.model,
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
		},
	})
}

// Ping writes the SSE heartbeat event that follows message_start.
func (c *Coordinator) Ping() error {
	return c.writeEvent("ping", map[string]any{"type": "ping"})
}

// closeOpenBlock emits content_block_stop for whatever block is currently
// open, if any. Tool blocks get their accumulated arguments validated in
// debug mode on the way out.
func (c *Coordinator) closeOpenBlock() error {
	if c.openKind == blockNone {
		return nil
	}
	if c.debug && c.openKind == blockToolUse && c.currentTool != nil {
		if _, err := translate.ParseToolArguments(c.currentTool.args.String()); err != nil {
			log.Printf("anthropic-proxy: tool_use block %d (%s) closed with non-JSON input_json_delta accumulation: %v", c.currentTool.blockIndex, c.currentTool.name, err)
		}
	}
	idx := c.openIndex
	c.openKind = blockNone
	c.currentTool = nil
	return c.writeEvent("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": idx,
	})
}

func (c *Coordinator) ensureTextBlock() error {
	if c.openKind == blockText {
		return nil
	}
	if err := c.closeOpenBlock(); err != nil {
		return err
	}
	idx := c.nextBlockIndex
	c.nextBlockIndex++
	c.blockCount++
	c.openKind = blockText
	c.openIndex = idx
	return c.writeEvent("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": idx,
		"content_block": map[string]any{
			"type": "text",
			"text": "",
		},
	})
}

func (c *Coordinator) ensureThinkingBlock() error {
	if c.openKind == blockThinking {
		return nil
	}
	if err := c.closeOpenBlock(); err != nil {
		return err
	}
	idx := c.nextBlockIndex
	c.nextBlockIndex++
	c.blockCount++
	c.openKind = blockThinking
	c.openIndex = idx
	return c.writeEvent("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": idx,
		"content_block": map[string]any{
			"type":     "thinking",
			"thinking": "",
		},
	})
}

// ensureToolBlock returns the accumulator for the given OpenAI tool index,
// opening a new tool_use block (and closing the current block) on the first
// fragment of an unseen tool call. current reports whether the block is the
// one currently open; a late fragment for an already-closed tool call still
// accumulates but must not emit deltas out of order.
func (c *Coordinator) ensureToolBlock(oaiIndex int, id, name string) (acc *toolAccumulator, current bool, err error) {
	if c.openKind == blockToolUse && c.currentTool != nil && c.currentTool.oaiIndex == oaiIndex {
		return c.currentTool, true, nil
	}
	if acc, ok := c.toolBlocks[oaiIndex]; ok {
		return acc, false, nil
	}
	if err := c.closeOpenBlock(); err != nil {
		return nil, false, err
	}
	idx := c.nextBlockIndex
	c.nextBlockIndex++
	c.blockCount++
	acc = &toolAccumulator{id: translate.TruncateToolCallID(id), name: name, blockIndex: idx, oaiIndex: oaiIndex}
	c.toolBlocks[oaiIndex] = acc
	c.openKind = blockToolUse
	c.openIndex = idx
	c.currentTool = acc
	err = c.writeEvent("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": idx,
		"content_block": map[string]any{
			"type":  "tool_use",
			"id":    acc.id,
			"name":  acc.name,
			"input": map[string]any{},
		},
	})
	return acc, true, err
}

// HandleChunk applies one OpenAI ChatChunk to the coordinator's state,
// emitting whatever Anthropic events it implies. finished reports whether
// the chunk carried a non-null finish_reason (the caller should stop reading
// after this returns true).
func (c *Coordinator) HandleChunk(chunk *openaiapi.ChatChunk) (finished bool, err error) {
	if chunk.Usage != nil {
		if chunk.Usage.PromptTokens > 0 {
			c.inputTokens = chunk.Usage.PromptTokens
		}
		if chunk.Usage.CompletionTokens > 0 {
			c.outputTokens = chunk.Usage.CompletionTokens
		}
	}
	if len(chunk.Choices) == 0 {
		return false, nil
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	thinkingText := delta.ReasoningContent
	if thinkingText == "" {
		thinkingText = delta.Reasoning
	}
	if thinkingText != "" {
		if err := c.ensureThinkingBlock(); err != nil {
			return false, err
		}
		if err := c.writeEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": c.openIndex,
			"delta": map[string]any{"type": "thinking_delta", "thinking": thinkingText},
		}); err != nil {
			return false, err
		}
	}

	if delta.Content != "" {
		if err := c.ensureTextBlock(); err != nil {
			return false, err
		}
		if err := c.writeEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": c.openIndex,
			"delta": map[string]any{"type": "text_delta", "text": delta.Content},
		}); err != nil {
			return false, err
		}
	}

	for _, tc := range delta.ToolCalls {
		acc, current, err := c.ensureToolBlock(tc.Index, tc.ID, tc.Function.Name)
		if err != nil {
			return false, err
		}
		if tc.Function.Arguments != "" {
			acc.args.WriteString(tc.Function.Arguments)
			if !current {
				continue
			}
			if err := c.writeEvent("content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": acc.blockIndex,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": tc.Function.Arguments},
			}); err != nil {
				return false, err
			}
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		return true, c.finish(*choice.FinishReason)
	}
	return false, nil
}

// finish closes the open block, if any, then writes message_delta and
// message_stop.
func (c *Coordinator) finish(finishReason string) error {
	if err := c.closeOpenBlock(); err != nil {
		return err
	}

	stopReason := translate.StopReasonFromOpenAI(finishReason)
	if err := c.writeEvent("message_delta", map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   stopReason,
			"stop_sequence": nil,
		},
		"usage": map[string]any{"output_tokens": c.outputTokens},
	}); err != nil {
		return err
	}
	return c.writeEvent("message_stop", map[string]any{"type": "message_stop"})
}

// Abort reports an error through the correct channel: an SSE error event
// (+ message_stop) once headers are committed, or a no-op otherwise so the
// caller can fall back to an HTTP error response (HeadersSent reports false
// in that case).
func (c *Coordinator) Abort(cause error) error {
	if !c.headersSent {
		return nil
	}
	if err := c.writeEvent("error", map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    "stream_error",
			"message": cause.Error(),
		},
	}); err != nil {
		return err
	}
	return c.writeEvent("message_stop", map[string]any{"type": "message_stop"})
}

// Usage returns the accumulated token usage tally for telemetry.
func (c *Coordinator) Usage() (input, output, blocks int) {
	return c.inputTokens, c.outputTokens, c.blockCount
}

// ForwardOpenAI reads an OpenAI-compatible SSE body and drives Coordinator
// through it. A data: line that fails to parse as JSON is carried forward
// and retried once more bytes arrive, never raised: upstreams routinely
// split a JSON value across writes. ctx cancellation (client disconnect)
// stops the read loop without emitting further bytes.
func (c *Coordinator) ForwardOpenAI(ctx context.Context, body io.ReadCloser) error {
	defer body.Close()

	if err := c.Start(); err != nil {
		return err
	}
	if err := c.Ping(); err != nil {
		return err
	}

	parser := NewSSEParser(body)
	var pending bytes.Buffer

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		event, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return c.Abort(fmt.Errorf("upstream stream read failed: %w", err))
		}

		if IsStreamDone(event) {
			pending.Reset()
			continue
		}
		if event.Data == "" {
			continue
		}

		pending.WriteString(event.Data)
		var chunk openaiapi.ChatChunk
		if err := json.Unmarshal(pending.Bytes(), &chunk); err != nil {
			// Packet-split mid-value: keep buffering and retry on the next event.
			continue
		}
		pending.Reset()

		finished, err := c.HandleChunk(&chunk)
		if err != nil {
			return err
		}
		if finished {
			return nil
		}
	}

	// Upstream closed without a terminal finish_reason: close out gracefully
	// so the client never hangs waiting for message_stop.
	if c.messageID != "" {
		return c.finish("stop")
	}
	return nil
}

// ForwardAnthropicNative performs a line-oriented SSE passthrough for
// Anthropic-native upstreams, which already speak the Messages event schema.
// It preserves event/data boundaries and only ever writes bytes it has
// already received in full lines, inheriting the same buffering discipline
// as ForwardOpenAI via bufio.Scanner's internal line assembly.
func ForwardAnthropicNative(ctx context.Context, w http.ResponseWriter, body io.ReadCloser) error {
	defer body.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming not supported by this connection")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if _, err := fmt.Fprintf(w, "%s\n", scanner.Text()); err != nil {
			return err
		}
		flusher.Flush()
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("anthropic-proxy: anthropic-native stream read failed: %v", err)
	}
	return nil
}
