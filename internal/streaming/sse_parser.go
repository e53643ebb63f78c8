package streaming

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// SSEEvent is one Server-Sent Event as read off an upstream stream: the
// optional event name and the joined data payload. The proxy never consumes
// id/retry fields, so they are skipped at parse time.
type SSEEvent struct {
	Event string
	Data  string
}

// SSEParser assembles complete events from an upstream text/event-stream
// body. Line assembly happens inside bufio.Scanner, so a TCP read that ends
// mid-line never surfaces as a partial event; a "data:" payload that spans
// multiple events is the caller's problem (see Coordinator.ForwardOpenAI).
type SSEParser struct {
	scanner *bufio.Scanner
	err     error
}

// NewSSEParser wraps r. The line buffer is sized for the large single-line
// "data:" payloads reasoning models produce.
func NewSSEParser(r io.Reader) *SSEParser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &SSEParser{scanner: scanner}
}

// Next returns the next complete event, or io.EOF when the stream ends. A
// trailing event not terminated by a blank line is still returned.
func (p *SSEParser) Next() (*SSEEvent, error) {
	if p.err != nil {
		return nil, p.err
	}

	event := &SSEEvent{}
	var dataLines []string

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 || event.Event != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			// comment / keep-alive line
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}
		field := line[:colonIdx]
		value := strings.TrimPrefix(line[colonIdx+1:], " ")

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}

	if err := p.scanner.Err(); err != nil {
		p.err = err
		return nil, err
	}
	if len(dataLines) > 0 || event.Event != "" {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}

	p.err = io.EOF
	return nil, io.EOF
}

// IsStreamDone reports whether event is the OpenAI end-of-stream sentinel.
func IsStreamDone(event *SSEEvent) bool {
	return event.Data == "[DONE]" || event.Event == "done"
}

// SSEWriter frames outbound Anthropic events onto the client connection as
// "event: <name>\ndata: <json>\n\n". One Write call per event keeps each
// event atomic with respect to the flush that follows it.
type SSEWriter struct {
	writer io.Writer
}

// NewSSEWriter wraps w.
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{writer: w}
}

// WriteNamedEvent writes one named event. Multi-line data is split across
// "data:" lines per the SSE framing rules; the coordinator only ever passes
// single-line JSON.
func (w *SSEWriter) WriteNamedEvent(name, data string) error {
	var buf bytes.Buffer
	if name != "" {
		fmt.Fprintf(&buf, "event: %s\n", name)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}
	buf.WriteByte('\n')
	_, err := w.writer.Write(buf.Bytes())
	return err
}
