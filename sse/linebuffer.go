package sse

import (
	"encoding/json"
	"strings"
	"time"

	webchat "github.com/weops/webchat"
)

// LineBuffer reassembles a chunked text stream into discrete
// newline-terminated lines. Each logical stream gets its own instance, so
// two concurrent streams on one handler can never interleave through a
// shared buffer.
type LineBuffer struct {
	rest string
}

// NewLineBuffer creates an empty buffer.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// Feed appends a chunk and returns the complete message lines it unlocked,
// in arrival order. The trailing partial line is retained for the next
// chunk. Blank lines and SSE comment lines (leading ':') are dropped; an
// optional "data:" field prefix is stripped.
func (b *LineBuffer) Feed(chunk string) []string {
	b.rest += chunk
	parts := strings.Split(b.rest, "\n")
	b.rest = parts[len(parts)-1]

	var lines []string
	for _, line := range parts[:len(parts)-1] {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			line = strings.TrimPrefix(rest, " ")
		}
		lines = append(lines, line)
	}
	return lines
}

// Reset discards any buffered partial line.
func (b *LineBuffer) Reset() {
	b.rest = ""
}

// wireMessage is the recognized JSON shape of one stream line. All fields
// are optional.
type wireMessage struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Sender    string         `json:"sender"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// ParseLine decodes one message line. A JSON object maps field-by-field into
// a Message with defaults (generated id, type text, sender bot, timestamp
// now); anything else becomes a plain-text bot message carrying the line
// verbatim. The second return value is the decoded JSON value (a
// map[string]any) when the line was a JSON object, or the raw line
// otherwise; protocol adapters classify on it.
func ParseLine(line string) (webchat.Message, any) {
	msg := webchat.Message{
		ID:        webchat.GenerateMessageID(),
		Type:      webchat.TypeText,
		Sender:    webchat.SenderBot,
		Timestamp: time.Now().UnixMilli(),
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		msg.Content = line
		return msg, line
	}

	var wire wireMessage
	if err := json.Unmarshal([]byte(line), &wire); err != nil {
		// A JSON object whose fields have the wrong shapes still degrades to
		// plain text rather than dropping the payload.
		msg.Content = line
		return msg, raw
	}

	if wire.ID != "" {
		msg.ID = wire.ID
	}
	if wire.Type != "" {
		msg.Type = webchat.MessageType(wire.Type)
	}
	msg.Content = wire.Content
	if wire.Sender != "" {
		msg.Sender = webchat.Sender(wire.Sender)
	}
	if wire.Timestamp != 0 {
		msg.Timestamp = wire.Timestamp
	}
	msg.Metadata = wire.Metadata
	return msg, raw
}
