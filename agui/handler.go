package agui

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// Result kinds returned by ProcessSSEData.
const (
	ResultAGUIEvent     = "agui-event"
	ResultLegacyMessage = "legacy-message"
)

// Result is the outcome of classifying one stream payload. Event is set when
// Kind is ResultAGUIEvent; Message carries the untouched payload when Kind is
// ResultLegacyMessage.
type Result struct {
	Kind    string
	Event   *Event
	Message any
}

// subscriberBuffer bounds each subscriber channel; events beyond it are
// dropped for that subscriber rather than blocking the stream.
const subscriberBuffer = 100

// Handler classifies stream payloads and multicasts parsed protocol events.
// It is safe for concurrent use.
type Handler struct {
	mu          sync.Mutex
	log         *slog.Logger
	enabled     bool
	destroyed   bool
	subscribers map[int]chan Event
	nextID      int
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// Disabled turns protocol recognition off; every payload then classifies as
// a legacy message.
func Disabled() Option {
	return func(h *Handler) { h.enabled = false }
}

// NewHandler creates an enabled handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		log:         slog.Default(),
		enabled:     true,
		subscribers: make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe returns a channel of parsed protocol events and a function that
// removes the subscription. The channel is hot and shared-nothing: every
// subscriber sees every event from the moment it subscribes. Destroy closes
// all subscriber channels.
func (h *Handler) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.destroyed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
	}
}

// ProcessSSEData classifies one decoded stream payload. A JSON object with a
// recognized protocol type string parses into an Event, is pushed to all
// subscribers and comes back as ResultAGUIEvent. Everything else — including
// payloads that match the loose type shapes but fail the strict dispatch —
// comes back as ResultLegacyMessage with the payload unchanged.
func (h *Handler) ProcessSSEData(data any) Result {
	h.mu.Lock()
	enabled := h.enabled && !h.destroyed
	h.mu.Unlock()

	legacy := Result{Kind: ResultLegacyMessage, Message: data}
	if !enabled {
		return legacy
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return legacy
	}
	typeStr, ok := obj["type"].(string)
	if !ok || !isProtocolType(typeStr) {
		return legacy
	}

	ev := parseEvent(typeStr, obj)
	if ev == nil {
		h.log.Debug("unrecognized protocol event type", "type", typeStr)
		return legacy
	}

	h.publish(*ev)
	return Result{Kind: ResultAGUIEvent, Event: ev}
}

// isProtocolType is the loose classifier: family prefixes, the bare ERROR
// alias, or any dotted type string. Passing here only admits the payload to
// the strict dispatch table, which may still reject it.
func isProtocolType(t string) bool {
	switch {
	case strings.HasPrefix(t, "TEXT_MESSAGE_"),
		strings.HasPrefix(t, "THINKING_"),
		strings.HasPrefix(t, "RUN_"),
		strings.HasPrefix(t, "TOOL_CALL_"):
		return true
	case t == string(eventTypeError):
		return true
	case strings.Contains(t, "."):
		return true
	}
	return false
}

// parseEvent is the strict dispatch table: a closed switch over concrete
// type values. Returns nil for anything outside it.
func parseEvent(typeStr string, obj map[string]any) *Event {
	ev := &Event{
		Type:      events.EventType(typeStr),
		Timestamp: int64Field(obj, "timestamp"),
		Raw:       obj,
	}

	switch ev.Type {
	case events.EventTypeTextMessageStart:
		ev.MessageID = stringField(obj, "messageId")
		ev.Role = stringField(obj, "role")
	case events.EventTypeTextMessageContent:
		ev.MessageID = stringField(obj, "messageId")
		ev.Delta = stringField(obj, "delta")
	case events.EventTypeTextMessageEnd:
		ev.MessageID = stringField(obj, "messageId")
	case EventTypeThinkingStart, EventTypeThinkingEnd:
	case events.EventTypeRunStarted, events.EventTypeRunFinished:
		ev.ThreadID = stringField(obj, "threadId")
		ev.RunID = stringField(obj, "runId")
	case events.EventTypeRunError:
		ev.Message = stringField(obj, "message")
	case eventTypeError:
		ev.Type = events.EventTypeRunError
		ev.Message = stringField(obj, "message")
		if ev.Message == "" {
			ev.Message = stringField(obj, "error")
		}
	case events.EventTypeToolCallStart:
		ev.ToolCallID = stringField(obj, "toolCallId")
		ev.ToolCallName = stringField(obj, "toolCallName")
	case events.EventTypeToolCallArgs:
		ev.ToolCallID = stringField(obj, "toolCallId")
		ev.ToolCallArgs = stringField(obj, "delta")
	case events.EventTypeToolCallEnd:
		ev.ToolCallID = stringField(obj, "toolCallId")
	case events.EventTypeToolCallResult:
		ev.MessageID = stringField(obj, "messageId")
		ev.ToolCallID = stringField(obj, "toolCallId")
		ev.ToolCallResult = stringField(obj, "content")
	default:
		return nil
	}
	return ev
}

// publish fans an event out to all subscribers without blocking; a full
// subscriber drops the event for itself only.
func (h *Handler) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			h.log.Debug("protocol event dropped for slow subscriber", "subscriber", id, "type", ev.Type)
		}
	}
}

// Destroy closes all subscriber channels. Further ProcessSSEData calls
// classify everything as legacy; further Subscribe calls return a closed
// channel.
func (h *Handler) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return
	}
	h.destroyed = true
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = make(map[int]chan Event)
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func int64Field(obj map[string]any, key string) int64 {
	// JSON numbers decode as float64.
	if f, ok := obj[key].(float64); ok {
		return int64(f)
	}
	return 0
}
