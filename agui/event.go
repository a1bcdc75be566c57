// Package agui adapts the AG-UI streaming-event protocol onto the chat
// message pipeline. Incoming stream payloads are classified as protocol
// events or legacy plain messages; recognized events are parsed into a
// unified Event and fanned out to subscribers, everything else passes
// through untouched.
package agui

import (
	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// Thinking-phase event types. These appear on the wire alongside the SDK's
// event set but have no SDK constructor, so they are defined here.
const (
	EventTypeThinkingStart events.EventType = "THINKING_START"
	EventTypeThinkingEnd   events.EventType = "THINKING_END"
)

// eventTypeError is a legacy wire alias for RUN_ERROR.
const eventTypeError events.EventType = "ERROR"

// Event is the parsed form of one protocol event. Type identifies the kind;
// the remaining fields are populated per type and zero otherwise. Raw holds
// the decoded JSON object the event was parsed from.
type Event struct {
	// Type is the protocol event type, normalized (ERROR becomes RUN_ERROR).
	Type events.EventType

	// MessageID correlates TEXT_MESSAGE_* and TOOL_CALL_RESULT events.
	MessageID string

	// Role is the message author role for TEXT_MESSAGE_START.
	Role string

	// Delta carries streaming text for TEXT_MESSAGE_CONTENT.
	Delta string

	// ThreadID and RunID identify the run for RUN_STARTED/RUN_FINISHED.
	ThreadID string
	RunID    string

	// ToolCallID correlates TOOL_CALL_* events; ToolCallName, ToolCallArgs
	// and ToolCallResult carry the call's name, argument delta and result.
	ToolCallID     string
	ToolCallName   string
	ToolCallArgs   string
	ToolCallResult string

	// Message is the error description for RUN_ERROR.
	Message string

	// Timestamp is epoch milliseconds when the payload carried one.
	Timestamp int64

	// Raw is the decoded JSON object as received.
	Raw map[string]any
}
