package agui

import (
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// receive pops one event without blocking the test on a misbehaving handler.
func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed before event arrived")
		return ev
	default:
		t.Fatal("no event on channel")
		return Event{}
	}
}

func TestProcessTextMessageEvents(t *testing.T) {
	h := NewHandler()
	defer h.Destroy()

	ch, off := h.Subscribe()
	defer off()

	res := h.ProcessSSEData(map[string]any{
		"type":      "TEXT_MESSAGE_START",
		"messageId": "m1",
		"role":      "assistant",
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	require.NotNil(t, res.Event)
	assert.Equal(t, events.EventTypeTextMessageStart, res.Event.Type)
	assert.Equal(t, "m1", res.Event.MessageID)
	assert.Equal(t, RoleAssistant, res.Event.Role)

	got := receive(t, ch)
	assert.Equal(t, *res.Event, got)

	res = h.ProcessSSEData(map[string]any{
		"type":      "TEXT_MESSAGE_CONTENT",
		"messageId": "m1",
		"delta":     "hel",
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, "hel", res.Event.Delta)
	receive(t, ch)

	res = h.ProcessSSEData(map[string]any{
		"type":      "TEXT_MESSAGE_END",
		"messageId": "m1",
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, events.EventTypeTextMessageEnd, res.Event.Type)
	receive(t, ch)
}

func TestProcessRunLifecycle(t *testing.T) {
	h := NewHandler()
	defer h.Destroy()

	res := h.ProcessSSEData(map[string]any{
		"type":     "RUN_STARTED",
		"threadId": "t1",
		"runId":    "r1",
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, events.EventTypeRunStarted, res.Event.Type)
	assert.Equal(t, "t1", res.Event.ThreadID)
	assert.Equal(t, "r1", res.Event.RunID)

	res = h.ProcessSSEData(map[string]any{
		"type":    "RUN_ERROR",
		"message": "model exploded",
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, "model exploded", res.Event.Message)
}

func TestProcessErrorAliasesToRunError(t *testing.T) {
	h := NewHandler()
	defer h.Destroy()

	res := h.ProcessSSEData(map[string]any{
		"type":      "ERROR",
		"error":     "boom",
		"timestamp": float64(1700000000000),
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, events.EventTypeRunError, res.Event.Type)
	assert.Equal(t, "boom", res.Event.Message)
	assert.Equal(t, int64(1700000000000), res.Event.Timestamp)
}

func TestProcessToolCallEvents(t *testing.T) {
	h := NewHandler()
	defer h.Destroy()

	res := h.ProcessSSEData(map[string]any{
		"type":         "TOOL_CALL_START",
		"toolCallId":   "tc1",
		"toolCallName": "get_weather",
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, "tc1", res.Event.ToolCallID)
	assert.Equal(t, "get_weather", res.Event.ToolCallName)

	res = h.ProcessSSEData(map[string]any{
		"type":       "TOOL_CALL_ARGS",
		"toolCallId": "tc1",
		"delta":      `{"city":`,
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, `{"city":`, res.Event.ToolCallArgs)

	res = h.ProcessSSEData(map[string]any{
		"type":       "TOOL_CALL_RESULT",
		"messageId":  "m9",
		"toolCallId": "tc1",
		"content":    "sunny",
	})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, "m9", res.Event.MessageID)
	assert.Equal(t, "sunny", res.Event.ToolCallResult)
}

func TestProcessThinkingEvents(t *testing.T) {
	h := NewHandler()
	defer h.Destroy()

	res := h.ProcessSSEData(map[string]any{"type": "THINKING_START"})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, EventTypeThinkingStart, res.Event.Type)

	res = h.ProcessSSEData(map[string]any{"type": "THINKING_END"})
	require.Equal(t, ResultAGUIEvent, res.Kind)
	assert.Equal(t, EventTypeThinkingEnd, res.Event.Type)
}

func TestProcessLegacyPayloads(t *testing.T) {
	h := NewHandler()
	defer h.Destroy()

	ch, off := h.Subscribe()
	defer off()

	t.Run("plain object", func(t *testing.T) {
		payload := map[string]any{"foo": "bar"}
		res := h.ProcessSSEData(payload)
		assert.Equal(t, ResultLegacyMessage, res.Kind)
		assert.Equal(t, payload, res.Message)
	})

	t.Run("plain string", func(t *testing.T) {
		res := h.ProcessSSEData("hello")
		assert.Equal(t, ResultLegacyMessage, res.Kind)
		assert.Equal(t, "hello", res.Message)
	})

	t.Run("non-string type field", func(t *testing.T) {
		res := h.ProcessSSEData(map[string]any{"type": 7})
		assert.Equal(t, ResultLegacyMessage, res.Kind)
	})

	t.Run("unknown family member", func(t *testing.T) {
		// Passes the loose classifier but falls out of the dispatch switch.
		res := h.ProcessSSEData(map[string]any{"type": "RUN_PAUSED"})
		assert.Equal(t, ResultLegacyMessage, res.Kind)
	})

	t.Run("dotted type string", func(t *testing.T) {
		res := h.ProcessSSEData(map[string]any{"type": "custom.note"})
		assert.Equal(t, ResultLegacyMessage, res.Kind)
	})

	select {
	case ev := <-ch:
		t.Fatalf("legacy payloads must not emit events, got %v", ev.Type)
	default:
	}
}

func TestDisabledHandlerIsAlwaysLegacy(t *testing.T) {
	h := NewHandler(Disabled())
	defer h.Destroy()

	res := h.ProcessSSEData(map[string]any{"type": "TEXT_MESSAGE_START", "messageId": "m1"})
	assert.Equal(t, ResultLegacyMessage, res.Kind)
	assert.Nil(t, res.Event)
}

func TestSubscribeMulticast(t *testing.T) {
	h := NewHandler()
	defer h.Destroy()

	ch1, off1 := h.Subscribe()
	defer off1()
	ch2, off2 := h.Subscribe()
	defer off2()

	h.ProcessSSEData(map[string]any{"type": "RUN_STARTED", "threadId": "t", "runId": "r"})

	assert.Equal(t, events.EventTypeRunStarted, receive(t, ch1).Type)
	assert.Equal(t, events.EventTypeRunStarted, receive(t, ch2).Type)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHandler()
	defer h.Destroy()

	ch, off := h.Subscribe()
	off()
	off() // double unsubscribe is harmless

	_, ok := <-ch
	assert.False(t, ok)

	// Events after unsubscribe go nowhere.
	res := h.ProcessSSEData(map[string]any{"type": "RUN_FINISHED"})
	assert.Equal(t, ResultAGUIEvent, res.Kind)
}

func TestDestroy(t *testing.T) {
	h := NewHandler()

	ch, _ := h.Subscribe()
	h.Destroy()
	h.Destroy()

	_, ok := <-ch
	assert.False(t, ok, "destroy closes subscriber channels")

	res := h.ProcessSSEData(map[string]any{"type": "RUN_STARTED"})
	assert.Equal(t, ResultLegacyMessage, res.Kind)

	late, off := h.Subscribe()
	defer off()
	_, ok = <-late
	assert.False(t, ok, "subscriptions after destroy are closed immediately")
}
