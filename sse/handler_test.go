package sse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	webchat "github.com/weops/webchat"
)

// collector gathers handler events safely across goroutines.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) add(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *collector) waitFor(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evs := c.snapshot(); len(evs) >= n {
			return evs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(c.snapshot()))
	return nil
}

// streamServer serves a GET stream with the given lines and echoes POSTs.
func streamServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		switch r.Method {
		case http.MethodGet:
			flusher.Flush()
			for _, line := range lines {
				io.WriteString(w, line)
				flusher.Flush()
			}
			<-r.Context().Done()
		case http.MethodPost:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			msg, _ := body["message"].(string)
			io.WriteString(w, "data: {\"content\":\"echo: "+msg+"\"}\n")
			flusher.Flush()
		}
	}))
}

func TestConnectEmitsOpenAndMessages(t *testing.T) {
	srv := streamServer(t, []string{
		"data: {\"content\":\"first\"}\n",
		"data: {\"content\":\"sec",
		"ond\"}\n",
	})
	defer srv.Close()

	h := NewHandler()
	defer h.Destroy()

	var opens collector
	var messages collector
	h.On(EventOpen, opens.add)
	h.On(EventMessage, messages.add)

	require.NoError(t, h.Connect(context.Background(), srv.URL, nil))
	opens.waitFor(t, 1)

	msgs := messages.waitFor(t, 2)
	require.NotNil(t, msgs[0].Message)
	require.NotNil(t, msgs[1].Message)
	assert.Equal(t, "first", msgs[0].Message.Content)
	assert.Equal(t, "second", msgs[1].Message.Content)
	assert.Equal(t, webchat.SenderBot, msgs[0].Message.Sender)
}

func TestConnectSendsHeaders(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	h := NewHandler()
	defer h.Destroy()

	headers := map[string]string{"Authorization": "Bearer token-1"}
	require.NoError(t, h.Connect(context.Background(), srv.URL, headers))
	assert.Equal(t, "Bearer token-1", gotAuth.Load())
}

func TestConnectReconnectBound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := NewHandler(WithMaxReconnectAttempts(3), WithReconnectDelay(time.Millisecond))
	defer h.Destroy()

	var errs collector
	h.On(EventError, errs.add)

	err := h.Connect(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var rerr *webchat.ReconnectError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 3, rerr.Attempts)

	var herr *webchat.HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusServiceUnavailable, herr.StatusCode)

	// One error event per failed attempt, and no retry after exhaustion.
	assert.Len(t, errs.snapshot(), 3)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(3), hits.Load())
}

func TestConnectRecoversAfterTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	h := NewHandler(WithMaxReconnectAttempts(5), WithReconnectDelay(time.Millisecond))
	defer h.Destroy()

	require.NoError(t, h.Connect(context.Background(), srv.URL, nil))
	assert.Equal(t, int32(3), hits.Load())
}

func TestSendRequiresConnect(t *testing.T) {
	h := NewHandler()
	err := h.Send(context.Background(), "hello", nil)
	assert.True(t, errors.Is(err, webchat.ErrNotConnected))
}

func TestSendStreamsResponse(t *testing.T) {
	var posted atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		switch r.Method {
		case http.MethodGet:
			flusher.Flush()
			<-r.Context().Done()
		case http.MethodPost:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			posted.Store(body)
			io.WriteString(w, "data: {\"content\":\"part one\"}\n")
			flusher.Flush()
			io.WriteString(w, "data: {\"content\":\"part two\"}\n")
			flusher.Flush()
		}
	}))
	defer srv.Close()

	h := NewHandler()
	defer h.Destroy()

	var messages collector
	h.On(EventMessage, messages.add)

	require.NoError(t, h.Connect(context.Background(), srv.URL, nil))
	require.NoError(t, h.Send(context.Background(), "hi", map[string]any{"botId": "b-7"}))

	body, ok := posted.Load().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", body["message"])
	assert.Equal(t, "b-7", body["botId"])

	msgs := messages.waitFor(t, 2)
	assert.Equal(t, "part one", msgs[0].Message.Content)
	assert.Equal(t, "part two", msgs[1].Message.Content)
}

func TestSendErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "text/event-stream")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	h := NewHandler()
	defer h.Destroy()

	require.NoError(t, h.Connect(context.Background(), srv.URL, nil))

	err := h.Send(context.Background(), "hi", nil)
	var herr *webchat.HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusBadRequest, herr.StatusCode)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	srv := streamServer(t, nil)
	defer srv.Close()

	h := NewHandler()
	require.NoError(t, h.Connect(context.Background(), srv.URL, nil))

	var errs collector
	h.On(EventError, errs.add)

	h.Disconnect()
	h.Disconnect()

	// A deliberate disconnect is a cancellation, not an error.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, errs.snapshot())

	assert.True(t, errors.Is(h.Send(context.Background(), "hi", nil), webchat.ErrNotConnected))
}

func TestOnUnsubscribe(t *testing.T) {
	srv := streamServer(t, []string{"data: {\"content\":\"x\"}\n"})
	defer srv.Close()

	h := NewHandler()
	defer h.Destroy()

	var kept, removed collector
	h.On(EventMessage, kept.add)
	off := h.On(EventMessage, removed.add)
	off()

	require.NoError(t, h.Connect(context.Background(), srv.URL, nil))
	kept.waitFor(t, 1)
	assert.Empty(t, removed.snapshot())
}

func TestListenerPanicDoesNotBreakStream(t *testing.T) {
	srv := streamServer(t, []string{
		"data: {\"content\":\"a\"}\n",
		"data: {\"content\":\"b\"}\n",
	})
	defer srv.Close()

	h := NewHandler()
	defer h.Destroy()

	var messages collector
	h.On(EventMessage, func(Event) { panic("listener bug") })
	h.On(EventMessage, messages.add)

	require.NoError(t, h.Connect(context.Background(), srv.URL, nil))
	msgs := messages.waitFor(t, 2)
	assert.Equal(t, "a", msgs[0].Message.Content)
	assert.Equal(t, "b", msgs[1].Message.Content)
}
