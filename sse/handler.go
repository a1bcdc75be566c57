// Package sse maintains the streaming connection between a chat client and
// its backend. It hides transport selection, chunk reassembly and bounded
// reconnection behind a small pub/sub surface: subscribers see open, message
// and error events in stream order.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	webchat "github.com/weops/webchat"
)

// Event names accepted by On.
const (
	EventOpen    = "open"
	EventMessage = "message"
	EventError   = "error"
)

// Event is delivered to listeners. Message and Data are set for message
// events; Data carries the decoded JSON value (or the raw line) for protocol
// adapters that classify payloads upstream of the message model. Err is set
// for error events.
type Event struct {
	Type    string
	Message *webchat.Message
	Data    any
	Err     error
}

// Listener receives handler events.
type Listener func(Event)

// Handler manages a streaming chat connection. One Handler owns at most one
// live GET stream; Send runs request/response streams alongside it. Handler
// is safe for concurrent use.
type Handler struct {
	mu          sync.Mutex
	client      *http.Client
	log         *slog.Logger
	maxAttempts int
	delay       time.Duration

	url       string
	headers   map[string]string
	attempts  int
	connected bool
	closed    bool
	baseCtx   context.Context
	cancel    context.CancelFunc

	sendCancels  map[int]context.CancelFunc
	nextCancelID int

	listeners      map[string]map[int]Listener
	nextListenerID int
}

// Option configures a Handler.
type Option func(*Handler)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) { h.client = c }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithMaxReconnectAttempts bounds the reconnect loop (default 5).
func WithMaxReconnectAttempts(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxAttempts = n
		}
	}
}

// WithReconnectDelay sets the base reconnect delay; the wait before attempt
// n is delay * n (default 3s).
func WithReconnectDelay(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.delay = d
		}
	}
}

// WithConfig applies the reconnect settings from a client configuration.
func WithConfig(cfg webchat.Config) Option {
	return func(h *Handler) {
		WithMaxReconnectAttempts(cfg.ReconnectAttempts)(h)
		WithReconnectDelay(cfg.ReconnectDelay)(h)
	}
}

// NewHandler creates a handler with default reconnect policy.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		client:      http.DefaultClient,
		log:         slog.Default(),
		maxAttempts: 5,
		delay:       3 * time.Second,
		sendCancels: make(map[int]context.CancelFunc),
		listeners:   make(map[string]map[int]Listener),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect opens the stream at url and returns once it is open (after
// emitting an open event) or after the bounded reconnect attempts are
// exhausted, in which case the error is a *webchat.ReconnectError. Custom
// headers are passed through to the request. The stream is read in the
// background until it ends, Disconnect is called, or ctx is canceled; a
// mid-stream failure re-enters the same bounded reconnect loop.
func (h *Handler) Connect(ctx context.Context, url string, headers map[string]string) error {
	h.mu.Lock()
	h.url = url
	h.headers = headers
	h.baseCtx = ctx
	h.closed = false
	h.attempts = 0
	h.mu.Unlock()
	return h.connectWithRetry(ctx)
}

// connectWithRetry dials until success, cancellation, or attempt exhaustion.
// The delay grows linearly with the attempt count.
func (h *Handler) connectWithRetry(ctx context.Context) error {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return context.Canceled
		}
		h.mu.Unlock()

		err := h.dial(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			// Deliberate disconnect, not a transport failure.
			return err
		}

		h.mu.Lock()
		h.attempts++
		attempt := h.attempts
		limit := h.maxAttempts
		delay := h.delay
		h.mu.Unlock()

		h.log.Warn("stream connection failed", "attempt", attempt, "max_attempts", limit, "error", err)
		h.emit(EventError, Event{Type: EventError, Err: err})

		if attempt >= limit {
			return &webchat.ReconnectError{Attempts: attempt, Last: err}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay * time.Duration(attempt)):
		}
	}
}

// dial performs a single connection attempt and, on success, starts the
// background read loop.
func (h *Handler) dial(ctx context.Context) error {
	h.mu.Lock()
	url := h.url
	headers := h.headers
	streamCtx, cancel := context.WithCancel(ctx)
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	h.mu.Unlock()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		cancel()
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return &webchat.HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	h.mu.Lock()
	h.connected = true
	h.attempts = 0
	h.mu.Unlock()

	h.log.Debug("stream opened", "url", url)
	h.emit(EventOpen, Event{Type: EventOpen})

	go h.readStream(streamCtx, resp.Body)
	return nil
}

// readStream consumes the live stream through its own LineBuffer and emits a
// message event per parsed line, in arrival order.
func (h *Handler) readStream(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	buf := NewLineBuffer()
	chunk := make([]byte, 4096)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			h.emitLines(buf.Feed(string(chunk[:n])))
		}
		if err == nil {
			continue
		}

		h.mu.Lock()
		h.connected = false
		closed := h.closed
		base := h.baseCtx
		h.mu.Unlock()

		if err == io.EOF {
			h.log.Debug("stream completed")
			return
		}
		if ctx.Err() != nil || closed {
			// Deliberate disconnect; suppressed per the cancellation policy.
			return
		}

		h.log.Warn("stream read failed", "error", err)
		h.emit(EventError, Event{Type: EventError, Err: err})
		go func() {
			if rerr := h.connectWithRetry(base); rerr != nil && !errors.Is(rerr, context.Canceled) {
				h.log.Warn("reconnect abandoned", "error", rerr)
			}
		}()
		return
	}
}

// Send POSTs a message to the connected URL and reads the response body as a
// second stream through its own LineBuffer, emitting message events for each
// line. customData keys are merged into the JSON body alongside the message.
// Returns webchat.ErrNotConnected without a prior successful Connect.
func (h *Handler) Send(ctx context.Context, message string, customData map[string]any) error {
	h.mu.Lock()
	if !h.connected {
		h.mu.Unlock()
		return webchat.ErrNotConnected
	}
	url := h.url
	headers := h.headers
	h.mu.Unlock()

	payload := map[string]any{"message": message}
	for k, v := range customData {
		if k == "message" {
			continue
		}
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// Disconnect aborts in-flight sends through the tracked cancel.
	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	id := h.trackCancel(cancel)
	defer h.untrackCancel(id)

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		h.emit(EventError, Event{Type: EventError, Err: err})
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &webchat.HTTPError{StatusCode: resp.StatusCode, URL: url}
		h.emit(EventError, Event{Type: EventError, Err: herr})
		return herr
	}

	buf := NewLineBuffer()
	chunk := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			h.emitLines(buf.Feed(string(chunk[:n])))
		}
		if rerr == nil {
			continue
		}
		if rerr == io.EOF {
			return nil
		}
		if errors.Is(rerr, context.Canceled) || sendCtx.Err() != nil {
			return nil
		}
		h.emit(EventError, Event{Type: EventError, Err: rerr})
		return rerr
	}
}

func (h *Handler) emitLines(lines []string) {
	for _, line := range lines {
		msg, raw := ParseLine(line)
		h.emit(EventMessage, Event{Type: EventMessage, Message: &msg, Data: raw})
	}
}

// On registers a listener for the named event (open, message or error) and
// returns a function that removes exactly that listener.
func (h *Handler) On(event string, fn Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.listeners[event]
	if set == nil {
		set = make(map[int]Listener)
		h.listeners[event] = set
	}
	id := h.nextListenerID
	h.nextListenerID++
	set[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(set, id)
	}
}

// emit delivers an event to the listeners registered for its name. Listener
// panics are isolated so one failing subscriber cannot break the stream.
func (h *Handler) emit(name string, ev Event) {
	h.mu.Lock()
	fns := make([]Listener, 0, len(h.listeners[name]))
	for _, fn := range h.listeners[name] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					h.log.Error("stream listener panicked", "event", name, "panic", r)
				}
			}()
			fn(ev)
		}()
	}
}

// Disconnect closes the active stream, aborts in-flight sends and resets the
// reconnect counter. It is idempotent.
func (h *Handler) Disconnect() {
	h.mu.Lock()
	h.closed = true
	h.connected = false
	h.attempts = 0
	cancel := h.cancel
	h.cancel = nil
	sends := make([]context.CancelFunc, 0, len(h.sendCancels))
	for _, c := range h.sendCancels {
		sends = append(sends, c)
	}
	h.sendCancels = make(map[int]context.CancelFunc)
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, c := range sends {
		c()
	}
}

// Destroy disconnects and drops all listeners.
func (h *Handler) Destroy() {
	h.Disconnect()
	h.mu.Lock()
	h.listeners = make(map[string]map[int]Listener)
	h.mu.Unlock()
}

func (h *Handler) trackCancel(cancel context.CancelFunc) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextCancelID
	h.nextCancelID++
	h.sendCancels[id] = cancel
	return id
}

func (h *Handler) untrackCancel(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sendCancels, id)
}
