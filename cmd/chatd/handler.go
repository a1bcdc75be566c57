package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	webchat "github.com/weops/webchat"
)

// ChatHandler serves the streaming chat endpoint: GET opens a long-lived
// greeting stream, POST answers one message with an AG-UI event sequence.
type ChatHandler struct {
	greeting string
	delay    time.Duration
}

// NewChatHandler creates a handler that greets new streams with greeting and
// paces message deltas by delay.
func NewChatHandler(greeting string, delay time.Duration) *ChatHandler {
	return &ChatHandler{greeting: greeting, delay: delay}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serveStream(w, r)
	case http.MethodPost:
		h.serveMessage(w, r)
	default:
		slog.Warn("method not allowed", "method", r.Method, "path", r.URL.Path)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// serveStream holds the connect stream open, sending the greeting up front
// and comment keep-alives until the client goes away.
func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := beginStream(w)
	if !ok {
		return
	}

	greeting := webchat.NewMessage(webchat.SenderBot, webchat.TypeText, h.greeting)
	if err := writeJSON(w, flusher, greeting); err != nil {
		slog.Warn("failed to write greeting", "error", err)
		return
	}

	slog.Info("stream opened", "remote", r.RemoteAddr)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			slog.Info("stream closed", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// sendRequest is the POST body. Unrecognized customData keys are accepted
// and ignored.
type sendRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
}

// serveMessage answers one message with a full AG-UI run: RUN_STARTED, a
// TEXT_MESSAGE_START/CONTENT/END sequence echoing the input, RUN_FINISHED.
func (h *ChatHandler) serveMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("invalid request body", "error", err)
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = aguievents.GenerateThreadID()
	}
	if req.RunID == "" {
		req.RunID = aguievents.GenerateRunID()
	}

	log := slog.With("thread_id", req.ThreadID, "run_id", req.RunID)
	log.Info("request started", "message_len", len(req.Message))

	flusher, ok := beginStream(w)
	if !ok {
		return
	}

	messageID := aguievents.GenerateMessageID()
	reply := "You said: " + req.Message

	sequence := []aguievents.Event{
		aguievents.NewRunStartedEvent(req.ThreadID, req.RunID),
		aguievents.NewTextMessageStartEvent(messageID, aguievents.WithRole("assistant")),
	}
	for _, delta := range splitDeltas(reply, 8) {
		sequence = append(sequence, aguievents.NewTextMessageContentEvent(messageID, delta))
	}
	sequence = append(sequence,
		aguievents.NewTextMessageEndEvent(messageID),
		aguievents.NewRunFinishedEvent(req.ThreadID, req.RunID),
	)

	var sent int
	for _, ev := range sequence {
		if r.Context().Err() != nil {
			log.Info("client went away", "events_sent", sent)
			return
		}
		if err := writeSSE(w, flusher, ev); err != nil {
			log.Error("failed to write SSE event", "error", err, "event_type", ev.Type())
			return
		}
		sent++
		if h.delay > 0 {
			time.Sleep(h.delay)
		}
	}

	log.Info("request completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"events_sent", sent,
	)
}

// beginStream sets SSE headers and returns the flusher.
func beginStream(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	return flusher, true
}

// writeSSE writes one AG-UI event as a data line. The client line protocol
// treats every non-comment line as a payload, so events are framed as data
// only, without an event field line.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev aguievents.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(data)); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	flusher.Flush()
	return nil
}

// writeJSON writes an arbitrary value as one data line.
func writeJSON(w http.ResponseWriter, flusher http.Flusher, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(data)); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	flusher.Flush()
	return nil
}

// splitDeltas cuts text into streaming chunks of at most size runes.
func splitDeltas(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		n := min(size, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// corsMiddleware adds CORS headers for cross-origin widget requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
