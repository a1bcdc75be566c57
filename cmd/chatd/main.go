// Package main provides a loopback chat backend speaking the SSE wire format
// the webchat client consumes: GET /chat opens the long-lived stream, POST
// /chat answers a message with an AG-UI event sequence echoing the input.
//
// Configuration is via environment variables (a .env file is honored):
//
//	CHATD_PORT     - Server port (default: 8080)
//	CHATD_GREETING - Greeting sent on every new stream
//	CHATD_DELAY    - Pacing between streamed deltas (default: 30ms)
//
// Usage:
//
//	go run ./cmd/chatd
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const defaultGreeting = "Hello! How can I help you today?"

func main() {
	// A missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	port := os.Getenv("CHATD_PORT")
	if port == "" {
		port = "8080"
	}
	greeting := os.Getenv("CHATD_GREETING")
	if greeting == "" {
		greeting = defaultGreeting
	}
	delay := 30 * time.Millisecond
	if v := os.Getenv("CHATD_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid CHATD_DELAY", "value", v, "error", err)
			os.Exit(1)
		}
		delay = d
	}

	mux := http.NewServeMux()
	mux.Handle("/chat", corsMiddleware(NewChatHandler(greeting, delay)))
	mux.HandleFunc("/health", healthHandler)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE needs no write timeout
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("chatd starting", "addr", ":"+port)
	slog.Info("endpoints", "stream", "GET /chat", "send", "POST /chat", "health", "GET /health")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
