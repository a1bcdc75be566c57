// Package main provides a terminal chat client over the webchat library: it
// restores or creates a session, connects to a streaming chat backend,
// adapts AG-UI protocol events onto the message pipeline, and tracks the
// connection lifecycle through the state machine.
//
// Configuration comes from a YAML file (-config), with environment variables
// (a .env file is honored) filling the gaps:
//
//	WEBCHAT_SSE_URL    - streaming chat endpoint
//	WEBCHAT_STORE      - session store: memory, file, or redis (default: file)
//	WEBCHAT_STATE_DIR  - directory for the file store (default: ~/.webchat)
//	WEBCHAT_REDIS_ADDR - redis address for the redis store (default: localhost:6379)
//
// Usage:
//
//	go run ./cmd/webchat -config webchat.yaml
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	webchat "github.com/weops/webchat"
	"github.com/weops/webchat/agui"
	"github.com/weops/webchat/session"
	"github.com/weops/webchat/sse"
	"github.com/weops/webchat/state"
	"github.com/weops/webchat/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML configuration file")
	userID := flag.String("user", "", "user identifier stamped onto new sessions")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.SSEURL == "" {
		return fmt.Errorf("no chat endpoint configured; set sse_url or WEBCHAT_SSE_URL")
	}

	adapter, err := openStore()
	if err != nil {
		return err
	}

	ctx := context.Background()

	opts := []session.Option{
		session.WithAdapter(adapter),
		session.WithStorageKey(cfg.StorageKey),
		session.WithCustomData(cfg.CustomData),
	}
	if !cfg.EnableStorage {
		opts = append(opts, session.WithoutStorage())
	}
	sessions := session.NewManager(opts...)
	sess := sessions.Init(ctx, *userID)
	slog.Info("session ready", "session_id", sess.SessionID, "messages", len(sess.Messages))

	machine := state.NewMachine()
	machine.On(func(c state.Change) {
		slog.Debug("connection state changed", "from", c.From, "to", c.To)
	})

	protocol := agui.NewHandler()
	defer protocol.Destroy()

	ui := &console{sessions: sessions, protocol: protocol, partial: make(map[string]*strings.Builder)}

	stream := sse.NewHandler(sse.WithConfig(cfg))
	defer stream.Destroy()
	stream.On(sse.EventOpen, func(sse.Event) { machine.Transition(state.Connected) })
	stream.On(sse.EventError, func(ev sse.Event) {
		machine.Transition(state.Error)
		slog.Warn("stream error", "error", ev.Err)
	})
	stream.On(sse.EventMessage, ui.handle)

	// Replay history before going online.
	for _, msg := range sessions.Messages() {
		ui.render(msg)
	}

	machine.Transition(state.Connecting)
	if err := stream.Connect(ctx, cfg.SSEURL, nil); err != nil {
		machine.Transition(state.Closed)
		return fmt.Errorf("connect %s: %w", cfg.SSEURL, err)
	}

	fmt.Printf("%s — %s\n", cfg.Title, cfg.SSEURL)
	fmt.Println("Type a message, /clear to reset the session, /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			goto done
		case "/clear":
			sessions.Clear(ctx)
			sessions.Init(ctx, *userID)
			fmt.Println("session cleared")
			continue
		}

		if err := sessions.AddMessage(ctx, webchat.NewMessage(webchat.SenderUser, webchat.TypeText, line)); err != nil {
			return err
		}

		machine.Transition(state.Chatting)
		if err := stream.Send(ctx, line, cfg.CustomData); err != nil {
			slog.Warn("send failed", "error", err)
		}
		fmt.Println()
		machine.Transition(state.Connected)
	}

done:
	stream.Disconnect()
	machine.Transition(state.Closed)
	sessions.Save(ctx)
	return scanner.Err()
}

// loadConfig reads the YAML file when given, otherwise starts from defaults,
// then lets WEBCHAT_SSE_URL override the endpoint.
func loadConfig(path string) (webchat.Config, error) {
	cfg := webchat.DefaultConfig()
	if path != "" {
		loaded, err := webchat.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if url := os.Getenv("WEBCHAT_SSE_URL"); url != "" {
		cfg.SSEURL = url
	}
	cfg.Normalize()
	return cfg, nil
}

// openStore builds the session store selected by WEBCHAT_STORE.
func openStore() (store.Adapter, error) {
	switch kind := os.Getenv("WEBCHAT_STORE"); kind {
	case "", "file":
		dir := os.Getenv("WEBCHAT_STATE_DIR")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve state dir: %w", err)
			}
			dir = filepath.Join(home, ".webchat")
		}
		return store.NewFileAdapter(dir), nil
	case "memory":
		return store.NewMemoryAdapter(), nil
	case "redis":
		addr := os.Getenv("WEBCHAT_REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		return store.NewRedisAdapter(client, session.MaxAge), nil
	default:
		return nil, fmt.Errorf("unknown store %q; want memory, file, or redis", kind)
	}
}

// console renders incoming payloads and appends completed bot messages to
// the session. Protocol text messages are assembled delta by delta; legacy
// payloads append as-is.
type console struct {
	mu       sync.Mutex
	sessions *session.Manager
	protocol *agui.Handler
	partial  map[string]*strings.Builder
}

func (c *console) handle(ev sse.Event) {
	res := c.protocol.ProcessSSEData(ev.Data)
	if res.Kind == agui.ResultLegacyMessage {
		if ev.Message != nil && ev.Message.Content != "" {
			ctx := context.Background()
			if err := c.sessions.AddMessage(ctx, *ev.Message); err != nil {
				slog.Warn("failed to record message", "error", err)
			}
			c.render(*ev.Message)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pe := res.Event
	switch pe.Type {
	case aguievents.EventTypeTextMessageStart:
		c.partial[pe.MessageID] = &strings.Builder{}
	case aguievents.EventTypeTextMessageContent:
		if b, ok := c.partial[pe.MessageID]; ok {
			b.WriteString(pe.Delta)
			fmt.Print(pe.Delta)
		}
	case aguievents.EventTypeTextMessageEnd:
		b, ok := c.partial[pe.MessageID]
		if !ok {
			return
		}
		delete(c.partial, pe.MessageID)
		fmt.Println()
		msg := webchat.NewMessage(webchat.SenderBot, webchat.TypeText, b.String())
		msg.ID = pe.MessageID
		if err := c.sessions.AddMessage(context.Background(), msg); err != nil {
			slog.Warn("failed to record message", "error", err)
		}
	case aguievents.EventTypeRunError:
		fmt.Printf("\n[error] %s\n", pe.Message)
	}
}

func (c *console) render(msg webchat.Message) {
	prefix := "bot"
	if msg.Sender == webchat.SenderUser {
		prefix = "you"
	}
	fmt.Printf("%s: %s\n", prefix, msg.Content)
}
