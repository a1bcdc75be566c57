package webchat

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Theme selects the widget color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultStorageKey is the storage entry under which the session is persisted.
const DefaultStorageKey = "@webchat/session"

// Config holds the client configuration surface. Unknown keys are preserved
// in Extra and passed through to the backend untouched, so deployments can
// carry their own options without a library change.
type Config struct {
	// SSEURL is the streaming chat endpoint (GET to connect, POST to send).
	SSEURL string `yaml:"sse_url" json:"sseUrl"`

	// SocketURL is a deprecated alias for SSEURL, honored when SSEURL is
	// empty.
	SocketURL string `yaml:"socket_url" json:"socketUrl,omitempty"`

	// SocketPath is appended to SocketURL deployments that route through a
	// shared gateway.
	SocketPath string `yaml:"socket_path" json:"socketPath,omitempty"`

	// CustomData is merged into every outgoing send and stamped onto newly
	// created sessions.
	CustomData map[string]any `yaml:"custom_data" json:"customData,omitempty"`

	Theme       Theme  `yaml:"theme" json:"theme"`
	Title       string `yaml:"title" json:"title"`
	Subtitle    string `yaml:"subtitle" json:"subtitle,omitempty"`
	Placeholder string `yaml:"placeholder" json:"placeholder,omitempty"`

	// ReconnectAttempts bounds the reconnect loop (default 5).
	ReconnectAttempts int `yaml:"reconnect_attempts" json:"reconnectAttempts"`

	// ReconnectDelay is the base reconnect delay; the wait before attempt n
	// is ReconnectDelay * n (default 3s).
	ReconnectDelay time.Duration `yaml:"reconnect_delay" json:"reconnectDelay"`

	EnableSSE     bool   `yaml:"enable_sse" json:"enableSSE"`
	EnableStorage bool   `yaml:"enable_storage" json:"enableStorage"`
	StorageKey    string `yaml:"storage_key" json:"storageKey"`

	// Extra captures unrecognized configuration keys.
	Extra map[string]any `yaml:",inline" json:"-"`
}

// DefaultConfig returns the configuration defaults. Load and Normalize both
// start from these.
func DefaultConfig() Config {
	return Config{
		Theme:             ThemeLight,
		Title:             "Chat Assistant",
		Placeholder:       "Type a message...",
		ReconnectAttempts: 5,
		ReconnectDelay:    3 * time.Second,
		EnableSSE:         true,
		EnableStorage:     true,
		StorageKey:        DefaultStorageKey,
	}
}

// Normalize fills zero values with defaults and resolves the deprecated
// SocketURL alias. It is idempotent.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.SSEURL == "" && c.SocketURL != "" {
		c.SSEURL = c.SocketURL + c.SocketPath
	}
	if c.Theme == "" {
		c.Theme = def.Theme
	}
	if c.Title == "" {
		c.Title = def.Title
	}
	if c.Placeholder == "" {
		c.Placeholder = def.Placeholder
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = def.ReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.StorageKey == "" {
		c.StorageKey = def.StorageKey
	}
}

// LoadConfig reads a YAML configuration file over the defaults, so keys
// absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}
