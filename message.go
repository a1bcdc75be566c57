package webchat

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies how a message's content should be rendered.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeMarkdown MessageType = "markdown"
	TypeHTML     MessageType = "html"
	TypeFile     MessageType = "file"
	TypeButton   MessageType = "button"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message represents a single chat turn or fragment. Messages are immutable
// once appended to a session. Timestamp is epoch milliseconds, matching the
// wire format the backend and persisted sessions use.
type Message struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Content   string         `json:"content"`
	Sender    Sender         `json:"sender"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a message with a generated ID and the current timestamp.
func NewMessage(sender Sender, typ MessageType, content string) Message {
	return Message{
		ID:        GenerateMessageID(),
		Type:      typ,
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UnixMilli(),
	}
}

// GenerateMessageID creates a unique message identifier.
func GenerateMessageID() string {
	return "msg-" + uuid.New().String()
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSessionID creates a session identifier in the wire-compatible
// format session_<epochMillis>_<9-char base36>. Sessions persisted by the
// browser widget and by this library are interchangeable.
func GenerateSessionID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return "session_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + string(suffix)
}
