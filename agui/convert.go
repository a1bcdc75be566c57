package agui

import (
	"time"

	webchat "github.com/weops/webchat"
)

// Role constants matching the AG-UI protocol.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ConvertMessage normalizes a protocol message object into the flat internal
// message shape. The content field may be a plain string or an array mixing
// strings and typed parts; array content flattens to the concatenation of
// its text parts, with other part kinds contributing nothing. A role of
// "user" maps to the user sender, anything else to bot.
func ConvertMessage(raw map[string]any) webchat.Message {
	msg := webchat.Message{
		ID:        webchat.GenerateMessageID(),
		Type:      webchat.TypeText,
		Sender:    webchat.SenderBot,
		Timestamp: time.Now().UnixMilli(),
	}

	if id, ok := raw["id"].(string); ok && id != "" {
		msg.ID = id
	}
	if role, _ := raw["role"].(string); role == RoleUser {
		msg.Sender = webchat.SenderUser
	}
	msg.Content = flattenContent(raw["content"])
	return msg
}

// flattenContent reduces string-or-parts content to plain text.
func flattenContent(v any) string {
	switch content := v.(type) {
	case string:
		return content
	case []any:
		var out string
		for _, part := range content {
			switch p := part.(type) {
			case string:
				out += p
			case map[string]any:
				if t, _ := p["type"].(string); t == "text" {
					text, _ := p["text"].(string)
					out += text
				}
			}
		}
		return out
	}
	return ""
}
