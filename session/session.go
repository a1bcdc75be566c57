// Package session owns the logical chat session: its identity, message
// history and timestamps, and its persistence through a store adapter with a
// 24-hour expiry policy. The session is independent of any single network
// connection; a reconnect resumes the same conversation.
package session

import (
	"time"

	webchat "github.com/weops/webchat"
)

// MaxAge is the staleness window for restoring a persisted session. A
// session whose last activity is at least this old is treated as expired and
// never restored.
const MaxAge = 24 * time.Hour

// Session is the durable conversation record. Timestamps are epoch
// milliseconds; the serialized form round-trips with sessions persisted by
// the browser widget.
type Session struct {
	SessionID        string            `json:"sessionId"`
	UserID           string            `json:"userId,omitempty"`
	Messages         []webchat.Message `json:"messages"`
	StartTime        int64             `json:"startTime"`
	LastActivityTime int64             `json:"lastActivityTime"`
	CustomData       map[string]any    `json:"customData,omitempty"`
}

// newSession constructs a fresh session for the given user.
func newSession(userID string, customData map[string]any) *Session {
	now := time.Now().UnixMilli()
	return &Session{
		SessionID:        webchat.GenerateSessionID(),
		UserID:           userID,
		Messages:         []webchat.Message{},
		StartTime:        now,
		LastActivityTime: now,
		CustomData:       customData,
	}
}

// Expired reports whether the session is too stale to restore at the given
// instant.
func (s *Session) Expired(now time.Time) bool {
	return now.UnixMilli()-s.LastActivityTime >= MaxAge.Milliseconds()
}
