// Package session persists named chat conversations and the pointer to the
// one currently on screen.
//
// The whole collection lives in a single key-value document that is read,
// modified and written back on every change. There is no cross-key
// transaction: a crash between writing the collection and writing the
// current-session pointer can leave the pointer stale, which callers detect
// through GetSession returning ErrNotFound.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Keys of the persisted documents.
const (
	SessionsKey       = "@chat_sessions"
	CurrentSessionKey = "@current_session_id"
	LegacyMessagesKey = "@chat_messages"
)

const (
	// MaxSessionMessages bounds the persisted history of one session.
	MaxSessionMessages = 50
	// MaxLegacyMessages bounds the single-conversation message list.
	MaxLegacyMessages = 20
	DefaultName       = "New Chat"
)

// Message is one turn of a conversation.
type Message struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	IsUser bool   `json:"isUser"`
}

// NewUserMessage returns a message typed by the user.
func NewUserMessage(text string) Message {
	return Message{ID: newMessageID(), Text: text, IsUser: true}
}

// NewAssistantMessage returns a generated reply.
func NewAssistantMessage(text string) Message {
	return Message{ID: newMessageID(), Text: text}
}

// Role is the chat completion role for the message.
func (m Message) Role() string {
	if m.IsUser {
		return "user"
	}
	return "assistant"
}

// newMessageID returns a time-ordered UUIDv7, falling back to a random v4 if
// the clock source fails.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Session is a named conversation with its own bounded history.
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	Messages    []Message `json:"messages"`
}

// MostRecent returns the session with the greatest LastUpdated. Ties go to
// the one earlier in the slice.
func MostRecent(sessions []Session) (Session, bool) {
	if len(sessions) == 0 {
		return Session{}, false
	}
	best := 0
	for i := 1; i < len(sessions); i++ {
		if sessions[i].LastUpdated.After(sessions[best].LastUpdated) {
			best = i
		}
	}
	return sessions[best], true
}

// lastN returns a copy of the trailing n messages, never nil.
func lastN(messages []Message, n int) []Message {
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
