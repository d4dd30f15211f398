// Package chatlog keeps the working copy of the messages of the session on
// screen and writes every change through to the session store in the
// background.
package chatlog

import (
	"context"
	"sync"

	"github.com/comigor/pocketchat/internal/logger"
	"github.com/comigor/pocketchat/internal/session"
)

// Saver persists a session's message list.
type Saver interface {
	SaveSessionMessages(ctx context.Context, id string, messages []session.Message) error
}

// Log is the in-memory message list of one session. Mutations return
// immediately; persistence happens on a background goroutine and only the
// newest snapshot is written when several are pending. A failed write is
// logged and leaves memory as is.
type Log struct {
	sessionID string
	saver     Saver

	mu       sync.Mutex
	messages []session.Message
	pending  []session.Message
	dirty    bool
	closed   bool

	wake chan struct{}
	done chan struct{}
}

// New starts a log seeded with initial, which is copied.
func New(saver Saver, sessionID string, initial []session.Message) *Log {
	l := &Log{
		sessionID: sessionID,
		saver:     saver,
		messages:  append([]session.Message(nil), initial...),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go l.run()
	return l
}

// SessionID returns the session this log writes to.
func (l *Log) SessionID() string { return l.sessionID }

// Messages returns a copy of the current list.
func (l *Log) Messages() []session.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]session.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Append adds msg at the end.
func (l *Log) Append(msg session.Message) {
	l.mutate(func(m []session.Message) []session.Message {
		return append(m, msg)
	})
}

// TruncateTo keeps only the last n messages.
func (l *Log) TruncateTo(n int) {
	if n < 0 {
		n = 0
	}
	l.mutate(func(m []session.Message) []session.Message {
		if len(m) <= n {
			return m
		}
		return append([]session.Message(nil), m[len(m)-n:]...)
	})
}

// Clear empties the list.
func (l *Log) Clear() {
	l.mutate(func([]session.Message) []session.Message {
		return []session.Message{}
	})
}

// Close writes any pending snapshot and stops the writer. Mutations after
// Close stay in memory only.
func (l *Log) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	close(l.wake)
	l.mu.Unlock()
	<-l.done
}

func (l *Log) mutate(fn func([]session.Message) []session.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = fn(l.messages)
	if l.closed {
		logger.L.Warn("chat log closed; change not persisted", "session", l.sessionID)
		return
	}
	l.pending = make([]session.Message, len(l.messages))
	copy(l.pending, l.messages)
	l.dirty = true

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Log) run() {
	defer close(l.done)
	for range l.wake {
		l.flush()
	}
	l.flush()
}

func (l *Log) flush() {
	l.mu.Lock()
	if !l.dirty {
		l.mu.Unlock()
		return
	}
	snapshot := l.pending
	l.pending, l.dirty = nil, false
	l.mu.Unlock()

	if err := l.saver.SaveSessionMessages(context.Background(), l.sessionID, snapshot); err != nil {
		logger.L.Warn("background save of session messages failed", "session", l.sessionID, "error", err)
	}
}
