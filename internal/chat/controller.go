// Package chat drives a conversation: it resolves the session on screen,
// sends user turns to the model and keeps the session collection in step
// while sessions are created, switched, renamed and deleted.
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/comigor/pocketchat/internal/chatlog"
	"github.com/comigor/pocketchat/internal/logger"
	"github.com/comigor/pocketchat/internal/session"
)

var (
	ErrRemoteRequestFailed = errors.New("remote request failed")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrEmptyName           = errors.New("session name is empty")
	ErrBusy                = errors.New("a reply is still pending")
	ErrNotStarted          = errors.New("controller not started")
)

// ApologyText replaces the reply when the model cannot be reached.
const ApologyText = "I apologize, but I encountered an error while processing your request. Please try again."

// Send states and triggers.
const (
	StateIdle          = "Idle"
	StateAwaitingReply = "AwaitingReply"

	TriggerSend          = "Send"
	TriggerReplyReceived = "ReplyReceived"
	TriggerReplyFailed   = "ReplyFailed"
)

// Controller owns the session on screen and its message log.
type Controller struct {
	store     *session.Store
	assistant *Assistant

	mu      sync.Mutex
	fsm     *stateless.StateMachine
	current session.Session
	log     *chatlog.Log
	model   string
}

// NewController builds a controller; call Start before anything else.
func NewController(store *session.Store, assistant *Assistant, model string) *Controller {
	c := &Controller{store: store, assistant: assistant, model: model}

	// A send moves Idle -> AwaitingReply; only the reply (or its failure)
	// moves it back, so a second send in between is rejected.
	c.fsm = stateless.NewStateMachine(StateIdle)
	c.fsm.Configure(StateIdle).
		Permit(TriggerSend, StateAwaitingReply)
	c.fsm.Configure(StateAwaitingReply).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Debug("awaiting reply", "session", c.current.ID)
			return nil
		}).
		Permit(TriggerReplyReceived, StateIdle).
		Permit(TriggerReplyFailed, StateIdle)

	return c
}

// Start loads the session to show, creating one if the store is empty. An
// unreadable collection is left untouched and an unsaved session is shown
// until the data is cleared.
func (c *Controller) Start(ctx context.Context) (session.Session, error) {
	current, err := c.store.Bootstrap(ctx)
	if errors.Is(err, session.ErrCorruptDocument) {
		logger.L.Error("stored sessions are unreadable; starting with an unsaved session", "error", err)
		current, err = c.store.Detached(), nil
	}
	if err != nil {
		return session.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLog()
	c.open(current)
	logger.L.Info("chat started", "session", current.ID, "messages", len(current.Messages))
	return c.snapshot(), nil
}

// Current returns the session on screen with its working messages.
func (c *Controller) Current() (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		return session.Session{}, ErrNotStarted
	}
	return c.snapshot(), nil
}

// Messages returns the working messages of the session on screen.
func (c *Controller) Messages() []session.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		return []session.Message{}
	}
	return c.log.Messages()
}

// Sessions lists every session and the id of the one on screen.
func (c *Controller) Sessions(ctx context.Context) ([]session.Session, string, error) {
	sessions, err := c.store.ListSessions(ctx)
	if err != nil {
		return nil, "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return sessions, c.current.ID, nil
}

// NewSession creates a session and puts it on screen.
func (c *Controller) NewSession(ctx context.Context, name string) (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.idle(); err != nil {
		return session.Session{}, err
	}

	created, err := c.store.CreateSession(ctx, strings.TrimSpace(name))
	if err != nil {
		return session.Session{}, err
	}
	// the session exists now; a stale pointer is repaired on the next start
	if err := c.store.SetCurrentSession(ctx, created.ID); err != nil {
		logger.L.Warn("new session not saved as current", "session", created.ID, "error", err)
	}
	c.closeLog()
	c.open(created)
	return c.snapshot(), nil
}

// SwitchSession puts the session id on screen, reloading its messages from
// the store.
func (c *Controller) SwitchSession(ctx context.Context, id string) (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		return session.Session{}, ErrNotStarted
	}
	if err := c.idle(); err != nil {
		return session.Session{}, err
	}
	return c.switchTo(ctx, id)
}

// RenameSession trims name and renames session id.
func (c *Controller) RenameSession(ctx context.Context, id, name string) (session.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return session.Session{}, ErrEmptyName
	}
	renamed, err := c.store.RenameSession(ctx, id, name)
	if err != nil {
		return session.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.ID == id {
		c.current.Name = renamed.Name
		c.current.LastUpdated = renamed.LastUpdated
	}
	return renamed, nil
}

// DeleteSession removes session id. When it is the session on screen the
// most recently updated remaining session takes its place.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		return ErrNotStarted
	}
	if err := c.idle(); err != nil {
		return err
	}

	if id != c.current.ID {
		return c.store.DeleteSession(ctx, id)
	}

	sessions, err := c.store.ListSessions(ctx)
	if err != nil {
		return err
	}
	others := slices.DeleteFunc(sessions, func(s session.Session) bool { return s.ID == id })
	next, ok := session.MostRecent(others)
	if !ok {
		return session.ErrCannotDeleteLastSession
	}

	// flush the working copy so no late write targets the deleted session
	kept := c.log.Messages()
	c.closeLog()
	if err := c.store.DeleteSession(ctx, id); err != nil {
		c.restore(kept)
		return err
	}

	if fresh, err := c.store.GetSession(ctx, next.ID); err == nil {
		next = fresh
	} else {
		logger.L.Warn("reload of next session failed", "session", next.ID, "error", err)
	}
	// the deleted session is gone either way; a stale pointer is repaired on
	// the next start by picking the same most recent session
	if err := c.store.SetCurrentSession(ctx, next.ID); err != nil {
		logger.L.Warn("next session not saved as current", "session", next.ID, "error", err)
	}
	c.open(next)
	return nil
}

// Send appends the user's text, asks the model and appends its reply. When
// the model cannot be reached the apology is appended instead and returned
// as the reply; the error is only logged.
func (c *Controller) Send(ctx context.Context, text string) (session.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return session.Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.log == nil {
		c.mu.Unlock()
		return session.Message{}, ErrNotStarted
	}
	if err := c.fsm.FireCtx(ctx, TriggerSend); err != nil {
		c.mu.Unlock()
		return session.Message{}, ErrBusy
	}
	log, model := c.log, c.model
	history := log.Messages()
	log.Append(session.NewUserMessage(text))
	log.TruncateTo(session.MaxSessionMessages)
	c.mu.Unlock()

	content, err := c.assistant.Complete(ctx, model, history, text)

	trigger := TriggerReplyReceived
	reply := session.NewAssistantMessage(content)
	if err != nil {
		logger.L.Error("chat completion failed", "session", log.SessionID(), "error", err)
		trigger = TriggerReplyFailed
		reply = session.NewAssistantMessage(ApologyText)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	log.Append(reply)
	log.TruncateTo(session.MaxSessionMessages)
	if err := c.fsm.FireCtx(ctx, trigger); err != nil {
		logger.L.Warn("send state machine fire error", "error", err)
	}
	return reply, nil
}

// ClearMessages empties the history of the session on screen.
func (c *Controller) ClearMessages() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		return ErrNotStarted
	}
	if err := c.idle(); err != nil {
		return err
	}
	c.log.Clear()
	return nil
}

// ClearAll wipes every stored document and starts over with a fresh
// session.
func (c *Controller) ClearAll(ctx context.Context) (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		return session.Session{}, ErrNotStarted
	}
	if err := c.idle(); err != nil {
		return session.Session{}, err
	}

	kept := c.log.Messages()
	c.closeLog()
	if err := c.store.ClearAll(ctx); err != nil {
		c.restore(kept)
		return session.Session{}, err
	}
	current, err := c.store.Bootstrap(ctx)
	if err != nil {
		c.restore(kept)
		return session.Session{}, err
	}
	c.open(current)
	logger.L.Info("all data cleared", "session", current.ID)
	return c.snapshot(), nil
}

func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

func (c *Controller) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

// Models lists the models the endpoint offers.
func (c *Controller) Models(ctx context.Context) ([]string, error) {
	return c.assistant.Models(ctx)
}

// Close flushes the working messages.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLog()
}

func (c *Controller) switchTo(ctx context.Context, id string) (session.Session, error) {
	kept := c.log.Messages()
	// let pending writes land before reading the collection back
	c.closeLog()
	target, err := c.store.GetSession(ctx, id)
	if err != nil {
		c.restore(kept)
		return session.Session{}, err
	}
	if err := c.store.SetCurrentSession(ctx, id); err != nil {
		c.restore(kept)
		return session.Session{}, err
	}
	c.open(target)
	return c.snapshot(), nil
}

// restore reopens the session on screen with messages after a failed change.
func (c *Controller) restore(messages []session.Message) {
	c.log = chatlog.New(c.store, c.current.ID, messages)
}

func (c *Controller) open(s session.Session) {
	c.current = s
	c.current.Messages = nil
	c.log = chatlog.New(c.store, s.ID, s.Messages)
}

func (c *Controller) closeLog() {
	if c.log != nil {
		c.log.Close()
	}
}

func (c *Controller) idle() error {
	ok, err := c.fsm.IsInState(StateIdle)
	if err != nil || !ok {
		return ErrBusy
	}
	return nil
}

func (c *Controller) snapshot() session.Session {
	s := c.current
	s.Messages = c.log.Messages()
	return s
}
