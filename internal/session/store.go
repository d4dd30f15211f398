package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/comigor/pocketchat/internal/kv"
	"github.com/comigor/pocketchat/internal/logger"
)

var (
	ErrNotFound                = errors.New("session not found")
	ErrCannotDeleteLastSession = errors.New("cannot delete the last remaining session")
	ErrStorageWriteFailed      = errors.New("session storage write failed")
	// ErrCorruptDocument means the persisted collection could not be decoded.
	ErrCorruptDocument = errors.New("session collection is unreadable")
)

// Store owns the session collection and the current-session pointer.
type Store struct {
	kv  kv.Store
	now func() time.Time

	// mu serialises read-modify-write cycles within this process
	mu     sync.Mutex
	lastID int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore builds a Store persisting to backend.
func NewStore(backend kv.Store, opts ...Option) *Store {
	s := &Store{kv: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession appends a new empty session. An empty name becomes
// DefaultName.
func (s *Store) CreateSession(ctx context.Context, name string) (Session, error) {
	if name == "" {
		name = DefaultName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		logger.L.Error("failed to create session", "error", err)
		return Session{}, fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}

	now := s.now().UTC()
	session := Session{
		ID:          s.nextID(now, sessions),
		Name:        name,
		CreatedAt:   now,
		LastUpdated: now,
		Messages:    []Message{},
	}
	if err := s.save(ctx, append(sessions, session)); err != nil {
		logger.L.Error("failed to create session", "error", err)
		return Session{}, err
	}
	logger.L.Debug("session created", "id", session.ID, "name", name)
	return session, nil
}

// ListSessions returns the collection in persisted order.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// GetSession returns the session with id or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return Session{}, err
	}
	i := indexOf(sessions, id)
	if i < 0 {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sessions[i], nil
}

// SetCurrentSession persists the current-session pointer. The id is not
// checked against the collection.
func (s *Store) SetCurrentSession(ctx context.Context, id string) error {
	if err := s.kv.Set(ctx, CurrentSessionKey, id); err != nil {
		logger.L.Error("failed to set current session id", "id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

// CurrentSessionID returns the persisted pointer. It may name a deleted
// session.
func (s *Store) CurrentSessionID(ctx context.Context) (string, bool, error) {
	id, ok, err := s.kv.Get(ctx, CurrentSessionKey)
	if err != nil {
		logger.L.Error("failed to get current session id", "error", err)
		return "", false, err
	}
	if !ok || id == "" {
		return "", false, nil
	}
	return id, true, nil
}

// RenameSession changes the display name and bumps LastUpdated.
func (s *Store) RenameSession(ctx context.Context, id, name string) (Session, error) {
	return s.update(ctx, id, func(session *Session) {
		session.Name = name
	})
}

// DeleteSession removes a session. The last remaining session cannot be
// deleted. The current-session pointer is left untouched.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(sessions, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(sessions) <= 1 {
		return ErrCannotDeleteLastSession
	}
	if err := s.save(ctx, slices.Delete(sessions, i, i+1)); err != nil {
		logger.L.Error("failed to delete session", "id", id, "error", err)
		return err
	}
	logger.L.Debug("session deleted", "id", id)
	return nil
}

// SaveSessionMessages replaces the history with the last MaxSessionMessages
// entries of messages. Failures are logged and returned.
func (s *Store) SaveSessionMessages(ctx context.Context, id string, messages []Message) error {
	_, err := s.update(ctx, id, func(session *Session) {
		session.Messages = lastN(messages, MaxSessionMessages)
	})
	if err != nil {
		logger.L.Error("failed to save session messages", "id", id, "error", err)
	}
	return err
}

// Bootstrap resolves the session to show on start. The stored pointer wins
// when it names an existing session; otherwise the most recently updated
// session is chosen; an empty store gets a fresh DefaultName session. The
// pointer is persisted whenever it changes.
func (s *Store) Bootstrap(ctx context.Context) (Session, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return Session{}, err
	}

	id, ok, err := s.CurrentSessionID(ctx)
	if err != nil {
		return Session{}, err
	}
	if ok {
		if i := indexOf(sessions, id); i >= 0 {
			return sessions[i], nil
		}
		logger.L.Warn("current session pointer is stale", "id", id)
	}

	current, found := MostRecent(sessions)
	if !found {
		current, err = s.CreateSession(ctx, DefaultName)
		if err != nil {
			return Session{}, err
		}
	}
	if err := s.SetCurrentSession(ctx, current.ID); err != nil {
		return Session{}, err
	}
	return current, nil
}

// Detached returns a fresh DefaultName session that is not persisted. It
// stands in for the current session when the collection cannot be read.
func (s *Store) Detached() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	return Session{
		ID:          s.nextID(now, nil),
		Name:        DefaultName,
		CreatedAt:   now,
		LastUpdated: now,
		Messages:    []Message{},
	}
}

// ClearAll wipes every key of the backing store, sessions included.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Clear(ctx); err != nil {
		logger.L.Error("failed to clear storage", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, id string, mutate func(*Session)) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		return Session{}, err
	}
	i := indexOf(sessions, id)
	if i < 0 {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	mutate(&sessions[i])
	if now := s.now().UTC(); now.After(sessions[i].LastUpdated) {
		sessions[i].LastUpdated = now
	}
	if err := s.save(ctx, sessions); err != nil {
		return Session{}, err
	}
	return sessions[i], nil
}

func (s *Store) load(ctx context.Context) ([]Session, error) {
	raw, ok, err := s.kv.Get(ctx, SessionsKey)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if !ok || raw == "" {
		return []Session{}, nil
	}
	var sessions []Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptDocument, err)
	}
	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []Message{}
		}
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

func (s *Store) save(ctx context.Context, sessions []Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("%w: encode sessions: %w", ErrStorageWriteFailed, err)
	}
	if err := s.kv.Set(ctx, SessionsKey, string(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

// nextID derives an id from the creation time in milliseconds, bumped past
// anything issued before or already present in the collection.
func (s *Store) nextID(now time.Time, existing []Session) string {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	for indexOf(existing, strconv.FormatInt(id, 10)) >= 0 {
		id++
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

func indexOf(sessions []Session, id string) int {
	return slices.IndexFunc(sessions, func(s Session) bool { return s.ID == id })
}
