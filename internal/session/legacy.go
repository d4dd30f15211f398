package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/comigor/pocketchat/internal/logger"
)

// SaveChatMessages stores the single-conversation history, keeping the last
// MaxLegacyMessages entries. It is independent of the session collection.
func (s *Store) SaveChatMessages(ctx context.Context, messages []Message) error {
	data, err := json.Marshal(lastN(messages, MaxLegacyMessages))
	if err != nil {
		return fmt.Errorf("%w: encode messages: %w", ErrStorageWriteFailed, err)
	}
	if err := s.kv.Set(ctx, LegacyMessagesKey, string(data)); err != nil {
		logger.L.Error("failed to save chat messages", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

// ChatMessages loads the single-conversation history. A missing document is
// an empty history.
func (s *Store) ChatMessages(ctx context.Context) ([]Message, error) {
	raw, ok, err := s.kv.Get(ctx, LegacyMessagesKey)
	if err != nil {
		logger.L.Error("failed to load chat messages", "error", err)
		return []Message{}, err
	}
	if !ok || raw == "" {
		return []Message{}, nil
	}
	var messages []Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		logger.L.Error("failed to decode chat messages", "error", err)
		return []Message{}, fmt.Errorf("decode messages: %w", err)
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

// ClearChatMessages removes the single-conversation history.
func (s *Store) ClearChatMessages(ctx context.Context) error {
	if err := s.kv.Remove(ctx, LegacyMessagesKey); err != nil {
		logger.L.Error("failed to clear chat messages", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}
