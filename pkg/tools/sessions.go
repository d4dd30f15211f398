package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/pocketchat/internal/session"
)

// SessionsTool lists the stored chat sessions without their messages.
type SessionsTool struct {
	store *session.Store
}

func NewSessionsTool(store *session.Store) *SessionsTool {
	return &SessionsTool{store: store}
}

type sessionEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LastUpdated  string `json:"lastUpdated"`
	MessageCount int    `json:"messageCount"`
	Current      bool   `json:"current"`
}

func (t *SessionsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_sessions",
		mcp.WithDescription("Lists the chat sessions as JSON, most recently updated first."),
	)
}

func (t *SessionsTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := t.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	currentID, _, err := t.store.CurrentSessionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("current session: %w", err)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastUpdated.After(sessions[j].LastUpdated)
	})
	entries := make([]sessionEntry, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, sessionEntry{
			ID:           s.ID,
			Name:         s.Name,
			LastUpdated:  s.LastUpdated.Format(time.RFC3339),
			MessageCount: len(s.Messages),
			Current:      s.ID == currentID,
		})
	}

	out, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
