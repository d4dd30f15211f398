package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChatMessages(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t, time.Millisecond)

	got, err := store.ChatMessages(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	in := makeMessages(35)
	require.NoError(t, store.SaveChatMessages(ctx, in))

	got, err = store.ChatMessages(ctx)
	require.NoError(t, err)
	require.Equal(t, in[15:], got)

	// the session collection is untouched
	require.NotContains(t, backend.Snapshot(), SessionsKey)

	require.NoError(t, store.ClearChatMessages(ctx))
	got, err = store.ChatMessages(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestChatMessages_FailureYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	store, backend := newTestStore(t, time.Millisecond)
	require.NoError(t, store.SaveChatMessages(ctx, makeMessages(2)))

	backend.failGet = true
	got, err := store.ChatMessages(ctx)
	require.Error(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	backend.failGet = false
	backend.failSet = true
	require.ErrorIs(t, store.SaveChatMessages(ctx, makeMessages(1)), ErrStorageWriteFailed)
}

func TestMessageConstructors(t *testing.T) {
	u := NewUserMessage("hi")
	a := NewAssistantMessage("hello")
	require.True(t, u.IsUser)
	require.False(t, a.IsUser)
	require.Equal(t, "user", u.Role())
	require.Equal(t, "assistant", a.Role())
	require.NotEmpty(t, u.ID)
	require.NotEqual(t, u.ID, a.ID)
}
