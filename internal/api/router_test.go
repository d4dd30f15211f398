package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/pocketchat/internal/chat"
	"github.com/comigor/pocketchat/internal/config"
	"github.com/comigor/pocketchat/internal/kv"
	"github.com/comigor/pocketchat/internal/media"
	"github.com/comigor/pocketchat/internal/session"
)

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.reply}}},
	}, nil
}

func (s *stubLLM) ListModels(context.Context) (openai.ModelsList, error) {
	return openai.ModelsList{Models: []openai.Model{{ID: "openai"}}}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

func newTestServer(t *testing.T) (http.Handler, *session.Store) {
	t.Helper()
	store := session.NewStore(kv.NewMemory())
	controller := chat.NewController(store, chat.NewAssistant(&stubLLM{reply: "pong"}, config.LLMConfig{}), "gpt-4")
	_, err := controller.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(controller.Close)

	h := NewHandler(controller, store,
		media.NewImageURLBuilder(config.ImageConfig{BaseURL: "https://img.test/prompt", Model: "flux", Width: 1024, Height: 1024}),
		media.NewSpeechURLBuilder(config.SpeechConfig{BaseURL: "https://tts.test/speech", Voice: "alloy"}),
	)
	return NewRouter(h), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return rec.Code, env
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestServer(t)
	code, env := do(t, h, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	require.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestSessionLifecycle(t *testing.T) {
	h, store := newTestServer(t)

	code, env := do(t, h, http.MethodGet, "/api/v1/sessions/", nil)
	require.Equal(t, http.StatusOK, code)
	var list sessionList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Sessions, 1)
	first := list.Sessions[0].ID
	require.Equal(t, first, list.CurrentID)

	// deleting the only session is refused
	code, _ = do(t, h, http.MethodDelete, "/api/v1/sessions/"+first, nil)
	require.Equal(t, http.StatusConflict, code)

	code, env = do(t, h, http.MethodPost, "/api/v1/sessions/", map[string]string{"name": "Work"})
	require.Equal(t, http.StatusCreated, code)
	var created session.Session
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, "Work", created.Name)

	code, _ = do(t, h, http.MethodPatch, "/api/v1/sessions/"+created.ID, map[string]string{"name": "Office"})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodPatch, "/api/v1/sessions/"+created.ID, map[string]string{"name": ""})
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, h, http.MethodPatch, "/api/v1/sessions/missing", map[string]string{"name": "x"})
	require.Equal(t, http.StatusNotFound, code)

	code, env = do(t, h, http.MethodPut, "/api/v1/sessions/current", map[string]string{"id": first})
	require.Equal(t, http.StatusOK, code)
	var current session.Session
	require.NoError(t, json.Unmarshal(env.Data, &current))
	require.Equal(t, first, current.ID)

	code, env = do(t, h, http.MethodDelete, "/api/v1/sessions/"+first, nil)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"currentId":"`+created.ID+`"}`, string(env.Data))

	renamed, err := store.GetSession(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Office", renamed.Name)
}

func TestSendMessage(t *testing.T) {
	h, _ := newTestServer(t)

	code, env := do(t, h, http.MethodPost, "/api/v1/chat/messages", map[string]string{"text": "ping"})
	require.Equal(t, http.StatusOK, code)
	var reply session.Message
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	require.Equal(t, "pong", reply.Text)
	require.False(t, reply.IsUser)

	code, env = do(t, h, http.MethodGet, "/api/v1/sessions/current", nil)
	require.Equal(t, http.StatusOK, code)
	var current session.Session
	require.NoError(t, json.Unmarshal(env.Data, &current))
	require.Len(t, current.Messages, 2)

	code, _ = do(t, h, http.MethodPost, "/api/v1/chat/messages", map[string]string{"text": ""})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodDelete, "/api/v1/chat/messages", nil)
	require.Equal(t, http.StatusOK, code)
	_, env = do(t, h, http.MethodGet, "/api/v1/sessions/current", nil)
	require.NoError(t, json.Unmarshal(env.Data, &current))
	require.Empty(t, current.Messages)
}

func TestModelSelection(t *testing.T) {
	h, _ := newTestServer(t)

	code, env := do(t, h, http.MethodPut, "/api/v1/chat/model", map[string]string{"model": "mistral"})
	require.Equal(t, http.StatusOK, code)
	_, env = do(t, h, http.MethodGet, "/api/v1/chat/model", nil)
	require.JSONEq(t, `{"model":"mistral"}`, string(env.Data))

	code, env = do(t, h, http.MethodGet, "/api/v1/chat/models", nil)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"models":["openai"]}`, string(env.Data))
}

func TestMediaURLs(t *testing.T) {
	h, _ := newTestServer(t)

	code, env := do(t, h, http.MethodPost, "/api/v1/images", map[string]any{"prompt": "red fox", "width": 1920, "height": 1080})
	require.Equal(t, http.StatusOK, code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &out))
	u, err := url.Parse(out["url"])
	require.NoError(t, err)
	require.Equal(t, "img.test", u.Host)
	require.Equal(t, "1920", u.Query().Get("width"))

	code, _ = do(t, h, http.MethodPost, "/api/v1/images", map[string]any{"prompt": "x", "width": 10})
	require.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, h, http.MethodPost, "/api/v1/speech", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Equal(t, "https://tts.test/speech?voice=alloy&text=hello", out["url"])

	code, _ = do(t, h, http.MethodGet, "/api/v1/speech/voices", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodGet, "/api/v1/images/models", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestClearStorage(t *testing.T) {
	h, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.SaveChatMessages(ctx, []session.Message{session.NewUserMessage("old")}))

	code, _ := do(t, h, http.MethodDelete, "/api/v1/storage/messages", nil)
	require.Equal(t, http.StatusOK, code)
	msgs, err := store.ChatMessages(ctx)
	require.NoError(t, err)
	require.Empty(t, msgs)

	_, env := do(t, h, http.MethodPost, "/api/v1/sessions/", nil)
	var created session.Session
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, session.DefaultName, created.Name)

	code, env = do(t, h, http.MethodDelete, "/api/v1/storage", nil)
	require.Equal(t, http.StatusOK, code)
	var fresh session.Session
	require.NoError(t, json.Unmarshal(env.Data, &fresh))

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, fresh.ID, sessions[0].ID)
}

func TestLegacyMessages(t *testing.T) {
	h, _ := newTestServer(t)

	code, env := do(t, h, http.MethodGet, "/api/v1/storage/messages", nil)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"messages":[]}`, string(env.Data))

	msgs := make([]session.Message, session.MaxLegacyMessages+5)
	for i := range msgs {
		msgs[i] = session.NewUserMessage("m")
	}
	code, env = do(t, h, http.MethodPut, "/api/v1/storage/messages", map[string]any{"messages": msgs})
	require.Equal(t, http.StatusOK, code)
	var out struct {
		Messages []session.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Messages, session.MaxLegacyMessages)
	require.Equal(t, msgs[len(msgs)-1].ID, out.Messages[len(out.Messages)-1].ID)

	_, env = do(t, h, http.MethodGet, "/api/v1/storage/messages", nil)
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Messages, session.MaxLegacyMessages)

	code, _ = do(t, h, http.MethodDelete, "/api/v1/storage/messages", nil)
	require.Equal(t, http.StatusOK, code)
	_, env = do(t, h, http.MethodGet, "/api/v1/storage/messages", nil)
	require.JSONEq(t, `{"messages":[]}`, string(env.Data))
}

func TestCorruptCollectionCanBeCleared(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, session.SessionsKey, "{not json"))
	store := session.NewStore(backend)
	controller := chat.NewController(store, chat.NewAssistant(&stubLLM{reply: "pong"}, config.LLMConfig{}), "gpt-4")
	_, err := controller.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(controller.Close)
	h := NewRouter(NewHandler(controller, store,
		media.NewImageURLBuilder(config.ImageConfig{}), media.NewSpeechURLBuilder(config.SpeechConfig{})))

	code, _ := do(t, h, http.MethodGet, "/api/v1/sessions/", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, h, http.MethodDelete, "/api/v1/storage", nil)
	require.Equal(t, http.StatusOK, code)

	code, env := do(t, h, http.MethodGet, "/api/v1/sessions/", nil)
	require.Equal(t, http.StatusOK, code)
	var list sessionList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Sessions, 1)
}
