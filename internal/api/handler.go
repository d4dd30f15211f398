package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/comigor/pocketchat/internal/chat"
	"github.com/comigor/pocketchat/internal/media"
	"github.com/comigor/pocketchat/internal/session"
)

type Handler struct {
	chat     *chat.Controller
	store    *session.Store
	images   *media.ImageURLBuilder
	speech   *media.SpeechURLBuilder
	validate *validator.Validate
}

func NewHandler(controller *chat.Controller, store *session.Store, images *media.ImageURLBuilder, speech *media.SpeechURLBuilder) *Handler {
	return &Handler{
		chat:     controller,
		store:    store,
		images:   images,
		speech:   speech,
		validate: validator.New(),
	}
}

type createSessionRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type switchSessionRequest struct {
	ID string `json:"id" validate:"required"`
}

type renameSessionRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type setModelRequest struct {
	Model string `json:"model" validate:"required"`
}

type imageRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model"`
	Width  int    `json:"width" validate:"omitempty,min=64,max=4096"`
	Height int    `json:"height" validate:"omitempty,min=64,max=4096"`
}

type speechRequest struct {
	Text  string `json:"text" validate:"required"`
	Voice string `json:"voice"`
}

type legacyMessagesRequest struct {
	Messages []session.Message `json:"messages" validate:"dive"`
}

type sessionList struct {
	Sessions  []sessionSummary `json:"sessions"`
	CurrentID string           `json:"currentId"`
}

// sessionSummary is a session without its messages.
type sessionSummary struct {
	session.Session
	Messages     []session.Message `json:"messages,omitempty"`
	MessageCount int               `json:"messageCount"`
}

// decode reads an optional JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return h.validate.Struct(dst)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]string{"status": "ok"})
}

// ListSessions returns every session and the current id.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, currentID, err := h.chat.Sessions(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	out := sessionList{Sessions: make([]sessionSummary, len(sessions)), CurrentID: currentID}
	for i, s := range sessions {
		out.Sessions[i] = sessionSummary{Session: s, MessageCount: len(s.Messages)}
	}
	OK(w, out)
}

// CreateSession creates a session and makes it current.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := h.decode(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	created, err := h.chat.NewSession(r.Context(), req.Name)
	if err != nil {
		Fail(w, err)
		return
	}
	Created(w, created)
}

func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	current, err := h.chat.Current()
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, current)
}

func (h *Handler) SwitchSession(w http.ResponseWriter, r *http.Request) {
	var req switchSessionRequest
	if err := h.decode(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	current, err := h.chat.SwitchSession(r.Context(), req.ID)
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, current)
}

func (h *Handler) RenameSession(w http.ResponseWriter, r *http.Request) {
	var req renameSessionRequest
	if err := h.decode(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	renamed, err := h.chat.RenameSession(r.Context(), chi.URLParam(r, "sessionID"), req.Name)
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, renamed)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		Fail(w, err)
		return
	}
	current, err := h.chat.Current()
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, map[string]string{"currentId": current.ID})
}

// SendMessage posts the user's text and returns the reply.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := h.decode(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	reply, err := h.chat.Send(r.Context(), req.Text)
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, reply)
}

func (h *Handler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.ClearMessages(); err != nil {
		Fail(w, err)
		return
	}
	OK(w, map[string]string{"message": "Messages cleared"})
}

func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]string{"model": h.chat.Model()})
}

func (h *Handler) SetModel(w http.ResponseWriter, r *http.Request) {
	var req setModelRequest
	if err := h.decode(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	h.chat.SetModel(req.Model)
	OK(w, map[string]string{"model": req.Model})
}

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.chat.Models(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, map[string]any{"models": models})
}

func (h *Handler) BuildImageURL(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := h.decode(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	url, err := h.images.Build(media.ImageRequest{
		Prompt: req.Prompt,
		Model:  req.Model,
		Width:  req.Width,
		Height: req.Height,
	})
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, map[string]string{"url": url})
}

func (h *Handler) ImageCatalogue(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]any{"models": media.ImageModels, "sizes": media.ImageSizes})
}

func (h *Handler) BuildSpeechURL(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := h.decode(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	url, err := h.speech.Build(req.Text, req.Voice)
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, map[string]string{"url": url})
}

func (h *Handler) Voices(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]any{"voices": media.Voices, "sample": media.SampleText})
}

// ClearAll wipes storage and returns the fresh session.
func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	fresh, err := h.chat.ClearAll(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, fresh)
}

// LegacyMessages returns the single-conversation history.
func (h *Handler) LegacyMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.ChatMessages(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, map[string]any{"messages": messages})
}

// SaveLegacyMessages replaces the single-conversation history; only the
// newest entries are kept.
func (h *Handler) SaveLegacyMessages(w http.ResponseWriter, r *http.Request) {
	var req legacyMessagesRequest
	if err := h.decode(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := h.store.SaveChatMessages(r.Context(), req.Messages); err != nil {
		Fail(w, err)
		return
	}
	messages, err := h.store.ChatMessages(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	OK(w, map[string]any{"messages": messages})
}

func (h *Handler) ClearLegacyMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearChatMessages(r.Context()); err != nil {
		Fail(w, err)
		return
	}
	OK(w, map[string]string{"message": "Chat messages cleared"})
}
