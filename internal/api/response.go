package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/comigor/pocketchat/internal/chat"
	"github.com/comigor/pocketchat/internal/kv"
	"github.com/comigor/pocketchat/internal/logger"
	"github.com/comigor/pocketchat/internal/media"
	"github.com/comigor/pocketchat/internal/session"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// JSON sends data with status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.L.Warn("encode response", "error", err)
	}
}

// Error sends an error message with status.
func Error(w http.ResponseWriter, status int, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Response{Error: message}); err != nil {
		logger.L.Warn("encode response", "error", err)
	}
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

func BadRequest(w http.ResponseWriter, message any) {
	Error(w, http.StatusBadRequest, message)
}

// Fail maps a domain error to its status code.
func Fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrCannotDeleteLastSession), errors.Is(err, chat.ErrBusy):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrEmptyName),
		errors.Is(err, media.ErrEmptyPrompt), errors.Is(err, media.ErrEmptyText):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrRemoteRequestFailed):
		Error(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, kv.ErrStorageUnavailable), errors.Is(err, session.ErrStorageWriteFailed),
		errors.Is(err, session.ErrCorruptDocument):
		Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.L.Error("unhandled error", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
