// Package api exposes the chat controller and the media builders over JSON
// HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/comigor/pocketchat/internal/logger"
)

// NewRouter wires every route to h.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)
			r.Get("/current", h.CurrentSession)
			r.Put("/current", h.SwitchSession)
			r.Patch("/{sessionID}", h.RenameSession)
			r.Delete("/{sessionID}", h.DeleteSession)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/messages", h.SendMessage)
			r.Delete("/messages", h.ClearMessages)
			r.Get("/model", h.GetModel)
			r.Put("/model", h.SetModel)
			r.Get("/models", h.ListModels)
		})

		r.Post("/images", h.BuildImageURL)
		r.Get("/images/models", h.ImageCatalogue)
		r.Post("/speech", h.BuildSpeechURL)
		r.Get("/speech/voices", h.Voices)

		r.Delete("/storage", h.ClearAll)
		r.Get("/storage/messages", h.LegacyMessages)
		r.Put("/storage/messages", h.SaveLegacyMessages)
		r.Delete("/storage/messages", h.ClearLegacyMessages)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.L.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
