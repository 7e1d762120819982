package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", handler.readyz)

	r.Route("/hik", func(r chi.Router) {
		r.Post("/events", handler.receiveNotification)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/devices/{device_id}/presence", handler.devicePresence)
		r.Get("/outbox/stats", handler.outboxStats)
	})
	return r
}
