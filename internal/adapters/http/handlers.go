package http

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/timepay/event-listener/internal/application"
)

const maxNotificationBytes = 4 << 20

type Handler struct {
	service *application.Service
	ready   func(ctx context.Context) error
}

func NewHandler(service *application.Service, ready func(ctx context.Context) error) *Handler {
	return &Handler{service: service, ready: ready}
}

func (h *Handler) receiveNotification(w http.ResponseWriter, r *http.Request) {
	raw, err := extractNotification(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid event data")
		return
	}
	if _, err := h.service.IngestNotification(r.Context(), raw); err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeMessage(w, http.StatusOK, "event processed successfully")
}

// extractNotification pulls the JSON frame out of the request. Controllers
// send multipart/form-data with the frame in a text part (plus optional
// capture pictures, which are discarded); plain JSON bodies are accepted too.
func extractNotification(r *http.Request) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	}
	if err := r.ParseMultipartForm(maxNotificationBytes); err != nil {
		return nil, err
	}
	for _, values := range r.MultipartForm.Value {
		for _, value := range values {
			if strings.Contains(value, "eventType") {
				return []byte(value), nil
			}
		}
	}
	return nil, http.ErrMissingFile
}

func (h *Handler) devicePresence(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")
	resp, err := h.service.DevicePresence(r.Context(), deviceID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) outboxStats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.OutboxStats(r.Context())
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
