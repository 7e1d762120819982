package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/timepay/event-listener/internal/application"
	"github.com/timepay/event-listener/internal/domain"
	"github.com/timepay/event-listener/internal/ports"
)

const accessEventFrame = `{
	"dateTime": "2026-08-29T08:15:03+03:00",
	"activePostCount": 1,
	"eventType": "AccessControllerEvent",
	"eventState": "active",
	"eventDescription": "Access Controller Event",
	"deviceID": "door-7",
	"AccessControllerEvent": {
		"majorEventType": 5,
		"subEventType": 75,
		"employeeNoString": "1077",
		"name": "Ayşe Kaya",
		"attendanceStatus": "checkIn"
	}
}`

type stubEvents struct{ nextID int64 }

func (s *stubEvents) CreateAccessEvent(_ context.Context, params ports.CreateAccessEventParams) error {
	s.nextID++
	params.Event.ID = s.nextID
	return nil
}

func (s *stubEvents) CreateHeartbeat(_ context.Context, params ports.CreateHeartbeatParams) error {
	s.nextID++
	params.Heartbeat.ID = s.nextID
	return nil
}

type stubOutbox struct {
	nextID   int64
	appended int
	count    int64
	countErr error
}

func (s *stubOutbox) Append(context.Context, ports.AppendOutboxParams) (int64, error) {
	s.nextID++
	s.appended++
	return s.nextID, nil
}

func (s *stubOutbox) FetchUnprocessed(context.Context, int, time.Duration) ([]domain.OutboxEvent, error) {
	return nil, nil
}

func (s *stubOutbox) FetchPending(context.Context, int64) (domain.OutboxEvent, error) {
	return domain.OutboxEvent{}, domain.ErrNotFound
}

func (s *stubOutbox) MarkProcessed(context.Context, int64, time.Time) (bool, error) {
	return false, nil
}

func (s *stubOutbox) CountUnprocessed(context.Context) (int64, error) {
	return s.count, s.countErr
}

type stubTx struct{ repos ports.TxRepositories }

func (s stubTx) InTx(_ context.Context, fn func(ports.TxRepositories) error) error {
	return fn(s.repos)
}

type stubPresence struct {
	presence ports.DevicePresence
	getErr   error
}

func (s *stubPresence) Touch(context.Context, string, string, time.Time) error { return nil }

func (s *stubPresence) Get(context.Context, string) (ports.DevicePresence, error) {
	return s.presence, s.getErr
}

type stubDispatcher struct{ dispatched int }

func (s *stubDispatcher) Dispatch(int64) { s.dispatched++ }

type stubStats struct{}

func (stubStats) Stats() ports.ProducerStats   { return ports.ProducerStats{Running: true} }
func (stubStats) Health() ports.ProducerHealth { return ports.ProducerHealth{Status: "up"} }

type routerFixture struct {
	router     http.Handler
	outbox     *stubOutbox
	presence   *stubPresence
	dispatcher *stubDispatcher
	readyErr   error
}

func newRouterFixture() *routerFixture {
	fx := &routerFixture{
		outbox:     &stubOutbox{},
		presence:   &stubPresence{},
		dispatcher: &stubDispatcher{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := application.NewService(application.Dependencies{
		Config:     application.Config{ServiceName: "event-listener", HeartbeatOutboxEnabled: true},
		Logger:     logger,
		Tx:         stubTx{repos: ports.TxRepositories{Events: &stubEvents{}, Outbox: fx.outbox}},
		Outbox:     fx.outbox,
		Presence:   fx.presence,
		Dispatcher: fx.dispatcher,
		Producer:   stubStats{},
	})
	handler := NewHandler(service, func(context.Context) error { return fx.readyErr })
	fx.router = NewRouter(handler, logger)
	return fx
}

func (fx *routerFixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not json: %v", err)
	}
	return body
}

func TestReceiveNotificationJSONBody(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	req := httptest.NewRequest(http.MethodPost, "/hik/events", strings.NewReader(accessEventFrame))
	req.Header.Set("Content-Type", "application/json")

	rec := fx.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" || body["message"] != "event processed successfully" {
		t.Fatalf("unexpected body %v", body)
	}
	if fx.outbox.appended != 1 || fx.dispatcher.dispatched != 1 {
		t.Fatalf("expected outbox append and dispatch, got %d/%d", fx.outbox.appended, fx.dispatcher.dispatched)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestReceiveNotificationMultipartForm(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("event_log", accessEventFrame); err != nil {
		t.Fatalf("write field: %v", err)
	}
	picture, err := form.CreateFormFile("Picture", "capture.jpg")
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := picture.Write([]byte{0xff, 0xd8, 0xff}); err != nil {
		t.Fatalf("write picture: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	fx := newRouterFixture()
	req := httptest.NewRequest(http.MethodPost, "/hik/events", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())

	rec := fx.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if fx.outbox.appended != 1 {
		t.Fatalf("frame inside the form was not ingested")
	}
}

func TestReceiveNotificationMultipartWithoutFrame(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("comment", "no frame here"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	fx := newRouterFixture()
	req := httptest.NewRequest(http.MethodPost, "/hik/events", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())

	rec := fx.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReceiveNotificationInvalidFrame(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	req := httptest.NewRequest(http.MethodPost, "/hik/events", strings.NewReader(`{"eventType":"videoloss"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := fx.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if body := decodeBody(t, rec); body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDevicePresenceEndpoint(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.presence.presence = ports.DevicePresence{
		DeviceID:      "door-7",
		LastSeenAt:    time.Date(2026, 8, 29, 8, 15, 0, 0, time.UTC),
		LastEventType: "AccessControllerEvent",
	}

	rec := fx.do(t, httptest.NewRequest(http.MethodGet, "/v1/devices/door-7/presence", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data envelope: %v", body)
	}
	if data["device_id"] != "door-7" {
		t.Fatalf("device_id = %v", data["device_id"])
	}

	fx.presence.getErr = domain.ErrNotFound
	rec = fx.do(t, httptest.NewRequest(http.MethodGet, "/v1/devices/door-9/presence", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOutboxStatsEndpoint(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	fx.outbox.count = 7

	rec := fx.do(t, httptest.NewRequest(http.MethodGet, "/v1/outbox/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data envelope: %v", body)
	}
	if data["unprocessed_events"] != float64(7) {
		t.Fatalf("unprocessed_events = %v", data["unprocessed_events"])
	}

	fx.outbox.countErr = errors.New("connection refused")
	rec = fx.do(t, httptest.NewRequest(http.MethodGet, "/v1/outbox/stats", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	if rec := fx.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if rec := fx.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}

	fx.readyErr = errors.New("database unreachable")
	rec := fx.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "NOT_READY" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	fx := newRouterFixture()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := fx.do(t, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("X-Request-Id = %q", got)
	}
}
