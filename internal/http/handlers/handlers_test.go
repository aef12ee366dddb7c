package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/assistant"
	"github.com/rafamhanel/web-app-agenda/internal/conversation"
	"github.com/rafamhanel/web-app-agenda/internal/intent"
	"github.com/rafamhanel/web-app-agenda/internal/users"
)

type stubInbound struct {
	got conversation.InboundMessage
	res *conversation.Result
	err error
}

func (s *stubInbound) HandleInbound(_ context.Context, msg conversation.InboundMessage) (*conversation.Result, error) {
	s.got = msg
	return s.res, s.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAutomationProcess(t *testing.T) {
	inbound := &stubInbound{res: &conversation.Result{
		Action:      intent.KindCreate,
		Reply:       "Agendado!",
		Appointment: &appointments.Appointment{ID: "apt-1"},
	}}
	h := NewAutomationHandler(inbound, nil)

	req := httptest.NewRequest(http.MethodPost, "/automation/process",
		strings.NewReader(`{"userId":"u1","clientPhone":"5511999990000","message":"quero marcar amanhã às 14h"}`))
	rec := httptest.NewRecorder()
	h.Process(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Agendado!", body["response"])
	assert.Equal(t, "create_appointment", body["action"])
	assert.Equal(t, true, body["appointmentCreated"])
	assert.Equal(t, "apt-1", body["appointmentId"])
	assert.Equal(t, "u1", inbound.got.UserID)
	assert.Equal(t, "5511999990000", inbound.got.ClientPhone)
}

func TestAutomationProcessErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
		{name: "missing user", body: `{"clientPhone":"55","message":"oi"}`, status: http.StatusBadRequest},
		{name: "missing message", body: `{"userId":"u1","clientPhone":"55"}`, status: http.StatusBadRequest},
		{name: "unknown user", body: `{"userId":"u1","clientPhone":"55","message":"oi"}`, err: users.ErrUserNotFound, status: http.StatusNotFound},
		{name: "conflict", body: `{"userId":"u1","clientPhone":"55","message":"oi"}`, err: appointments.ErrConflict, status: http.StatusConflict},
		{name: "internal", body: `{"userId":"u1","clientPhone":"55","message":"oi"}`, err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAutomationHandler(&stubInbound{err: tt.err}, nil)
			rec := httptest.NewRecorder()
			h.Process(rec, httptest.NewRequest(http.MethodPost, "/automation/process", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAutomationMissingFieldsListed(t *testing.T) {
	h := NewAutomationHandler(&stubInbound{}, nil)
	rec := httptest.NewRecorder()
	h.Process(rec, httptest.NewRequest(http.MethodPost, "/automation/process", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "userId")
	assert.Contains(t, fields, "clientPhone")
	assert.Contains(t, fields, "message")
}

type stubSyncer struct {
	userID string
	n      int
	err    error
}

func (s *stubSyncer) Sync(_ context.Context, userID string) (int, error) {
	s.userID = userID
	return s.n, s.err
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCalendarSync(t *testing.T) {
	syncer := &stubSyncer{n: 3}
	h := NewCalendarSyncHandler(syncer, nil)

	rec := httptest.NewRecorder()
	h.Sync(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/users/u1/calendar/sync", nil), "userID", "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", syncer.userID)
	assert.Equal(t, float64(3), decodeBody(t, rec)["synced"])
}

func TestCalendarSyncWithoutToken(t *testing.T) {
	verr := apperrors.NewValidationError()
	verr.Add("google_calendar_token", "not connected")
	h := NewCalendarSyncHandler(&stubSyncer{err: verr}, nil)

	rec := httptest.NewRecorder()
	h.Sync(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/users/u1/calendar/sync", nil), "userID", "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubUsers struct{ known string }

func (s stubUsers) Get(_ context.Context, id string) (*users.User, error) {
	if id != s.known {
		return nil, users.ErrUserNotFound
	}
	return &users.User{ID: id}, nil
}

func TestTrainingAdd(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		body   string
		status int
		stored int
	}{
		{name: "array body", user: "u1", body: `[{"message":"Qual o valor?","response":"A consulta custa R$ 200."}]`, status: http.StatusCreated, stored: 1},
		{name: "wrapped body", user: "u1", body: `{"examples":[{"message":"a","response":"b"},{"message":"c","response":"d"}]}`, status: http.StatusCreated, stored: 2},
		{name: "blank response", user: "u1", body: `[{"message":"a","response":" "}]`, status: http.StatusBadRequest},
		{name: "empty list", user: "u1", body: `[]`, status: http.StatusBadRequest},
		{name: "wrong shape", user: "u1", body: `"text"`, status: http.StatusBadRequest},
		{name: "unknown user", user: "u2", body: `[{"message":"a","response":"b"}]`, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := assistant.NewMemoryExampleStore()
			h := NewTrainingHandler(stubUsers{known: "u1"}, store, nil)

			req := httptest.NewRequest(http.MethodPost, "/users/"+tt.user+"/training-examples", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Add(rec, withURLParam(req, "userID", tt.user))

			assert.Equal(t, tt.status, rec.Code)
			got, err := store.List(context.Background(), tt.user, 10)
			require.NoError(t, err)
			assert.Len(t, got, tt.stored)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": ok}, nil).
		HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": down}, nil).
		HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "down", body["dependencies"].(map[string]any)["redis"])
}
