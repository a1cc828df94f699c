package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duneflow/perpengine/config"
	"github.com/duneflow/perpengine/frontend"
)

func TestCommandHandlerAcceptsValidEvent(t *testing.T) {
	commands := make(chan frontend.Event, 1)
	h := NewHandler(&config.Config{}, commands, nil)

	body, _ := json.Marshal(map[string]string{"type": "getSession"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CommandHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	select {
	case ev := <-commands:
		assert.Equal(t, frontend.EventGetSession, ev.Kind)
	default:
		t.Fatal("expected the event to be enqueued")
	}
}

func TestCommandHandlerStampsActorFromAuditContext(t *testing.T) {
	commands := make(chan frontend.Event, 1)
	h := NewHandler(&config.Config{}, commands, nil)

	body, _ := json.Marshal(map[string]string{"type": "getSession"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	// Exercise CommandHandler behind AuditMiddleware, the way the router wires it.
	AuditMiddleware(http.HandlerFunc(h.CommandHandler)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	select {
	case ev := <-commands:
		assert.NotEmpty(t, ev.ActorIP)
		assert.NotEqual(t, "unknown", ev.ActorKeyID) // dev-mode default when no API key header is set
	default:
		t.Fatal("expected the event to be enqueued")
	}
}

func TestCommandHandlerRejectsMalformedJSON(t *testing.T) {
	commands := make(chan frontend.Event, 1)
	h := NewHandler(&config.Config{}, commands, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/command", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	h.CommandHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandHandlerRejectsMissingPayload(t *testing.T) {
	commands := make(chan frontend.Event, 1)
	h := NewHandler(&config.Config{}, commands, nil)

	body, _ := json.Marshal(map[string]string{"type": "addMarket"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CommandHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandlerReportsMode(t *testing.T) {
	h := NewHandler(&config.Config{TradingMode: config.ModePaper}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.HealthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "paper", resp["mode"])
}
