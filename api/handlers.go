// Package api provides the frontend-facing HTTP/WS surface for the control
// plane: a single command endpoint and a websocket update feed.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duneflow/perpengine/config"
	"github.com/duneflow/perpengine/frontend"
	"github.com/duneflow/perpengine/realtime"
)

// Handler holds the HTTP handlers for the API.
type Handler struct {
	config    *config.Config
	commands  chan<- frontend.Event
	wsManager *realtime.WebSocketManager
	startTime time.Time
}

// NewHandler builds a Handler. commands is the Bot's inbound event channel;
// wsManager may be nil, in which case GET /ws is not registered by NewRouter.
func NewHandler(cfg *config.Config, commands chan<- frontend.Event, wsManager *realtime.WebSocketManager) *Handler {
	return &Handler{
		config:    cfg,
		commands:  commands,
		wsManager: wsManager,
		startTime: time.Now(),
	}
}

// CommandHandler decodes a BotEvent and enqueues it onto the Bot's event
// channel. 400 on a malformed or invalid-shape body, 500 if the Bot has
// already shut down and can no longer accept commands.
func (h *Handler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", "BAD_REQUEST")
		return
	}

	ev, err := frontend.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_COMMAND")
		return
	}
	ev.ActorIP = AuditIPFromCtx(r.Context())
	ev.ActorKeyID = AuditKeyIDFromCtx(r.Context())

	if verr := validateStruct(ev); verr != nil {
		writeValidationError(w, verr)
		return
	}

	select {
	case h.commands <- ev:
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	default:
		// The buffered channel is full: the Bot is either wedged or the
		// caller is firing commands far faster than it can drain them.
		// Block briefly rather than dropping a frontend-originated command
		// outright.
		select {
		case h.commands <- ev:
			writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		case <-time.After(2 * time.Second):
			writeError(w, http.StatusInternalServerError, "bot did not accept command in time", "BOT_UNAVAILABLE")
		}
	}
}

// HealthHandler reports liveness plus the configured trading mode.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"mode":      string(h.config.TradingMode),
		"timestamp": time.Now(),
	})
}

// MetricsHandler returns basic runtime statistics.
func (h *Handler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]uint64{
			"alloc":       m.Alloc,
			"total_alloc": m.TotalAlloc,
			"sys":         m.Sys,
			"num_gc":      uint64(m.NumGC),
		},
		"uptimeSeconds": time.Since(h.startTime).Seconds(),
	})
}

// RotateAPIKeyHandler rotates the live API key and rewrites it into the
// configured .env file.
func (h *Handler) RotateAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	newKey, err := h.config.RotateAPIKey()
	if err != nil {
		log.Error().Err(err).Msg("failed to rotate API key")
		writeError(w, http.StatusInternalServerError, "failed to rotate API key", "ROTATE_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"apiKey": newKey})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string, code ...string) {
	errCode := "UNKNOWN_ERROR"
	if len(code) > 0 {
		errCode = code[0]
	}
	writeJSON(w, status, APIError{Error: message, Code: errCode})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
