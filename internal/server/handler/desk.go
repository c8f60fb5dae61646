package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rfenwick/tradedesk/internal/domain"
	"github.com/rfenwick/tradedesk/internal/state"
	"github.com/rfenwick/tradedesk/internal/stream"
)

// DeskHandler exposes the synced domain state to local renderers.
type DeskHandler struct {
	store  *state.Store
	client *stream.Client
}

// NewDeskHandler creates a DeskHandler over the given store and stream
// client.
func NewDeskHandler(store *state.Store, client *stream.Client) *DeskHandler {
	return &DeskHandler{store: store, client: client}
}

// GetStatus responds with the connection state, regime, metrics, and system
// health picture.
// GET /api/status
func (h *DeskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	regime, metrics := h.store.Regime()
	writeJSON(w, http.StatusOK, map[string]any{
		"stream_state": h.client.State(),
		"last_open":    h.client.LastOpen(),
		"regime":       regime,
		"metrics":      metrics,
		"system":       h.store.Status(),
	})
}

// ListSignals responds with the signal list, newest-first.
// GET /api/signals
func (h *DeskHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"signals": h.store.Signals(),
	})
}

// SendCommand forwards a raw fire-and-forget command onto the stream. There
// is no response correlation, and commands are dropped rather than queued
// while the stream is disconnected, so the reply only reports whether the
// stream was open at dispatch time.
// POST /api/command
func (h *DeskHandler) SendCommand(w http.ResponseWriter, r *http.Request) {
	var cmd domain.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid command body")
		return
	}
	if cmd.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	if err := h.client.Send(cmd); err != nil {
		writeError(w, http.StatusBadGateway, "command write failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"dispatched": h.client.State() == stream.StateOpen,
	})
}

// ListThoughts responds with the bounded thought window, newest-first.
// GET /api/thoughts?limit=N
func (h *DeskHandler) ListThoughts(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, state.MaxThoughts, state.MaxThoughts)
	writeJSON(w, http.StatusOK, map[string]any{
		"thoughts": h.store.Thoughts(limit),
	})
}
