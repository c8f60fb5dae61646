package handler

import (
	"net/http"

	"github.com/rfenwick/tradedesk/internal/domain"
)

// TuningHandler proxies the engine's tuning-history one-shot call so local
// renderers never need engine credentials.
type TuningHandler struct {
	api domain.EngineAPI
}

// NewTuningHandler creates a TuningHandler over the given engine API.
func NewTuningHandler(api domain.EngineAPI) *TuningHandler {
	return &TuningHandler{api: api}
}

// ListHistory fetches historical tuning records from the engine.
// GET /api/tuning?limit=N
func (h *TuningHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.api.TuningHistory(r.Context(), queryLimit(r, 50, 500))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}
