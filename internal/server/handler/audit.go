package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rfenwick/tradedesk/internal/audit"
	"github.com/rfenwick/tradedesk/internal/domain"
)

// AuditHandler drives the audit session from the local API: open/trigger,
// inspect, repair, dismiss, and browse past runs.
type AuditHandler struct {
	orch    *audit.Orchestrator
	history domain.AuditRunStore // optional
}

// NewAuditHandler creates an AuditHandler. history may be nil.
func NewAuditHandler(orch *audit.Orchestrator, history domain.AuditRunStore) *AuditHandler {
	return &AuditHandler{orch: orch, history: history}
}

// GetSession responds with the open session view, or 404 when none is open.
// GET /api/audit
func (h *AuditHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.orch.Session()
	if sess == nil {
		writeError(w, http.StatusNotFound, "no open audit session")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// TriggerRun opens a fresh session and asks the engine to start an audit.
// POST /api/audit/trigger
func (h *AuditHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	sess, err := h.orch.StartRun(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

// RepairStage triggers a single-stage repair on the open session.
// POST /api/audit/repair with {"stage": name}
func (h *AuditHandler) RepairStage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage string `json:"stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stage == "" {
		writeError(w, http.StatusBadRequest, "stage is required")
		return
	}

	err := h.orch.Repair(r.Context(), req.Stage)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"stage": req.Stage, "repaired": true})
	case errors.Is(err, domain.ErrSessionClosed):
		writeError(w, http.StatusNotFound, "no open audit session")
	case errors.Is(err, domain.ErrUnknownStage):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrStageNotFailed), errors.Is(err, domain.ErrRepairInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// Dismiss closes the open session.
// DELETE /api/audit
func (h *AuditHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.orch.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

// ListRuns responds with recent persisted audit runs.
// GET /api/audit/runs?limit=N
func (h *AuditHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "audit history not configured")
		return
	}
	runs, err := h.history.ListRecent(r.Context(), queryLimit(r, 20, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
