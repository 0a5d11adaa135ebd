package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/security/audit"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
)

// CrisisHandler resolves crises and reports their active state
type CrisisHandler struct {
	engines     *engine.Provider
	auditLogger *audit.Logger
	logger      *slog.Logger
}

// NewCrisisHandler creates a new crisis handler
func NewCrisisHandler(engines *engine.Provider, auditLogger *audit.Logger, logger *slog.Logger) *CrisisHandler {
	return &CrisisHandler{engines: engines, auditLogger: auditLogger, logger: logger}
}

// Resolve handles POST /api/crises/{id}/resolve
func (h *CrisisHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}
	crisisID := r.PathValue("id")

	if err := h.engines.For(namespace).ResolveCrisis(r.Context(), crisisID); err != nil {
		h.auditLogger.LogCrisisResolution(r.Context(), namespace, crisisID, "error")
		respondEngineError(w, err)
		return
	}

	h.auditLogger.LogCrisisResolution(r.Context(), namespace, crisisID, "resolved")
	respondJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

// Active handles GET /api/crises/{id}/active?day=N
func (h *CrisisHandler) Active(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}
	crisisID := r.PathValue("id")
	day, err := strconv.Atoi(r.URL.Query().Get("day"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid day"})
		return
	}

	active, err := h.engines.For(namespace).IsCrisisActive(r.Context(), crisisID, day)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"active": active})
}
