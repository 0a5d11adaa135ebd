package handler

import (
	"log/slog"
	"net/http"

	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
)

// ProgressHandler reports season progression
type ProgressHandler struct {
	engines *engine.Provider
	logger  *slog.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(engines *engine.Provider, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{engines: engines, logger: logger}
}

// ServeHTTP handles GET /api/progress
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}

	eng := h.engines.For(namespace)
	percentage, err := eng.ProgressionPercentage(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	completed, err := eng.CompletedDays(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"percentage":    percentage,
		"completedDays": completed,
	})
}
