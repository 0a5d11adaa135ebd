package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
)

// QuestsHandler reports per-day quest status
type QuestsHandler struct {
	engines *engine.Provider
	logger  *slog.Logger
}

// NewQuestsHandler creates a new quests handler
func NewQuestsHandler(engines *engine.Provider, logger *slog.Logger) *QuestsHandler {
	return &QuestsHandler{engines: engines, logger: logger}
}

// Completed handles GET /api/quests/{day}/completed
func (h *QuestsHandler) Completed(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid day"})
		return
	}

	completed, err := h.engines.For(namespace).IsQuestCompleted(r.Context(), day)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"completed": completed})
}
