package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
)

// AwardBadgeRequest names the badge to award
type AwardBadgeRequest struct {
	ID    string `json:"id"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

// BadgesHandler awards and lists achievement badges
type BadgesHandler struct {
	engines *engine.Provider
	logger  *slog.Logger
}

// NewBadgesHandler creates a new badges handler
func NewBadgesHandler(engines *engine.Provider, logger *slog.Logger) *BadgesHandler {
	return &BadgesHandler{engines: engines, logger: logger}
}

// Award handles POST /api/badges
func (h *BadgesHandler) Award(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}

	var req AwardBadgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	added, err := h.engines.For(namespace).AwardBadge(r.Context(), req.ID, req.Icon, req.Label)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"awarded": added})
}

// List handles GET /api/badges
func (h *BadgesHandler) List(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}

	badges, err := h.engines.For(namespace).Repo().Badges(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	out := make([]BadgeView, 0, len(badges))
	for _, b := range badges {
		out = append(out, BadgeView{ID: b.ID, Icon: b.Icon, Label: b.Label})
	}
	respondJSON(w, http.StatusOK, out)
}
