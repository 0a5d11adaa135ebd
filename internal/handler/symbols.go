package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mariusvk/kodekalender/internal/domain"
	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
)

// SymbolsHandler collects and lists decryption symbols
type SymbolsHandler struct {
	engines *engine.Provider
	logger  *slog.Logger
}

// NewSymbolsHandler creates a new symbols handler
func NewSymbolsHandler(engines *engine.Provider, logger *slog.Logger) *SymbolsHandler {
	return &SymbolsHandler{engines: engines, logger: logger}
}

// Add handles POST /api/symbols
func (h *SymbolsHandler) Add(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}

	var symbol SymbolView
	if err := json.NewDecoder(r.Body).Decode(&symbol); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	added, err := h.engines.For(namespace).AddCollectedSymbol(r.Context(), domain.Symbol{
		ID:          symbol.ID,
		Icon:        symbol.Icon,
		Color:       symbol.Color,
		Description: symbol.Description,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"added": added})
}

// List handles GET /api/symbols
func (h *SymbolsHandler) List(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}

	symbols, err := h.engines.For(namespace).GetCollectedSymbols(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	out := make([]SymbolView, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, SymbolView{ID: s.ID, Icon: s.Icon, Color: s.Color, Description: s.Description})
	}
	respondJSON(w, http.StatusOK, out)
}
