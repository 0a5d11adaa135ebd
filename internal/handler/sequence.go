package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
)

// SequenceRequest carries the user's attempted symbol ordering
type SequenceRequest struct {
	Sequence []int `json:"sequence"`
}

// SequenceResponse reports positional partial credit
type SequenceResponse struct {
	Correct       bool `json:"correct"`
	CorrectCount  int  `json:"correctCount"`
	AlreadySolved bool `json:"alreadySolved,omitempty"`
}

// SequenceHandler validates decryption challenge sequences
type SequenceHandler struct {
	engines *engine.Provider
	logger  *slog.Logger
}

// NewSequenceHandler creates a new sequence handler
func NewSequenceHandler(engines *engine.Provider, logger *slog.Logger) *SequenceHandler {
	return &SequenceHandler{engines: engines, logger: logger}
}

// ServeHTTP handles POST /api/challenges/{id}/validate
func (h *SequenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}
	challengeID := r.PathValue("id")

	var req SequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	result, err := h.engines.For(namespace).ValidateDecryptionSequence(r.Context(), challengeID, req.Sequence)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SequenceResponse{
		Correct:       result.Correct,
		CorrectCount:  result.CorrectCount,
		AlreadySolved: result.AlreadySolved,
	})
}
