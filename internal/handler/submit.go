package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mariusvk/kodekalender/internal/catalog"
	"github.com/mariusvk/kodekalender/internal/domain"
	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/security/audit"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
	"github.com/mariusvk/kodekalender/internal/security/ratelimit"
)

// SubmitRequest carries the code the family typed in
type SubmitRequest struct {
	Code string `json:"code"`
}

// SubmitResponse reports the submission outcome and any freshly revealed
// content
type SubmitResponse struct {
	Success         bool                   `json:"success"`
	IsNewCompletion bool                   `json:"isNewCompletion"`
	Unlocked        domain.UnlockedContent `json:"unlocked"`
	FailedAttempts  int                    `json:"failedAttempts,omitempty"`
}

// SubmitHandler handles mission code submissions
type SubmitHandler struct {
	engines     *engine.Provider
	catalog     *catalog.Catalog
	limiter     *ratelimit.Limiter
	maxPerMin   int
	auditLogger *audit.Logger
	logger      *slog.Logger
}

// NewSubmitHandler creates a new submit handler
func NewSubmitHandler(engines *engine.Provider, cat *catalog.Catalog, limiter *ratelimit.Limiter, maxPerMin int, auditLogger *audit.Logger, logger *slog.Logger) *SubmitHandler {
	return &SubmitHandler{
		engines:     engines,
		catalog:     cat,
		limiter:     limiter,
		maxPerMin:   maxPerMin,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// ServeHTTP handles POST /api/quests/{day}/submit
func (h *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	// Throttle code guessing per family
	if !h.limiter.AllowStrict("submit:"+namespace, h.maxPerMin, time.Minute) {
		respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many attempts, slow down"})
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	questDay, ok := h.catalog.Day(day)
	if !ok {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "unknown day"})
		return
	}

	result, err := h.engines.For(namespace).SubmitCode(r.Context(), req.Code, questDay.Code, day)
	if err != nil {
		h.auditLogger.LogSubmission(r.Context(), namespace, day, "error")
		respondEngineError(w, err)
		return
	}

	status := "rejected"
	if result.Success {
		status = "accepted"
	}
	h.auditLogger.LogSubmission(r.Context(), namespace, day, status)

	respondJSON(w, http.StatusOK, SubmitResponse{
		Success:         result.Success,
		IsNewCompletion: result.IsNewCompletion,
		Unlocked:        result.Unlocked,
		FailedAttempts:  result.FailedAttempts,
	})
}
