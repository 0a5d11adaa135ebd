package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
)

// StateHandler serves the full game snapshot plus derived quest state in one
// round trip, so the UI renders one response instead of issuing N reads
type StateHandler struct {
	engines *engine.Provider
	logger  *slog.Logger
}

// NewStateHandler creates a new state handler
func NewStateHandler(engines *engine.Provider, logger *slog.Logger) *StateHandler {
	return &StateHandler{engines: engines, logger: logger}
}

// StateResponse is the render-ready game state
type StateResponse struct {
	SubmittedCodes   int                 `json:"submittedCodes"`
	CompletedDays    []int               `json:"completedDays"`
	Badges           []BadgeView         `json:"badges"`
	Symbols          []SymbolView        `json:"symbols"`
	ResolvedCrises   []string            `json:"resolvedCrises"`
	SolvedChallenges []string            `json:"solvedChallenges"`
	Unlocked         UnlockedContentView `json:"unlocked"`
	FailedAttempts   map[string]int      `json:"failedAttempts"`
	Progression      float64             `json:"progression"`
}

type BadgeView struct {
	ID    string `json:"id"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

type SymbolView struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

type UnlockedContentView struct {
	Files   []string `json:"files"`
	Topics  []string `json:"topics"`
	Modules []string `json:"modules"`
}

// ServeHTTP handles GET /api/state
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.GetNamespaceFromContext(r.Context())
	if namespace == "" {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing session"})
		return
	}

	eng := h.engines.For(namespace)
	snapshot, err := eng.Repo().Snapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to read snapshot", slog.String("error", err.Error()))
		respondEngineError(w, err)
		return
	}

	progression, err := eng.ProgressionPercentage(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	completed, err := eng.CompletedDays(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	resp := StateResponse{
		SubmittedCodes:   len(snapshot.SubmittedCodes),
		CompletedDays:    completed,
		ResolvedCrises:   snapshot.ResolvedCrises,
		SolvedChallenges: snapshot.SolvedChallenges,
		Unlocked: UnlockedContentView{
			Files:   snapshot.Unlocked.Files,
			Topics:  snapshot.Unlocked.Topics,
			Modules: snapshot.Unlocked.Modules,
		},
		FailedAttempts: map[string]int{},
		Progression:    progression,
	}
	for _, b := range snapshot.Badges {
		resp.Badges = append(resp.Badges, BadgeView{ID: b.ID, Icon: b.Icon, Label: b.Label})
	}
	for _, s := range snapshot.Symbols {
		resp.Symbols = append(resp.Symbols, SymbolView{ID: s.ID, Icon: s.Icon, Color: s.Color, Description: s.Description})
	}
	for day, count := range snapshot.FailedAttempts {
		resp.FailedAttempts[strconv.Itoa(day)] = count
	}

	respondJSON(w, http.StatusOK, resp)
}
