package test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mariusvk/kodekalender/internal/catalog"
	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/handler"
	"github.com/mariusvk/kodekalender/internal/infrastructure/logger"
	"github.com/mariusvk/kodekalender/internal/security/audit"
	"github.com/mariusvk/kodekalender/internal/security/auth"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
	"github.com/mariusvk/kodekalender/internal/security/ratelimit"
	"github.com/mariusvk/kodekalender/internal/storage"
	"github.com/mariusvk/kodekalender/internal/tenant"
)

// TestServerHelper runs the full HTTP surface over a memory-only local
// backend, wired the same way the server binary wires it
type TestServerHelper struct {
	Server  *httptest.Server
	Logger  *slog.Logger
	Backend *storage.LocalBackend
	Limiter *ratelimit.Limiter
}

func NewTestServer(t *testing.T) *TestServerHelper {
	log := logger.NewLogger("error")

	backend, err := storage.NewLocalBackend("", log)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	cat := catalog.New(
		[]catalog.QuestDay{
			{Day: 1, Code: "nissekode2025", Unlocks: catalog.Unlocks{Files: []string{"letter-1"}}},
			{Day: 2, Code: "abc123"},
			{Day: 3, Code: "polarlys"},
			{Day: 4, Code: "krampus"},
		},
		[]catalog.Crisis{{ID: "antenna-down", ThresholdDay: 3}},
		[]catalog.Challenge{{ID: "frequency-lock", RequiredSymbols: []string{"sun", "moon", "star"}, CorrectSequence: []int{0, 1, 2}}},
	)

	tokenManager := auth.NewTokenManager("test-secret", "kodekalender")
	rateLimiter := ratelimit.NewLimiter(1000, time.Minute)
	auditLogger := audit.NewLogger(log)
	resolver := tenant.NewResolver(backend, log)
	engines := engine.NewProvider(backend, cat, 64, nil, log)

	loginHandler := handler.NewLoginHandler(resolver, tokenManager, auditLogger, time.Hour, log)
	submitHandler := handler.NewSubmitHandler(engines, cat, rateLimiter, 1000, auditLogger, log)
	stateHandler := handler.NewStateHandler(engines, log)
	crisisHandler := handler.NewCrisisHandler(engines, auditLogger, log)
	symbolsHandler := handler.NewSymbolsHandler(engines, log)
	badgesHandler := handler.NewBadgesHandler(engines, log)
	sequenceHandler := handler.NewSequenceHandler(engines, log)
	progressHandler := handler.NewProgressHandler(engines, log)
	questsHandler := handler.NewQuestsHandler(engines, log)
	healthHandler := handler.NewHealthHandler(nil, log)

	mux := http.NewServeMux()
	mux.Handle("POST /api/login", loginHandler)
	mux.Handle("POST /api/quests/{day}/submit", submitHandler)
	mux.HandleFunc("GET /api/quests/{day}/completed", questsHandler.Completed)
	mux.Handle("GET /api/state", stateHandler)
	mux.HandleFunc("POST /api/crises/{id}/resolve", crisisHandler.Resolve)
	mux.HandleFunc("GET /api/crises/{id}/active", crisisHandler.Active)
	mux.HandleFunc("POST /api/symbols", symbolsHandler.Add)
	mux.HandleFunc("GET /api/symbols", symbolsHandler.List)
	mux.HandleFunc("POST /api/badges", badgesHandler.Award)
	mux.HandleFunc("GET /api/badges", badgesHandler.List)
	mux.Handle("POST /api/challenges/{id}/validate", sequenceHandler)
	mux.Handle("GET /api/progress", progressHandler)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)

	wrapped := middleware.SessionMiddleware(tokenManager, log)(mux)
	server := httptest.NewServer(wrapped)

	t.Cleanup(func() {
		server.Close()
		rateLimiter.Stop()
	})

	return &TestServerHelper{
		Server:  server,
		Logger:  log,
		Backend: backend,
		Limiter: rateLimiter,
	}
}

func (h *TestServerHelper) Close() {
	h.Server.Close()
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// AssertStatusCode helper function
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType helper function
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); ct != expected {
		t.Errorf("Expected Content-Type %s, got %s", expected, ct)
	}
}
