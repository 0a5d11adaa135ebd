package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mariusvk/kodekalender/internal/catalog"
	"github.com/mariusvk/kodekalender/internal/engine"
	"github.com/mariusvk/kodekalender/internal/featureflags"
	"github.com/mariusvk/kodekalender/internal/handler"
	"github.com/mariusvk/kodekalender/internal/infrastructure/logger"
	"github.com/mariusvk/kodekalender/internal/infrastructure/redis"
	"github.com/mariusvk/kodekalender/internal/observability/metrics"
	"github.com/mariusvk/kodekalender/internal/observability/tracing"
	"github.com/mariusvk/kodekalender/internal/reliability/retry"
	"github.com/mariusvk/kodekalender/internal/security/audit"
	"github.com/mariusvk/kodekalender/internal/security/auth"
	"github.com/mariusvk/kodekalender/internal/security/middleware"
	"github.com/mariusvk/kodekalender/internal/security/ratelimit"
	"github.com/mariusvk/kodekalender/internal/storage"
	"github.com/mariusvk/kodekalender/internal/tenant"
	"github.com/mariusvk/kodekalender/internal/worker"
	"github.com/mariusvk/kodekalender/pkg/config"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting kodekalender server",
		slog.String("environment", cfg.Environment),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	// 3. Initialize tracing (no-op without OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := tracing.Init(context.Background(), log, "kodekalender", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Select the storage backend
	var backend storage.Backend
	var redisClient *redis.Client
	switch cfg.StorageBackend {
	case config.BackendRemote:
		redisClient, err = redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		retryCfg := retry.NewConfig(cfg.RetryMaxAttempts, time.Duration(cfg.RetryInitialMs)*time.Millisecond)
		backend = storage.NewRemoteBackend(redisClient, retryCfg, log)
	default:
		backend, err = storage.NewLocalBackend(cfg.DataDir, log)
		if err != nil {
			log.Error("failed to open local store", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 5. Load the quest catalog
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Error("failed to load quest catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("quest catalog loaded", slog.Int("days", cat.TotalDays()))

	// 6. Initialize security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "kodekalender")
	rateLimiter := ratelimit.NewLimiter(120, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 7. Tenant resolver and per-family engines
	resolver := tenant.NewResolver(backend, log)
	eventsHandler := handler.NewEventsHandler(tokenManager, log, cfg.CORSAllowedOrigins)
	var notifier engine.Notifier
	if featureflags.EnabledOrDefault("events", true) {
		notifier = eventsHandler
	}
	engines := engine.NewProvider(backend, cat, cfg.MaxCodeLength, notifier, log)

	// 8. Initialize handlers
	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	loginHandler := handler.NewLoginHandler(resolver, tokenManager, auditLogger, sessionTTL, log)
	submitHandler := handler.NewSubmitHandler(engines, cat, rateLimiter, cfg.SubmitMaxPerMinute, auditLogger, log)
	stateHandler := handler.NewStateHandler(engines, log)
	crisisHandler := handler.NewCrisisHandler(engines, auditLogger, log)
	symbolsHandler := handler.NewSymbolsHandler(engines, log)
	badgesHandler := handler.NewBadgesHandler(engines, log)
	sequenceHandler := handler.NewSequenceHandler(engines, log)
	progressHandler := handler.NewProgressHandler(engines, log)
	questsHandler := handler.NewQuestsHandler(engines, log)
	healthHandler := handler.NewHealthHandler(redisClient, log)

	// 9. Setup HTTP routes
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
	mux.Handle("/metrics", promhttp.Handler())
	if featureflags.EnabledOrDefault("events", true) {
		mux.Handle("GET /ws/events", eventsHandler)
		log.Info("websocket event stream enabled")
	}

	// 10. Season worker announces quest days as they open
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	seasonWorker := worker.NewSeasonWorker(cat, eventsHandler, log, time.Minute, cfg.SeasonStart)
	go seasonWorker.Start(workerCtx)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> session -> rate limit -> content type -> metrics -> CORS
	rootHandler := withRequestID(
		middleware.SessionMiddleware(tokenManager, log)(
			middleware.RateLimitMiddleware(rateLimiter, log)(
				middleware.ValidateJSONContentType(log)(
					metrics.HTTPMetricsMiddleware(handlerWithCORS),
				),
			),
		),
		log,
	)

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, "kodekalender"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage_backend", cfg.StorageBackend),
		slog.Int("catalog_days", cat.TotalDays()),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopWorker()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	rateLimiter.Stop()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
