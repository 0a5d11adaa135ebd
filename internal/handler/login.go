package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mariusvk/kodekalender/internal/security/audit"
	"github.com/mariusvk/kodekalender/internal/security/auth"
	"github.com/mariusvk/kodekalender/internal/tenant"
)

// LoginRequest carries the shared family credential
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse returns the session token the UI sends on every call
type LoginResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginHandler exchanges the family credential for a session token
type LoginHandler struct {
	resolver     *tenant.Resolver
	tokenManager *auth.TokenManager
	auditLogger  *audit.Logger
	sessionTTL   time.Duration
	logger       *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(resolver *tenant.Resolver, tm *auth.TokenManager, auditLogger *audit.Logger, sessionTTL time.Duration, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		resolver:     resolver,
		tokenManager: tm,
		auditLogger:  auditLogger,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}
}

// ServeHTTP handles POST /api/login
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	session, err := h.resolver.Authenticate(r.Context(), req.Password)
	if err != nil {
		h.auditLogger.LogLogin(r.Context(), "", "denied")
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credential"})
		return
	}

	token, err := h.tokenManager.GenerateToken(session.Namespace, session.SessionID, h.sessionTTL)
	if err != nil {
		h.logger.Error("failed to generate token", slog.String("error", err.Error()))
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	h.auditLogger.LogLogin(r.Context(), session.Namespace, "ok")
	respondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		SessionID: session.SessionID,
		ExpiresAt: session.CreatedAt.Add(h.sessionTTL),
	})
}
