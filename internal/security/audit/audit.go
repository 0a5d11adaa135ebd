package audit

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, namespace, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("namespace", namespace),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogSubmission(ctx context.Context, namespace string, day int, status string) {
	al.LogAction(ctx, namespace, "submit_code", "quest", strconv.Itoa(day), status, "")
}

func (al *Logger) LogCrisisResolution(ctx context.Context, namespace, crisisID, status string) {
	al.LogAction(ctx, namespace, "resolve_crisis", "crisis", crisisID, status, "")
}

func (al *Logger) LogLogin(ctx context.Context, namespace, status string) {
	al.LogAction(ctx, namespace, "login", "session", "", status, "")
}
