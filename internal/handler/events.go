package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mariusvk/kodekalender/internal/observability/metrics"
	"github.com/mariusvk/kodekalender/internal/security/auth"
)

// Event is one game-state change pushed to connected family devices
type Event struct {
	Kind string    `json:"kind"`
	Ref  string    `json:"ref"`
	At   time.Time `json:"at"`
}

// subscriber serializes writes to one connection. Events arrive from whatever
// request goroutine triggered them plus the season worker, and a websocket
// connection tolerates only one writer at a time.
type subscriber struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (s *subscriber) write(event Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(event)
}

// EventsHandler fans game events out over WebSocket so other devices on the
// same family credential refresh without polling. It implements
// engine.Notifier.
type EventsHandler struct {
	tokenManager   *auth.TokenManager
	logger         *slog.Logger
	allowedOrigins []string

	mu   sync.Mutex
	subs map[string]map[*subscriber]bool
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(tm *auth.TokenManager, logger *slog.Logger, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		tokenManager:   tm,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		subs:           map[string]map[*subscriber]bool{},
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *EventsHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow requests with no origin (e.g., non-browser clients)
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/events?token=... Browsers cannot set an
// Authorization header on WebSocket requests, so the session token rides in
// the query string.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := h.tokenManager.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	namespace := claims.Namespace

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub := &subscriber{conn: ws}
	h.subscribe(namespace, sub)
	metrics.IncrementSessions()
	defer func() {
		h.unsubscribe(namespace, sub)
		metrics.DecrementSessions()
		ws.Close()
	}()

	h.logger.Debug("event stream opened", slog.String("namespace", namespace))

	// Reads only serve to detect the peer closing
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// GameEvent broadcasts an event to every device subscribed to the namespace
func (h *EventsHandler) GameEvent(namespace, kind, ref string) {
	event := Event{Kind: kind, Ref: ref, At: time.Now()}

	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[namespace]))
	for sub := range h.subs[namespace] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		if err := sub.write(event); err != nil {
			h.logger.Debug("event write failed, dropping subscriber",
				slog.String("namespace", namespace),
				slog.String("error", err.Error()),
			)
			h.unsubscribe(namespace, sub)
			sub.conn.Close()
		}
	}
}

// Broadcast sends an event to every connected device across all namespaces.
// Used for season-wide announcements.
func (h *EventsHandler) Broadcast(kind, ref string) {
	h.mu.Lock()
	namespaces := make([]string, 0, len(h.subs))
	for namespace := range h.subs {
		namespaces = append(namespaces, namespace)
	}
	h.mu.Unlock()

	for _, namespace := range namespaces {
		h.GameEvent(namespace, kind, ref)
	}
}

func (h *EventsHandler) subscribe(namespace string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[namespace] == nil {
		h.subs[namespace] = map[*subscriber]bool{}
	}
	h.subs[namespace][sub] = true
}

func (h *EventsHandler) unsubscribe(namespace string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[namespace], sub)
	if len(h.subs[namespace]) == 0 {
		delete(h.subs, namespace)
	}
}
