package tenant

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/mariusvk/kodekalender/internal/domain"
	"github.com/mariusvk/kodekalender/internal/storage"
)

// Namespace derivation parameters. These must stay fixed: the same family
// credential has to re-derive the same namespace on every device.
var namespaceSalt = []byte("kodekalender-namespace-v1")

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 16
)

// DeriveNamespace maps a family credential to its storage namespace. The
// credential is normalized (trimmed, lower-cased) first so the whole family
// lands in the same namespace regardless of how they type it.
func DeriveNamespace(credential string) (string, error) {
	canonical := strings.ToLower(strings.TrimSpace(credential))
	if canonical == "" {
		return "", fmt.Errorf("credential must not be empty")
	}
	key := argon2.IDKey([]byte(canonical), namespaceSalt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(key), nil
}

// Resolver exchanges family credentials for isolated sessions over the
// active storage backend. On the local backend, switching to a different
// credential clears the prior namespace: the device holds one family's state
// at a time.
type Resolver struct {
	mu      sync.Mutex
	backend storage.Backend
	current *domain.FamilySession
	logger  *slog.Logger
}

// NewResolver creates a resolver bound to the active backend
func NewResolver(backend storage.Backend, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{backend: backend, logger: logger}
}

// Authenticate derives the namespace for a credential and opens a session.
// Re-authenticating with the same credential reuses the same namespace;
// a different credential on the local backend destroys the prior namespace.
func (r *Resolver) Authenticate(ctx context.Context, credential string) (*domain.FamilySession, error) {
	namespace, err := DeriveNamespace(credential)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && r.current.Namespace != namespace && r.backend.Kind() == storage.KindLocal {
		if err := r.backend.Clear(ctx, r.current.Namespace); err != nil {
			return nil, fmt.Errorf("failed to clear prior namespace: %w", err)
		}
		r.logger.Info("local namespace cleared on credential switch",
			slog.String("prior_namespace", r.current.Namespace),
		)
	}

	session := &domain.FamilySession{
		SessionID: uuid.NewString(),
		Namespace: namespace,
		CreatedAt: time.Now(),
	}
	r.current = session

	r.logger.Info("family session opened",
		slog.String("session_id", session.SessionID),
		slog.String("namespace", session.Namespace),
		slog.String("backend", r.backend.Kind()),
	)
	return session, nil
}

// Current returns the active session, or nil when nobody has authenticated
func (r *Resolver) Current() *domain.FamilySession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
