package engine

import (
	"log/slog"
	"sync"

	"github.com/mariusvk/kodekalender/internal/catalog"
	"github.com/mariusvk/kodekalender/internal/repository"
	"github.com/mariusvk/kodekalender/internal/storage"
)

// Provider hands out one engine per family namespace, all sharing the
// backend and catalog chosen at startup. Handlers never construct engines or
// touch the backend directly.
type Provider struct {
	backend       storage.Backend
	catalog       *catalog.Catalog
	maxCodeLength int
	notifier      Notifier
	logger        *slog.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewProvider creates an engine provider over the configured backend
func NewProvider(backend storage.Backend, cat *catalog.Catalog, maxCodeLength int, notifier Notifier, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		backend:       backend,
		catalog:       cat,
		maxCodeLength: maxCodeLength,
		notifier:      notifier,
		logger:        logger,
		engines:       map[string]*Engine{},
	}
}

// For returns the engine bound to a family namespace, creating it on first
// use
func (p *Provider) For(namespace string) *Engine {
	p.mu.Lock()
	defer p.mu.Unlock()

	if eng, ok := p.engines[namespace]; ok {
		return eng
	}
	repo := repository.NewStateRepository(p.backend, namespace, p.logger)
	eng := New(repo, p.catalog, namespace, p.maxCodeLength, p.notifier, p.logger)
	p.engines[namespace] = eng
	return eng
}
