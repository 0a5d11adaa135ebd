package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LocalBackend is the device-local store: synchronous, single tenant at a
// time. When a data dir is configured each namespace persists as one JSON
// document on disk; with no data dir it is memory-only (tests, dev mode).
// Switching tenant credential clears the prior namespace outright.
type LocalBackend struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]json.RawMessage
	loaded     map[string]bool
	dataDir    string
	logger     *slog.Logger
}

// NewLocalBackend creates a local backend. dataDir may be empty for a
// memory-only store.
func NewLocalBackend(dataDir string, logger *slog.Logger) (*LocalBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	return &LocalBackend{
		namespaces: map[string]map[string]json.RawMessage{},
		loaded:     map[string]bool{},
		dataDir:    dataDir,
		logger:     logger,
	}, nil
}

// Kind identifies this backend as device-local
func (b *LocalBackend) Kind() string { return KindLocal }

// Get retrieves a value from the namespace
func (b *LocalBackend) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, err := b.ensureLoaded(namespace)
	if err != nil {
		return nil, false, err
	}
	value, ok := ns[key]
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores a value in the namespace
func (b *LocalBackend) Set(_ context.Context, namespace, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, err := b.ensureLoaded(namespace)
	if err != nil {
		return err
	}
	ns[key] = json.RawMessage(value)
	return b.flush(namespace, ns)
}

// AppendUnique adds an item to a collection unless its identity exists
func (b *LocalBackend) AppendUnique(_ context.Context, namespace, key, identity string, item []byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, err := b.ensureLoaded(namespace)
	if err != nil {
		return false, err
	}
	entries, err := decodeCollection(ns[key])
	if err != nil {
		return false, err
	}
	entries, added := appendIfAbsent(entries, identity, item)
	if !added {
		return false, nil
	}
	data, err := encodeCollection(entries)
	if err != nil {
		return false, err
	}
	ns[key] = data
	if err := b.flush(namespace, ns); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes an entire namespace. Called on tenant credential switch;
// prior-tenant data is not preserved.
func (b *LocalBackend) Clear(_ context.Context, namespace string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.namespaces, namespace)
	b.loaded[namespace] = true
	if b.dataDir != "" {
		if err := os.Remove(b.path(namespace)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear namespace: %w", err)
		}
	}
	b.logger.Debug("namespace cleared", slog.String("namespace", namespace))
	return nil
}

// ensureLoaded returns the namespace map, reading it from disk once.
// Callers must hold the write lock.
func (b *LocalBackend) ensureLoaded(namespace string) (map[string]json.RawMessage, error) {
	if ns, ok := b.namespaces[namespace]; ok {
		return ns, nil
	}
	ns := map[string]json.RawMessage{}
	if b.dataDir != "" && !b.loaded[namespace] {
		data, err := os.ReadFile(b.path(namespace))
		if err == nil {
			if err := json.Unmarshal(data, &ns); err != nil {
				return nil, fmt.Errorf("failed to decode namespace file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read namespace file: %w", err)
		}
	}
	b.loaded[namespace] = true
	b.namespaces[namespace] = ns
	return ns, nil
}

// flush writes the namespace document to disk when persistence is enabled
func (b *LocalBackend) flush(namespace string, ns map[string]json.RawMessage) error {
	if b.dataDir == "" {
		return nil
	}
	data, err := json.Marshal(ns)
	if err != nil {
		return fmt.Errorf("failed to encode namespace: %w", err)
	}
	tmp := b.path(namespace) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write namespace file: %w", err)
	}
	if err := os.Rename(tmp, b.path(namespace)); err != nil {
		return fmt.Errorf("failed to replace namespace file: %w", err)
	}
	return nil
}

func (b *LocalBackend) path(namespace string) string {
	return filepath.Join(b.dataDir, namespace+".json")
}
