package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mariusvk/kodekalender/internal/infrastructure/redis"
	"github.com/mariusvk/kodekalender/internal/observability/metrics"
	"github.com/mariusvk/kodekalender/internal/reliability/circuitbreaker"
	"github.com/mariusvk/kodekalender/internal/reliability/retry"
	"github.com/mariusvk/kodekalender/pkg/cache"
)

const (
	keyPrefix    = "family:"
	readCacheTTL = 3 * time.Second
)

// DocumentStore is the slice of the remote client the backend depends on
type DocumentStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// RemoteBackend stores each family's state as JSON documents in a remote
// document store, addressed by the derived namespace so any device using the
// same credential sees the same data. Writes go through the shared retry
// policy and surface failures to the caller; reads degrade to absent so the
// UI keeps working while the store is unreachable.
type RemoteBackend struct {
	client   DocumentStore
	retryCfg *retry.Config
	breaker  *circuitbreaker.CircuitBreaker
	cache    *cache.Cache
	logger   *slog.Logger

	lockMu   sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewRemoteBackend creates a remote backend over the given client
func NewRemoteBackend(client DocumentStore, retryCfg *retry.Config, logger *slog.Logger) *RemoteBackend {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteBackend{
		client:   client,
		retryCfg: retryCfg,
		breaker:  circuitbreaker.New(5, 2, 10*time.Second),
		cache:    cache.New(),
		logger:   logger,
		keyLocks: map[string]*sync.Mutex{},
	}
}

// Kind identifies this backend as remote
func (b *RemoteBackend) Kind() string { return KindRemote }

// Get retrieves a value. Transient store failures degrade to absent rather
// than erroring; the caller sees an empty default.
func (b *RemoteBackend) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	storeKey := b.storeKey(namespace, key)

	if value, ok := b.cache.Get(storeKey); ok {
		return []byte(value.(string)), true, nil
	}

	if !b.breaker.Allow() {
		b.logger.Warn("remote read skipped, circuit open", slog.String("key", storeKey))
		metrics.ObserveBackendOp(KindRemote, "get", "degraded", 0)
		return nil, false, nil
	}

	start := time.Now()
	data, err := b.client.Get(ctx, storeKey)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			b.breaker.RecordSuccess()
			metrics.ObserveBackendOp(KindRemote, "get", "miss", time.Since(start))
			return nil, false, nil
		}
		b.breaker.RecordFailure()
		metrics.ObserveBackendOp(KindRemote, "get", "degraded", time.Since(start))
		b.logger.Warn("remote read failed, degrading to empty",
			slog.String("key", storeKey),
			slog.String("error", err.Error()),
		)
		return nil, false, nil
	}

	b.breaker.RecordSuccess()
	metrics.ObserveBackendOp(KindRemote, "get", "hit", time.Since(start))
	b.cache.Set(storeKey, data, readCacheTTL)
	return []byte(data), true, nil
}

// Set stores a value, retrying transient failures. A final failure is
// surfaced as ErrBackendUnavailable so the caller can retry or warn; writes
// are never silently dropped.
func (b *RemoteBackend) Set(ctx context.Context, namespace, key string, value []byte) error {
	storeKey := b.storeKey(namespace, key)
	b.cache.Delete(storeKey)

	start := time.Now()
	_, err := retry.Do(ctx, b.retryCfg, b.logger, "remote set", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.client.Set(ctx, storeKey, string(value))
	})
	if err != nil {
		b.breaker.RecordFailure()
		metrics.ObserveBackendOp(KindRemote, "set", "error", time.Since(start))
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	b.breaker.RecordSuccess()
	metrics.ObserveBackendOp(KindRemote, "set", "ok", time.Since(start))
	return nil
}

// AppendUnique adds an item to a collection unless its identity exists. The
// read half must not degrade to empty here: appending on top of a failed read
// would overwrite the collection, so read failures surface as write failures.
func (b *RemoteBackend) AppendUnique(ctx context.Context, namespace, key, identity string, item []byte) (bool, error) {
	storeKey := b.storeKey(namespace, key)

	// Concurrent appends to the same key must not read the same base
	// collection, or the later Set drops the earlier entry
	lock := b.keyLock(storeKey)
	lock.Lock()
	defer lock.Unlock()

	current, err := b.client.Get(ctx, storeKey)
	if err != nil && !errors.Is(err, redis.ErrNotFound) {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	entries, err := decodeCollection([]byte(current))
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
	if err := b.Set(ctx, namespace, key, data); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes every key in a namespace
func (b *RemoteBackend) Clear(ctx context.Context, namespace string) error {
	pattern := keyPrefix + namespace + ":*"
	keys, err := b.client.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	for _, k := range keys {
		b.cache.Delete(k)
	}
	if err := b.client.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *RemoteBackend) storeKey(namespace, key string) string {
	return keyPrefix + namespace + ":" + key
}

func (b *RemoteBackend) keyLock(storeKey string) *sync.Mutex {
	b.lockMu.Lock()
	defer b.lockMu.Unlock()
	lock, ok := b.keyLocks[storeKey]
	if !ok {
		lock = &sync.Mutex{}
		b.keyLocks[storeKey] = lock
	}
	return lock
}
