package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mariusvk/kodekalender/internal/infrastructure/logger"
	"github.com/mariusvk/kodekalender/internal/infrastructure/redis"
	"github.com/mariusvk/kodekalender/internal/reliability/retry"
)

type memDocStore struct {
	mu     sync.Mutex
	docs   map[string]string
	getErr error
	setErr error
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: map[string]string{}}
}

func (s *memDocStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	value, ok := s.docs[key]
	if !ok {
		return "", redis.ErrNotFound
	}
	return value, nil
}

func (s *memDocStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.docs[key] = value
	return nil
}

func (s *memDocStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := pattern[:len(pattern)-1]
	var keys []string
	for k := range s.docs {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *memDocStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.docs, k)
	}
	return nil
}

func newTestRemoteBackend(store DocumentStore) *RemoteBackend {
	return NewRemoteBackend(store, retry.NewConfig(1, time.Millisecond), logger.NewLogger("error"))
}

// Concurrent appends to the same collection must all land: a lost entry means
// one device's badge or code vanished.
func TestRemoteAppendUniqueConcurrent(t *testing.T) {
	store := newMemDocStore()
	b := newTestRemoteBackend(store)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := fmt.Sprintf("badge-%d", i)
			added, err := b.AppendUnique(ctx, "fam-a", "badges", identity, []byte(fmt.Sprintf(`{"id":%d}`, i)))
			if err != nil {
				errs <- err
				return
			}
			if !added {
				errs <- fmt.Errorf("identity %s reported duplicate", identity)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append failed: %v", err)
	}

	data, ok, err := b.Get(ctx, "fam-a", "badges")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	ids, err := Identities(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(ids) != writers {
		t.Fatalf("expected %d entries, got %d", writers, len(ids))
	}
}

func TestRemoteAppendUniqueIdempotent(t *testing.T) {
	b := newTestRemoteBackend(newMemDocStore())
	ctx := context.Background()

	added, err := b.AppendUnique(ctx, "fam-a", "codes", "day-1", []byte(`{"day":1}`))
	if err != nil || !added {
		t.Fatalf("first append: added=%v err=%v", added, err)
	}
	added, err = b.AppendUnique(ctx, "fam-a", "codes", "day-1", []byte(`{"day":1}`))
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if added {
		t.Fatalf("duplicate identity must report false")
	}
}

// The read half of an append is strict: appending on top of a failed read
// would overwrite the collection.
func TestRemoteAppendUniqueStrictRead(t *testing.T) {
	store := newMemDocStore()
	store.getErr = errors.New("connection refused")
	b := newTestRemoteBackend(store)

	_, err := b.AppendUnique(context.Background(), "fam-a", "codes", "day-1", []byte(`{}`))
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRemoteGetDegradesToAbsent(t *testing.T) {
	store := newMemDocStore()
	store.getErr = errors.New("connection refused")
	b := newTestRemoteBackend(store)

	value, ok, err := b.Get(context.Background(), "fam-a", "codes")
	if err != nil {
		t.Fatalf("degraded read must not error, got %v", err)
	}
	if ok || value != nil {
		t.Fatalf("degraded read must report absent, got %q", value)
	}
}
