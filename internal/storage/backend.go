package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Backend kinds
const (
	KindLocal  = "local"
	KindRemote = "remote"
)

// ErrBackendUnavailable indicates a write could not reach the store. Reads
// never return it; they degrade to absent so the UI stays functional.
var ErrBackendUnavailable = errors.New("storage backend unavailable")

// Backend is the uniform read/write contract both stores implement. All keys
// are scoped by a tenant namespace; two namespaces never observe each other's
// data. AppendUnique reports whether the item was inserted: appending an item
// whose identity already exists in the collection is a no-op.
type Backend interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	AppendUnique(ctx context.Context, namespace, key string, identity string, item []byte) (bool, error)
	Clear(ctx context.Context, namespace string) error
	Kind() string
}

// entry wraps a collection item with its identity so uniqueness can be
// enforced without decoding the item payload
type entry struct {
	ID   string          `json:"id"`
	Item json.RawMessage `json:"item"`
}

func decodeCollection(data []byte) ([]entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return entries, nil
}

func encodeCollection(entries []entry) ([]byte, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode collection: %w", err)
	}
	return data, nil
}

// appendIfAbsent adds the item unless its identity is already present
func appendIfAbsent(entries []entry, identity string, item []byte) ([]entry, bool) {
	for _, e := range entries {
		if e.ID == identity {
			return entries, false
		}
	}
	return append(entries, entry{ID: identity, Item: item}), true
}

// Items decodes a stored collection into its raw item payloads. Used by the
// repository to unmarshal typed entities.
func Items(data []byte) ([]json.RawMessage, error) {
	entries, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Item)
	}
	return out, nil
}

// Identities decodes a stored collection into its identity keys only
func Identities(data []byte) ([]string, error) {
	entries, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out, nil
}
