package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("stored document is corrupt")

// Keys of the three independent documents kept per profile.
const (
	ProgressKey  = "curio-fact-progress"
	ProfileKey   = "curio-user-profile"
	BookmarksKey = "curio-bookmarks"
)

// Key namespaces base by profile.
func Key(base, profileID string) string {
	if profileID == "" {
		return base
	}
	return base + ":" + profileID
}

// KV is the durable key-value capability the documents are stored in.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, blob []byte) error
}

// Document is a JSON encoded value stored under a single key.
type Document[T any] struct {
	kv  KV
	key string
}

// NewDocument binds a document of type T to key.
func NewDocument[T any](kv KV, key string) *Document[T] {
	return &Document[T]{kv: kv, key: key}
}

// Key returns the storage key of the document.
func (d *Document[T]) Key() string {
	return d.key
}

// Load decodes the stored value. The boolean is false when nothing is stored.
// A blob that fails to decode yields an error wrapping ErrCorrupt.
func (d *Document[T]) Load(ctx context.Context) (T, bool, error) {
	var v T
	blob, ok, err := d.kv.Get(ctx, d.key)
	if err != nil {
		return v, false, fmt.Errorf("failed to read %s: %w", d.key, err)
	}
	if !ok {
		return v, false, nil
	}
	if err := json.Unmarshal(blob, &v); err != nil {
		var zero T
		return zero, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, d.key, err)
	}
	return v, true, nil
}

// Save encodes v and writes it under the document key.
func (d *Document[T]) Save(ctx context.Context, v T) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.key, err)
	}
	return d.kv.Set(ctx, d.key, blob)
}
