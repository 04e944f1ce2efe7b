// Package store provides the key-value persistence port backing session,
// watchlist, and portfolio state, with file, in-memory, and Redis
// implementations.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("store: key not found")

// KV is a small key-value persistence port. Values are opaque bytes; callers
// own the encoding.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
