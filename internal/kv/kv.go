// Package kv provides the string key-value stores the session layer persists to.
// Every key is an independent document; nothing spans keys atomically.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/pocketchat/internal/config"
)

// ErrStorageUnavailable is wrapped by every backend failure.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store is a persistent string-keyed store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Clear deletes every key owned by the store.
	Clear(ctx context.Context) error
	Close() error
}

// Open builds the backend named in cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return NewMemory(), nil
	case config.StorageSQLite, "":
		return OpenSQLite(ctx, cfg.Path)
	case config.StorageRedis:
		return OpenRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func unavailable(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %q: %w", ErrStorageUnavailable, op, key, err)
}
