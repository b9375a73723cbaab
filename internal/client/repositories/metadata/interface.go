// Package metadata persists small key/value facts of the device: the stored
// session token and user, and the per-table pull cursors.
package metadata

import "context"

// Repository is a string-keyed store of opaque values.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// GetInt64 returns the integer stored under key and whether it exists.
	GetInt64(ctx context.Context, key string) (int64, bool, error)
	SetInt64(ctx context.Context, key string, v int64) error
	// SwapInt64 writes v only if key is absent or still holds old.
	SwapInt64(ctx context.Context, key string, old, v int64) (bool, error)
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
