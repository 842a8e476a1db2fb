package cachestore

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("cache entry not found")
	ErrCorruptEntry    = errors.New("cache entry corrupt")
	ErrInvalidKey      = errors.New("cache key cannot be empty")
	ErrInvalidDate     = errors.New("daily cache date must be YYYY-MM-DD")
	ErrInvalidTTL      = errors.New("cache ttl cannot be negative")
	ErrBackendDisabled = errors.New("cache backend disabled")
)

// Backend persists entries. Implementations upsert by (CacheKey, Scope) and
// never hold more than one entry per pair. Expiry is judged by Store, not by
// the backend.
type Backend interface {
	// Find returns the entry for (key, scope), or ErrNotFound.
	Find(ctx context.Context, key, scope string) (*Entry, error)

	// Upsert creates or replaces the entry for (e.CacheKey, e.Scope). An
	// existing entry keeps its CreatedAt.
	Upsert(ctx context.Context, e Entry) error

	// DeleteWhere removes every entry of key whose scope starts with
	// scopePrefix, except excludeScope. It returns the number removed.
	DeleteWhere(ctx context.Context, key, scopePrefix, excludeScope string) (int, error)

	// Delete removes (key, scope). Deleting an absent entry is not an error.
	Delete(ctx context.Context, key, scope string) error

	// List returns the entries of key, or of every key when key is empty.
	List(ctx context.Context, key string) ([]Entry, error)

	Name() string
	Close() error
}
