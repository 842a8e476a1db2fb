package cachestore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type backendFactory struct {
	name string
	open func(t *testing.T) Backend
}

// allBackends lists every backend implementation, each opened against
// throwaway storage owned by the test.
func allBackends() []backendFactory {
	return []backendFactory{
		{name: "memory", open: func(t *testing.T) Backend {
			return NewMemoryBackend()
		}},
		{name: "file", open: func(t *testing.T) Backend {
			b, err := NewFileBackend(filepath.Join(t.TempDir(), "cache"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		}},
		{name: "sqlite", open: func(t *testing.T) Backend {
			b, err := NewSQLiteBackend(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		}},
		{name: "redis", open: func(t *testing.T) Backend {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			b := NewRedisBackendFromClient(client)
			t.Cleanup(func() { _ = b.Close() })
			return b
		}},
	}
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

var errBackendDown = errors.New("backend down")

// flakyBackend wraps a MemoryBackend and fails the selected operations.
type flakyBackend struct {
	*MemoryBackend
	failFind, failUpsert, failDeleteWhere bool
}

func (f *flakyBackend) Find(ctx context.Context, key, scope string) (*Entry, error) {
	if f.failFind {
		return nil, errBackendDown
	}
	return f.MemoryBackend.Find(ctx, key, scope)
}

func (f *flakyBackend) Upsert(ctx context.Context, e Entry) error {
	if f.failUpsert {
		return errBackendDown
	}
	return f.MemoryBackend.Upsert(ctx, e)
}

func (f *flakyBackend) DeleteWhere(ctx context.Context, key, scopePrefix, excludeScope string) (int, error) {
	if f.failDeleteWhere {
		return 0, errBackendDown
	}
	return f.MemoryBackend.DeleteWhere(ctx, key, scopePrefix, excludeScope)
}
