package cachestore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend keeps entries in process memory. It backs tests and
// single-instance deployments that do not need entries to survive a restart.
type MemoryBackend struct {
	mu    sync.Mutex
	items map[string]map[string]Entry
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]map[string]Entry)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Find(_ context.Context, key, scope string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key][scope]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneEntry(e)
	return &out, nil
}

func (m *MemoryBackend) Upsert(_ context.Context, e Entry) error {
	if e.CacheKey == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	scopes := m.items[e.CacheKey]
	if scopes == nil {
		scopes = make(map[string]Entry)
		m.items[e.CacheKey] = scopes
	}
	if prev, ok := scopes[e.Scope]; ok {
		e.CreatedAt = prev.CreatedAt
	}
	scopes[e.Scope] = cloneEntry(e)
	return nil
}

func (m *MemoryBackend) DeleteWhere(_ context.Context, key, scopePrefix, excludeScope string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scopes := m.items[key]
	n := 0
	for scope := range scopes {
		if scope == excludeScope || !strings.HasPrefix(scope, scopePrefix) {
			continue
		}
		delete(scopes, scope)
		n++
	}
	if len(scopes) == 0 {
		delete(m.items, key)
	}
	return n, nil
}

func (m *MemoryBackend) Delete(_ context.Context, key, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if scopes, ok := m.items[key]; ok {
		delete(scopes, scope)
		if len(scopes) == 0 {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *MemoryBackend) List(_ context.Context, key string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Entry{}
	for k, scopes := range m.items {
		if key != "" && k != key {
			continue
		}
		for _, e := range scopes {
			out = append(out, cloneEntry(e))
		}
	}
	sortEntries(out)
	return out, nil
}

func (m *MemoryBackend) Close() error { return nil }

func cloneEntry(e Entry) Entry {
	out := e
	if e.Payload != nil {
		out.Payload = append([]byte(nil), e.Payload...)
	}
	if e.ExpiresAt != nil {
		exp := *e.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CacheKey != entries[j].CacheKey {
			return entries[i].CacheKey < entries[j].CacheKey
		}
		return entries[i].Scope < entries[j].Scope
	})
}
