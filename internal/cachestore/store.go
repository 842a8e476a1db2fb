package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Meta describes how a result was produced.
type Meta struct {
	Hit      bool   `json:"hit"`
	Scope    string `json:"scope"`
	StoredAt string `json:"storedAt,omitempty"`
}

// Result is the value handed back to callers together with its cache metadata.
type Result[T any] struct {
	Data  T    `json:"data"`
	Cache Meta `json:"cache"`
}

// ComputeFunc produces the value to cache. Its errors reach the caller as-is.
type ComputeFunc[T any] func(ctx context.Context) (T, error)

type DailyParams[T any] struct {
	Key          string
	DateET       string
	ForceRefresh bool
	Compute      ComputeFunc[T]
}

type TTLParams[T any] struct {
	Key          string
	TTLSeconds   int
	ForceRefresh bool
	Compute      ComputeFunc[T]
}

// Status is the operator-facing view of the store configuration.
type Status struct {
	Backend    string `json:"backend"`
	Enabled    bool   `json:"enabled"`
	Reason     string `json:"reason,omitempty"`
	Coalescing bool   `json:"coalescing"`
}

// Store runs the get-or-compute algorithm against a Backend. A nil *Store
// and a Store with a nil backend both compute on every call.
type Store struct {
	backend        Backend
	log            zerolog.Logger
	now            func() time.Time
	sf             *singleflight.Group
	disabledReason string
	warnOnce       sync.Once
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces time.Now for expiry and bookkeeping timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCoalescing makes concurrent misses for the same (key, scope) share one
// compute call and one write. The shared call runs with the context of the
// caller that started it.
func WithCoalescing() Option {
	return func(s *Store) { s.sf = &singleflight.Group{} }
}

// WithDisabledReason records why backend is nil so Status can report it.
func WithDisabledReason(reason string) Option {
	return func(s *Store) { s.disabledReason = reason }
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if backend == nil && s.disabledReason == "" {
		s.disabledReason = "no backend configured"
	}
	return s
}

func (s *Store) Status() Status {
	if s == nil {
		return Status{Backend: "none", Reason: "no store"}
	}
	st := Status{Backend: "none", Coalescing: s.sf != nil}
	if s.backend == nil {
		st.Reason = s.disabledReason
		return st
	}
	st.Backend = s.backend.Name()
	st.Enabled = true
	return st
}

// Backend exposes the underlying backend for maintenance tooling.
func (s *Store) Backend() Backend {
	if s == nil {
		return nil
	}
	return s.backend
}

func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) enabled() bool {
	if s == nil {
		return false
	}
	if s.backend == nil {
		s.warnOnce.Do(func() {
			s.log.Warn().Str("reason", s.disabledReason).Msg("cache disabled, computing every request")
		})
		return false
	}
	return true
}

// GetOrComputeDaily returns the value stored for key on dateET, computing and
// storing it on a miss. A write purges the key's other daily scopes so only
// one day survives.
func GetOrComputeDaily[T any](ctx context.Context, s *Store, p DailyParams[T]) (Result[T], error) {
	if p.Key == "" {
		return Result[T]{}, ErrInvalidKey
	}
	if !ValidDate(p.DateET) {
		return Result[T]{}, fmt.Errorf("%w: %q", ErrInvalidDate, p.DateET)
	}
	if p.Compute == nil {
		return Result[T]{}, errors.New("cachestore: nil compute")
	}
	scope := DailyScope(p.DateET)
	return getOrCompute(ctx, s, p.Key, scope, p.ForceRefresh, p.Compute, writePolicy{purgeDaily: true})
}

// GetOrComputeTTL returns the value stored for key while it is younger than
// ttlSeconds, computing and storing it otherwise. ttlSeconds of zero always
// recomputes.
func GetOrComputeTTL[T any](ctx context.Context, s *Store, p TTLParams[T]) (Result[T], error) {
	if p.Key == "" {
		return Result[T]{}, ErrInvalidKey
	}
	if p.TTLSeconds < 0 {
		return Result[T]{}, fmt.Errorf("%w: %d", ErrInvalidTTL, p.TTLSeconds)
	}
	if p.Compute == nil {
		return Result[T]{}, errors.New("cachestore: nil compute")
	}
	force := p.ForceRefresh || p.TTLSeconds == 0
	return getOrCompute(ctx, s, p.Key, TTLScope, force, p.Compute, writePolicy{ttl: true, ttlSeconds: p.TTLSeconds})
}

type writePolicy struct {
	ttl        bool
	ttlSeconds int
	purgeDaily bool
}

func getOrCompute[T any](ctx context.Context, s *Store, key, scope string, force bool, compute ComputeFunc[T], pol writePolicy) (Result[T], error) {
	if !force {
		if data, meta, ok := lookup[T](ctx, s, key, scope); ok {
			return Result[T]{Data: data, Cache: meta}, nil
		}
	}

	fill := func() (T, error) {
		v, err := compute(ctx)
		if err != nil {
			return v, err
		}
		s.persist(ctx, key, scope, v, pol)
		return v, nil
	}

	var (
		value T
		err   error
	)
	if s != nil && s.sf != nil {
		value, err = coalesce(s.sf, key+"\x00"+scope, fill)
	} else {
		value, err = fill()
	}
	if err != nil {
		var zero T
		return Result[T]{Data: zero, Cache: Meta{Scope: scope}}, err
	}
	return Result[T]{Data: value, Cache: Meta{Hit: false, Scope: scope}}, nil
}

func coalesce[T any](g *singleflight.Group, id string, fill func() (T, error)) (T, error) {
	v, err, _ := g.Do(id, func() (any, error) {
		return fill()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		// Two callers used one key with different value types.
		return fill()
	}
	return out, nil
}

func lookup[T any](ctx context.Context, s *Store, key, scope string) (T, Meta, bool) {
	var zero T
	if !s.enabled() {
		return zero, Meta{}, false
	}
	e, err := s.backend.Find(ctx, key, scope)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Str("scope", scope).Msg("cache lookup failed")
		}
		return zero, Meta{}, false
	}
	if e.ExpiredAt(s.now()) {
		s.dropExpired(ctx, key, scope)
		return zero, Meta{}, false
	}
	var out T
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("scope", scope).Msg("cache payload undecodable, recomputing")
		return zero, Meta{}, false
	}
	s.log.Debug().Str("key", key).Str("scope", scope).Msg("cache hit")
	return out, Meta{Hit: true, Scope: scope, StoredAt: e.UpdatedAt.UTC().Format(time.RFC3339)}, true
}

func (s *Store) dropExpired(ctx context.Context, key, scope string) {
	if err := s.backend.Delete(context.WithoutCancel(ctx), key, scope); err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("scope", scope).Msg("delete expired entry failed")
	}
}

func (s *Store) persist(ctx context.Context, key, scope string, value any, pol writePolicy) {
	if !s.enabled() {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache payload not serializable, skipping write")
		return
	}

	// A client that hangs up after compute still gets its value stored.
	ctx = context.WithoutCancel(ctx)
	now := s.now()
	e := Entry{
		CacheKey:  key,
		Scope:     scope,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pol.ttl {
		e.ExpiresAt = expiresIn(now, pol.ttlSeconds)
	}
	if err := s.backend.Upsert(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("scope", scope).Msg("cache write failed")
		return
	}
	s.log.Debug().Str("key", key).Str("scope", scope).Int("bytes", len(payload)).Msg("cache stored")

	if pol.purgeDaily {
		n, err := s.backend.DeleteWhere(ctx, key, DailyPrefix, scope)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("purge of previous daily scopes failed")
			return
		}
		if n > 0 {
			s.log.Debug().Str("key", key).Int("purged", n).Msg("purged previous daily scopes")
		}
	}
}

// Sweep deletes every entry that has passed its expiry and returns how many
// were removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	if s == nil || s.backend == nil {
		return 0, ErrBackendDisabled
	}
	entries, err := s.backend.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	now := s.now()
	removed := 0
	for i := range entries {
		e := &entries[i]
		if !e.ExpiredAt(now) {
			continue
		}
		if err := s.backend.Delete(ctx, e.CacheKey, e.Scope); err != nil {
			return removed, fmt.Errorf("delete %s/%s: %w", e.CacheKey, e.Scope, err)
		}
		removed++
	}
	return removed, nil
}
