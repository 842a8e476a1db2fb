package cachestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// BackendConfig selects and locates a backend.
type BackendConfig struct {
	Kind       string // file, redis, sqlite, memory or none
	Dir        string
	RedisURL   string
	SQLitePath string
}

// OpenBackend builds the backend named by cfg.Kind. Kind "none" returns a nil
// backend and no error.
func OpenBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "file":
		b, err := NewFileBackend(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "redis":
		b, err := NewRedisBackend(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "sqlite":
		b, err := NewSQLiteBackend(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "memory":
		return NewMemoryBackend(), nil
	case "none", "off", "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Kind)
	}
}

// Open returns a Store for cfg. A backend that cannot be opened is logged and
// the Store runs disabled instead of failing startup.
func Open(ctx context.Context, cfg BackendConfig, log zerolog.Logger, opts ...Option) *Store {
	backend, err := OpenBackend(ctx, cfg)
	opts = append([]Option{WithLogger(log)}, opts...)
	switch {
	case err != nil:
		log.Error().Err(err).Str("backend", cfg.Kind).Msg("cache backend unavailable, caching disabled")
		opts = append(opts, WithDisabledReason(fmt.Sprintf("%s backend unavailable: %v", cfg.Kind, err)))
		return New(nil, opts...)
	case backend == nil:
		log.Warn().Msg("cache backend set to none, caching disabled")
		opts = append(opts, WithDisabledReason("disabled by configuration"))
		return New(nil, opts...)
	}
	log.Info().Str("backend", backend.Name()).Msg("cache backend ready")
	return New(backend, opts...)
}
