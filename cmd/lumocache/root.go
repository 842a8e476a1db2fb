package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"lumotrade/backend-go/internal/cachestore"
	"lumotrade/backend-go/internal/config"
)

// commandContext resolves the backend once per invocation from config plus
// flag overrides.
type commandContext struct {
	backendFlag string
	dirFlag     string
	redisFlag   string
	sqliteFlag  string

	backend cachestore.Backend
}

func (c *commandContext) ensureBackend(ctx context.Context) (cachestore.Backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	bc := cachestore.BackendConfig{
		Kind:       cfg.CacheBackend,
		Dir:        cfg.CacheDir,
		RedisURL:   cfg.RedisURL,
		SQLitePath: cfg.SQLitePath,
	}
	if c.backendFlag != "" {
		bc.Kind = c.backendFlag
	}
	if c.dirFlag != "" {
		bc.Dir = c.dirFlag
	}
	if c.redisFlag != "" {
		bc.RedisURL = c.redisFlag
	}
	if c.sqliteFlag != "" {
		bc.SQLitePath = c.sqliteFlag
	}

	b, err := cachestore.OpenBackend(ctx, bc)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.New("cache backend is disabled by configuration")
	}
	c.backend = b
	return b, nil
}

func (c *commandContext) close() {
	if c.backend != nil {
		_ = c.backend.Close()
		c.backend = nil
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "lumocache",
		Short:         "Inspect and maintain the API response cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.backendFlag, "backend", "", "Cache backend: file, redis or sqlite (default from CACHE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&ctx.dirFlag, "dir", "", "File backend directory (default from CACHE_DIR)")
	rootCmd.PersistentFlags().StringVar(&ctx.redisFlag, "redis-url", "", "Redis URL (default from REDIS_URL)")
	rootCmd.PersistentFlags().StringVar(&ctx.sqliteFlag, "sqlite-path", "", "SQLite database path (default from SQLITE_PATH)")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newPurgeCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))

	return rootCmd
}
