package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lumotrade/backend-go/internal/cachestore"
	"lumotrade/backend-go/internal/config"
	internalhttp "lumotrade/backend-go/internal/http"
	"lumotrade/backend-go/internal/logging"
	"lumotrade/backend-go/internal/services"
)

func main() {
	_ = godotenv.Load(
		".env",
		".env.local",
		"../.env",
		"../.env.local",
		"backend-go/.env",
		"backend-go/.env.local",
	)
	cfg, err := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []cachestore.Option
	if cfg.CacheCoalesce {
		opts = append(opts, cachestore.WithCoalescing())
	}
	store := cachestore.Open(ctx, cachestore.BackendConfig{
		Kind:       cfg.CacheBackend,
		Dir:        cfg.CacheDir,
		RedisURL:   cfg.RedisURL,
		SQLitePath: cfg.SQLitePath,
	}, logging.Component(log, "cache"), opts...)
	defer store.Close()

	market := services.NewMarketService(cfg, store, services.NewSources(cfg, logging.Component(log, "upstream")), logging.Component(log, "market"))
	h := internalhttp.NewRouter(cfg, market, logging.Component(log, "http"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown")
		}
	}()

	log.Info().Str("addr", srv.Addr).Str("cache", store.Status().Backend).Msg("lumotrade backend listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
