package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lumotrade/backend-go/internal/cachestore"
	"lumotrade/backend-go/internal/config"
	"lumotrade/backend-go/internal/models"
	"lumotrade/backend-go/internal/services"
)

type API struct {
	cfg    config.Config
	market *services.MarketService
	hub    *services.QuoteHub
	log    zerolog.Logger
}

func New(cfg config.Config, market *services.MarketService, log zerolog.Logger) *API {
	return &API{
		cfg:    cfg,
		market: market,
		hub:    services.NewQuoteHub(market, cfg.RequestTimeout, log),
		log:    log,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeCached sends a cache envelope with edge caching headers.
func writeCached[T any](w http.ResponseWriter, cfg config.Config, res cachestore.Result[T]) {
	w.Header().Set("Cache-Control", fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", cfg.EdgeMaxAge, cfg.EdgeSWR))
	w.Header().Set("X-Cache", cacheStatus(res.Cache.Hit))
	writeJSON(w, http.StatusOK, models.Wrap(res))
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

// writeServiceError maps request validation errors to 400 and everything else
// through the upstream error mapping.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSymbol), errors.Is(err, cachestore.ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	default:
		writeUpstreamError(w, err)
	}
}

// wantsRefresh reports whether the caller asked to bypass the cache.
func wantsRefresh(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("refresh")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func parseIntParam(v string, def int, min int, max int) int {
	if v == "" {
		return def
	}
	var out int
	_, err := fmt.Sscanf(v, "%d", &out)
	if err != nil {
		return def
	}
	if out < min {
		return min
	}
	if out > max {
		return max
	}
	return out
}

func timeboxed(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
