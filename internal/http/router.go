package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"lumotrade/backend-go/internal/config"
	"lumotrade/backend-go/internal/handlers"
	"lumotrade/backend-go/internal/services"
)

func NewRouter(cfg config.Config, market *services.MarketService, log zerolog.Logger) http.Handler {
	api := handlers.New(cfg, market, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", api.Health)
	mux.HandleFunc("GET /api/v1/market/breadth", api.Breadth)
	mux.HandleFunc("GET /api/v1/quotes", api.Quotes)
	mux.HandleFunc("GET /api/v1/quotes/stream", api.StreamQuotes)
	mux.HandleFunc("GET /api/v1/news", api.News)
	mux.HandleFunc("GET /api/v1/levels", api.Levels)
	mux.HandleFunc("GET /api/v1/catalysts", api.Catalysts)

	h := http.Handler(mux)
	h = withRecovery(log)(h)
	h = withLogging(log)(h)
	h = withRequestID(h)
	h = withRateLimit(cfg.RateLimitPerMin)(h)
	h = withCORS(h)
	return h
}
