package handlers

import (
	"net/http"
	"os"

	"lumotrade/backend-go/internal/models"
)

// Health always answers 200: a disabled cache degrades latency, not
// correctness.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Ok:      true,
		TsISO:   nowISO(),
		Service: "lumotrade-backend",
		Version: os.Getenv("SERVICE_VERSION"),
		Cache:   a.market.Store().Status(),
		Env: map[string]bool{
			"POLYGON_API_KEY":     a.cfg.PolygonAPIKey != "",
			"FMP_API_KEY":         a.cfg.FMPAPIKey != "",
			"FINNHUB_API_KEY":     a.cfg.FinnhubAPIKey != "",
			"APCA_API_KEY_ID":     a.cfg.AlpacaKeyID != "",
			"APCA_API_SECRET_KEY": a.cfg.AlpacaSecret != "",
			"REDIS_URL":           a.cfg.RedisURL != "",
		},
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
