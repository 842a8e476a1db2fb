package handlers

import (
	"net/http"
	"strings"

	"lumotrade/backend-go/internal/services"
)

func (a *API) Quotes(w http.ResponseWriter, r *http.Request) {
	symbols := parseSymbols(r.URL.Query().Get("symbols"), a.cfg.MaxSymbols)
	if len(symbols) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "symbols required"})
		return
	}

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()
	res, err := a.market.Quotes(ctx, symbols, wantsRefresh(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCached(w, a.cfg, res)
}

// parseSymbols splits a comma list into at most max normalized symbols.
func parseSymbols(raw string, max int) []string {
	if raw == "" {
		return []string{}
	}
	out := services.NormalizeSymbols(strings.Split(raw, ","))
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
