package handlers

import (
	"net/http"
	"strings"
)

func (a *API) Breadth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	res, err := a.market.Breadth(ctx, strings.TrimSpace(r.URL.Query().Get("date")), wantsRefresh(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCached(w, a.cfg, res)
}

func (a *API) Levels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	res, err := a.market.Levels(ctx, q.Get("symbol"), strings.TrimSpace(q.Get("date")), wantsRefresh(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCached(w, a.cfg, res)
}

func (a *API) Catalysts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	res, err := a.market.Catalysts(ctx, q.Get("symbol"), strings.TrimSpace(q.Get("date")), wantsRefresh(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCached(w, a.cfg, res)
}
