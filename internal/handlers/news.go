package handlers

import (
	"net/http"
	"strings"

	"lumotrade/backend-go/internal/cachestore"
	"lumotrade/backend-go/internal/models"
)

// News serves the cached company feed. Filtering and paging run on the cached
// value, so every page of a symbol shares one upstream call.
func (a *API) News(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parseIntParam(q.Get("page"), 1, 1, 500)
	pageSize := parseIntParam(q.Get("pageSize"), 20, 1, 50)
	filter := strings.TrimSpace(q.Get("filter"))
	searchText := strings.TrimSpace(q.Get("q"))

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()
	res, err := a.market.News(ctx, q.Get("symbol"), wantsRefresh(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := applyNewsFilter(res.Data.Items, filter)
	items = applyNewsSearch(items, searchText)

	total := len(items)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	paged := []models.NewsItem{}
	if start < end {
		paged = items[start:end]
	}

	out := models.NewsPage{
		NewsResponse: res.Data,
		Page:         page,
		PageSize:     pageSize,
		Total:        total,
	}
	out.Items = paged
	writeCached(w, a.cfg, cachestore.Result[models.NewsPage]{Data: out, Cache: res.Cache})
}

// applyNewsFilter keeps items with the given sentiment label.
func applyNewsFilter(items []models.NewsItem, filter string) []models.NewsItem {
	if filter == "" || strings.EqualFold(filter, "all") {
		return items
	}
	out := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		if strings.EqualFold(it.Label, filter) {
			out = append(out, it)
		}
	}
	return out
}

func applyNewsSearch(items []models.NewsItem, query string) []models.NewsItem {
	trimmed := strings.TrimSpace(strings.ToLower(query))
	if trimmed == "" {
		return items
	}
	tokens := strings.Fields(trimmed)
	out := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		text := strings.ToLower(it.Headline + " " + it.Summary + " " + it.Source)
		if strings.Contains(text, trimmed) {
			out = append(out, it)
			continue
		}
		matchAll := true
		for _, tok := range tokens {
			if len(tok) < 2 {
				continue
			}
			if !strings.Contains(text, tok) {
				matchAll = false
				break
			}
		}
		if matchAll {
			out = append(out, it)
		}
	}
	return out
}
