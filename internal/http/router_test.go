package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumotrade/backend-go/internal/cachestore"
	"lumotrade/backend-go/internal/config"
	"lumotrade/backend-go/internal/models"
	"lumotrade/backend-go/internal/services"
)

// fakeVendor serves the Polygon, FMP and Finnhub endpoints the router uses.
type fakeVendor struct {
	mu    sync.Mutex
	calls map[string]int
}

func (v *fakeVendor) count(path string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[path]
}

func (v *fakeVendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	v.calls[r.URL.Path]++
	v.mu.Unlock()

	switch {
	case r.URL.Path == "/v2/aggs/grouped/locale/us/market/stocks/2024-06-07":
		_, _ = w.Write([]byte(`{"results":[{"T":"A","c":11,"v":100},{"T":"B","c":9,"v":50},{"T":"C","c":12,"v":10}]}`))
	case r.URL.Path == "/v2/aggs/grouped/locale/us/market/stocks/2024-06-06":
		_, _ = w.Write([]byte(`{"results":[{"T":"A","c":10},{"T":"B","c":10},{"T":"C","c":10}]}`))
	case r.URL.Path == "/v2/aggs/grouped/locale/us/market/stocks/2024-05-31":
		_, _ = w.Write([]byte(`{"results":[{"T":"A","c":9},{"T":"B","c":9}]}`))
	case r.URL.Path == "/v2/aggs/grouped/locale/us/market/stocks/2024-05-30":
		_, _ = w.Write([]byte(`{"results":[{"T":"A","c":10},{"T":"B","c":10}]}`))
	case strings.HasPrefix(r.URL.Path, "/v2/aggs/grouped/"):
		_, _ = w.Write([]byte(`{"results":[]}`))
	case r.URL.Path == "/api/v3/quote/AAPL,MSFT":
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","price":190},{"symbol":"MSFT","price":420}]`))
	case r.URL.Path == "/api/v3/quote/NOPE":
		w.WriteHeader(http.StatusNotFound)
	case r.URL.Path == "/api/v1/company-news":
		_, _ = w.Write([]byte(`[
			{"id":1,"datetime":1718049600,"headline":"Apple beats estimates","summary":"shares surge"},
			{"id":2,"datetime":1718049500,"headline":"Apple faces probe","summary":"EU lawsuit"},
			{"id":3,"datetime":1718049400,"headline":"Apple event date set","summary":""}
		]`))
	case r.URL.Path == "/api/v1/calendar/earnings":
		_, _ = w.Write([]byte(`{"earningsCalendar":[{"date":"2024-06-14","hour":"amc","symbol":"AAPL"}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fakeBars struct{}

func (fakeBars) DailyBars(context.Context, string, time.Time, time.Time) ([]models.Bar, error) {
	return []models.Bar{{High: 110, Low: 90, Close: 100}}, nil
}

var routerNow = time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T, mutate func(*config.Config)) (http.Handler, *fakeVendor) {
	t.Helper()
	vendor := &fakeVendor{calls: map[string]int{}}
	up := httptest.NewServer(vendor)
	t.Cleanup(up.Close)

	cfg := config.Defaults()
	cfg.RequestTimeout = 3 * time.Second
	cfg.PolygonBaseURL, cfg.PolygonAPIKey = up.URL, "pk"
	cfg.FMPBaseURL, cfg.FMPAPIKey = up.URL, "fk"
	cfg.FinnhubBaseURL, cfg.FinnhubAPIKey = up.URL, "hk"
	if mutate != nil {
		mutate(&cfg)
	}

	src := services.NewSources(cfg, zerolog.Nop())
	src.Bars = fakeBars{}
	store := cachestore.New(cachestore.NewMemoryBackend(), cachestore.WithClock(func() time.Time { return routerNow }))
	market := services.NewMarketService(cfg, store, src, zerolog.Nop(), services.WithNow(func() time.Time { return routerNow }))
	return NewRouter(cfg, market, zerolog.Nop()), vendor
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Cache cachestore.Meta `json:"cache"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := get(t, h, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ok)
	assert.True(t, body.Cache.Enabled)
	assert.Equal(t, "memory", body.Cache.Backend)
	assert.True(t, body.Env["FMP_API_KEY"])
	assert.False(t, body.Env["APCA_API_KEY_ID"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestQuotesRoundTrip(t *testing.T) {
	h, vendor := newTestRouter(t, nil)

	first := get(t, h, "/api/v1/quotes?symbols=msft,aapl")
	env := decodeEnvelope(t, first)
	assert.False(t, env.Cache.Hit)
	assert.Equal(t, "ttl", env.Cache.Scope)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "public, s-maxage=30, stale-while-revalidate=300", first.Header().Get("Cache-Control"))

	var quotes models.QuotesResponse
	require.NoError(t, json.Unmarshal(env.Data, &quotes))
	assert.Equal(t, 190.0, quotes.Quotes["AAPL"].Price)

	env = decodeEnvelope(t, get(t, h, "/api/v1/quotes?symbols=AAPL,MSFT"))
	assert.True(t, env.Cache.Hit)
	assert.Equal(t, routerNow.Format(time.RFC3339), env.Cache.StoredAt)
	assert.Equal(t, 1, vendor.count("/api/v3/quote/AAPL,MSFT"))

	env = decodeEnvelope(t, get(t, h, "/api/v1/quotes?symbols=AAPL,MSFT&refresh=1"))
	assert.False(t, env.Cache.Hit)
	assert.Equal(t, 2, vendor.count("/api/v3/quote/AAPL,MSFT"))
}

func TestQuotesErrors(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/quotes").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, get(t, h, "/api/v1/quotes?symbols=nope").Code)
}

func TestBreadthRoute(t *testing.T) {
	h, vendor := newTestRouter(t, nil)

	env := decodeEnvelope(t, get(t, h, "/api/v1/market/breadth"))
	assert.Equal(t, "daily:2024-06-10", env.Cache.Scope)
	var b models.Breadth
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, "2024-06-07", b.Date)
	assert.Equal(t, 2, b.Advancers)
	assert.Equal(t, 1, b.Decliners)
	assert.Equal(t, 2.0, b.ADRatio)

	env = decodeEnvelope(t, get(t, h, "/api/v1/market/breadth?date=2024-06-10"))
	assert.True(t, env.Cache.Hit)
	assert.Equal(t, 1, vendor.count("/v2/aggs/grouped/locale/us/market/stocks/2024-06-07"))

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/market/breadth?date=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/market/breadth?date=2099-01-01").Code)

	// A back-dated request does not evict today's entry.
	env = decodeEnvelope(t, get(t, h, "/api/v1/market/breadth?date=2024-06-03"))
	assert.Equal(t, "daily:2024-06-03", env.Cache.Scope)
	env = decodeEnvelope(t, get(t, h, "/api/v1/market/breadth"))
	assert.True(t, env.Cache.Hit)
	assert.Equal(t, 1, vendor.count("/v2/aggs/grouped/locale/us/market/stocks/2024-06-07"))
}

func TestNewsRoutePagesCachedFeed(t *testing.T) {
	h, vendor := newTestRouter(t, nil)

	env := decodeEnvelope(t, get(t, h, "/api/v1/news?symbol=aapl&pageSize=2"))
	var page models.NewsPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, "AAPL", page.Symbol)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Aggregate.Articles)

	env = decodeEnvelope(t, get(t, h, "/api/v1/news?symbol=AAPL&filter=bearish"))
	assert.True(t, env.Cache.Hit)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Apple faces probe", page.Items[0].Headline)
	assert.Equal(t, 1, vendor.count("/api/v1/company-news"))

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/news").Code)
}

func TestLevelsAndCatalystsRoutes(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	env := decodeEnvelope(t, get(t, h, "/api/v1/levels?symbol=AAPL"))
	var lv models.Levels
	require.NoError(t, json.Unmarshal(env.Data, &lv))
	assert.Equal(t, 100.0, lv.Pivots.P)
	assert.Equal(t, "daily:2024-06-10", env.Cache.Scope)

	env = decodeEnvelope(t, get(t, h, "/api/v1/catalysts?symbol=AAPL"))
	var cat models.CatalystRisk
	require.NoError(t, json.Unmarshal(env.Data, &cat))
	assert.Equal(t, services.RiskElevated, cat.Risk)
	require.NotNil(t, cat.DaysToEvent)
	assert.Equal(t, 4, *cat.DaysToEvent)
}

func TestDisabledCacheStillServes(t *testing.T) {
	vendor := &fakeVendor{calls: map[string]int{}}
	up := httptest.NewServer(vendor)
	defer up.Close()
	cfg := config.Defaults()
	cfg.FMPBaseURL, cfg.FMPAPIKey = up.URL, "fk"
	market := services.NewMarketService(cfg, cachestore.New(nil), services.NewSources(cfg, zerolog.Nop()), zerolog.Nop())
	h := NewRouter(cfg, market, zerolog.Nop())

	for i := 0; i < 2; i++ {
		env := decodeEnvelope(t, get(t, h, "/api/v1/quotes?symbols=AAPL,MSFT"))
		assert.False(t, env.Cache.Hit)
	}
	assert.Equal(t, 2, vendor.count("/api/v3/quote/AAPL,MSFT"))
}

func TestStreamQuotes(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/quotes/stream?symbols=AAPL,MSFT", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	reader := bufio.NewReader(res.Body)
	var line string
	for !strings.HasPrefix(line, "data: ") {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
	}
	var payload struct {
		Quotes map[string]models.Quote `json:"quotes"`
		Cache  string                  `json:"cache"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &payload))
	assert.Equal(t, 420.0, payload.Quotes["MSFT"].Price)
}
