package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumotrade/backend-go/internal/cachestore"
	"lumotrade/backend-go/internal/models"
	"lumotrade/backend-go/internal/services"
)

func TestApplyNewsFilter(t *testing.T) {
	items := []models.NewsItem{
		{Headline: "Chipmaker earnings beat", Label: "bullish"},
		{Headline: "Regulator opens probe", Label: "bearish"},
	}
	got := applyNewsFilter(items, "Bearish")
	require.Len(t, got, 1)
	assert.Equal(t, "Regulator opens probe", got[0].Headline)
	assert.Len(t, applyNewsFilter(items, "all"), 2)
}

func TestApplyNewsSearch(t *testing.T) {
	items := []models.NewsItem{
		{Headline: "Fed sees inflation easing", Summary: "CPI slowed in latest print"},
		{Headline: "Oil output cut", Summary: "OPEC announces supply action"},
	}

	got := applyNewsSearch(items, "fed cpi")
	require.Len(t, got, 1, "token match")
	assert.Equal(t, "Fed sees inflation easing", got[0].Headline)

	got = applyNewsSearch(items, "supply action")
	require.Len(t, got, 1, "phrase match")
	assert.Equal(t, "Oil output cut", got[0].Headline)
}

func TestWriteUpstreamError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		retryAfter string
	}{
		{"rate limited", &services.UpstreamError{Service: "fmp", Status: 429}, http.StatusTooManyRequests, "60"},
		{"bad request", fmt.Errorf("wrap: %w", &services.UpstreamError{Service: "fmp", Status: 404}), http.StatusUnprocessableEntity, ""},
		{"upstream timeout", &services.UpstreamError{Service: "fmp", Status: 504}, http.StatusGatewayTimeout, ""},
		{"server error", &services.UpstreamError{Service: "fmp", Status: 500}, http.StatusBadGateway, ""},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, ""},
		{"not configured", fmt.Errorf("polygon: %w", services.ErrNotConfigured), http.StatusServiceUnavailable, ""},
		{"breaker", services.ErrCircuitOpen, http.StatusServiceUnavailable, ""},
		{"other", fmt.Errorf("boom"), http.StatusBadGateway, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeUpstreamError(rec, tc.err)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.retryAfter, rec.Header().Get("Retry-After"))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteServiceErrorValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, fmt.Errorf("%w: %q", cachestore.ErrInvalidDate, "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	writeServiceError(rec, services.ErrInvalidSymbol)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteCachedEnvelope(t *testing.T) {
	api := &API{}
	api.cfg.EdgeMaxAge = 30
	api.cfg.EdgeSWR = 300

	rec := httptest.NewRecorder()
	writeCached(rec, api.cfg, cachestore.Result[map[string]int]{
		Data:  map[string]int{"up": 3},
		Cache: cachestore.Meta{Hit: true, Scope: "daily:2024-06-10", StoredAt: "2024-06-10T14:00:00Z"},
	})
	assert.Equal(t, "public, s-maxage=30, stale-while-revalidate=300", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.JSONEq(t, `{"up":3}`, string(body["data"]))
	assert.JSONEq(t, `{"hit":true,"scope":"daily:2024-06-10","storedAt":"2024-06-10T14:00:00Z"}`, string(body["cache"]))
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 10, parseIntParam("", 10, 5, 60))
	assert.Equal(t, 5, parseIntParam("1", 10, 5, 60))
	assert.Equal(t, 60, parseIntParam("600", 10, 5, 60))
	assert.Equal(t, 10, parseIntParam("abc", 10, 5, 60))

	assert.Equal(t, []string{"AAPL", "MSFT"}, parseSymbols("msft, aapl,,MSFT", 5))
	assert.Equal(t, []string{"AAPL"}, parseSymbols("msft,aapl", 1))
	assert.Empty(t, parseSymbols("", 5))

	r := httptest.NewRequest(http.MethodGet, "/x?refresh=1", nil)
	assert.True(t, wantsRefresh(r))
	r = httptest.NewRequest(http.MethodGet, "/x?"+url.Values{"refresh": {"0"}}.Encode(), nil)
	assert.False(t, wantsRefresh(r))
}
