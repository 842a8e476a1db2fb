package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"lumotrade/backend-go/internal/config"
)

// GroupedBar is one ticker's session from Polygon's grouped daily endpoint.
type GroupedBar struct {
	Ticker string  `json:"T"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	VWAP   float64 `json:"vw"`
}

type PolygonClient struct {
	http   *httpJSON
	apiKey string
}

func NewPolygonClient(cfg config.Config, log zerolog.Logger) *PolygonClient {
	return &PolygonClient{
		http: newHTTPJSON(httpOptions{
			Service:   "polygon",
			BaseURL:   cfg.PolygonBaseURL,
			Timeout:   cfg.RequestTimeout,
			FailLimit: cfg.CircuitFailLimit,
			Cooldown:  cfg.CircuitCooldown,
			Log:       log,
		}),
		apiKey: cfg.PolygonAPIKey,
	}
}

// GroupedDaily returns every US stock's bar for date (YYYY-MM-DD). Holidays
// and weekends come back empty.
func (c *PolygonClient) GroupedDaily(ctx context.Context, date string) ([]GroupedBar, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("polygon: %w", ErrNotConfigured)
	}
	var payload struct {
		Status  string       `json:"status"`
		Results []GroupedBar `json:"results"`
	}
	q := url.Values{}
	q.Set("adjusted", "true")
	q.Set("apiKey", c.apiKey)
	if err := c.http.getJSON(ctx, "/v2/aggs/grouped/locale/us/market/stocks/"+url.PathEscape(date), q, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}
