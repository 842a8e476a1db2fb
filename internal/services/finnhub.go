package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"lumotrade/backend-go/internal/config"
	"lumotrade/backend-go/internal/models"
)

type FinnhubClient struct {
	http   *httpJSON
	apiKey string
}

func NewFinnhubClient(cfg config.Config, log zerolog.Logger) *FinnhubClient {
	return &FinnhubClient{
		http: newHTTPJSON(httpOptions{
			Service:   "finnhub",
			BaseURL:   cfg.FinnhubBaseURL,
			Timeout:   cfg.RequestTimeout,
			FailLimit: cfg.CircuitFailLimit,
			Cooldown:  cfg.CircuitCooldown,
			Log:       log,
		}),
		apiKey: cfg.FinnhubAPIKey,
	}
}

type finnhubArticle struct {
	ID       int64  `json:"id"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// CompanyNews returns articles about symbol published between from and to,
// newest first as the vendor sends them. Sentiment is left unset.
func (c *FinnhubClient) CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsItem, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("finnhub: %w", ErrNotConfigured)
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	q.Set("token", c.apiKey)

	var rows []finnhubArticle
	if err := c.http.getJSON(ctx, "/api/v1/company-news", q, &rows); err != nil {
		return nil, err
	}
	out := make([]models.NewsItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.NewsItem{
			ID:          r.ID,
			Headline:    r.Headline,
			Summary:     r.Summary,
			Source:      r.Source,
			URL:         r.URL,
			PublishedAt: time.Unix(r.Datetime, 0).UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// Earnings returns the earnings calendar for symbol in [from, to].
func (c *FinnhubClient) Earnings(ctx context.Context, symbol string, from, to string) ([]models.EarningsEvent, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("finnhub: %w", ErrNotConfigured)
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", from)
	q.Set("to", to)
	q.Set("token", c.apiKey)

	var payload struct {
		EarningsCalendar []struct {
			Date        string   `json:"date"`
			Hour        string   `json:"hour"`
			EPSEstimate *float64 `json:"epsEstimate"`
			Quarter     int      `json:"quarter"`
			Year        int      `json:"year"`
			Symbol      string   `json:"symbol"`
		} `json:"earningsCalendar"`
	}
	if err := c.http.getJSON(ctx, "/api/v1/calendar/earnings", q, &payload); err != nil {
		return nil, err
	}
	out := make([]models.EarningsEvent, 0, len(payload.EarningsCalendar))
	for _, e := range payload.EarningsCalendar {
		out = append(out, models.EarningsEvent{
			Date:        e.Date,
			Hour:        e.Hour,
			EPSEstimate: e.EPSEstimate,
			Quarter:     e.Quarter,
			Year:        e.Year,
		})
	}
	return out, nil
}
