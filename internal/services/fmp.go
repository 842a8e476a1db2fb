package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lumotrade/backend-go/internal/config"
	"lumotrade/backend-go/internal/models"
)

type FMPClient struct {
	http   *httpJSON
	apiKey string
}

func NewFMPClient(cfg config.Config, log zerolog.Logger) *FMPClient {
	return &FMPClient{
		http: newHTTPJSON(httpOptions{
			Service:   "fmp",
			BaseURL:   cfg.FMPBaseURL,
			Timeout:   cfg.RequestTimeout,
			FailLimit: cfg.CircuitFailLimit,
			Cooldown:  cfg.CircuitCooldown,
			Log:       log,
		}),
		apiKey: cfg.FMPAPIKey,
	}
}

type fmpQuote struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	Change            float64 `json:"change"`
	ChangesPercentage float64 `json:"changesPercentage"`
	Volume            float64 `json:"volume"`
	DayHigh           float64 `json:"dayHigh"`
	DayLow            float64 `json:"dayLow"`
	PreviousClose     float64 `json:"previousClose"`
	Timestamp         int64   `json:"timestamp"`
}

// Quotes fetches the latest quote for each symbol in one request. Symbols
// the vendor does not know are absent from the result.
func (c *FMPClient) Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	if len(symbols) == 0 {
		return map[string]models.Quote{}, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("fmp: %w", ErrNotConfigured)
	}
	var rows []fmpQuote
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	if err := c.http.getJSON(ctx, "/api/v3/quote/"+url.PathEscape(strings.Join(symbols, ",")), q, &rows); err != nil {
		return nil, err
	}

	out := make(map[string]models.Quote, len(rows))
	for _, r := range rows {
		updated := ""
		if r.Timestamp > 0 {
			updated = time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339)
		}
		out[r.Symbol] = models.Quote{
			Symbol:     r.Symbol,
			Price:      r.Price,
			Change:     r.Change,
			ChangePct:  r.ChangesPercentage,
			Volume:     r.Volume,
			DayHigh:    r.DayHigh,
			DayLow:     r.DayLow,
			PrevClose:  r.PreviousClose,
			UpdatedISO: updated,
		}
	}
	return out, nil
}
