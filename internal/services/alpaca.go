package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"lumotrade/backend-go/internal/config"
	"lumotrade/backend-go/internal/models"
)

// AlpacaBars reads daily bars from the Alpaca market-data API.
type AlpacaBars struct {
	client     *marketdata.Client
	configured bool
	cb         *circuitBreaker
}

func NewAlpacaBars(cfg config.Config) *AlpacaBars {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.AlpacaKeyID,
		APISecret: cfg.AlpacaSecret,
	}
	if cfg.AlpacaDataURL != "" {
		opts.BaseURL = cfg.AlpacaDataURL
	}
	return &AlpacaBars{
		client:     marketdata.NewClient(opts),
		configured: cfg.AlpacaKeyID != "" && cfg.AlpacaSecret != "",
		cb:         newCircuitBreaker(cfg.CircuitFailLimit, cfg.CircuitCooldown),
	}
}

// DailyBars returns symbol's daily bars in [start, end], oldest first.
func (a *AlpacaBars) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if !a.configured {
		return nil, fmt.Errorf("alpaca: %w", ErrNotConfigured)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !a.cb.allow() {
		return nil, fmt.Errorf("alpaca: %w", ErrCircuitOpen)
	}

	type result struct {
		bars []marketdata.Bar
		err  error
	}
	// The SDK call takes no context, so abandon it when ctx ends.
	done := make(chan result, 1)
	go func() {
		bars, err := a.client.GetBars(strings.ToUpper(symbol), marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "iex",
		})
		done <- result{bars: bars, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		a.cb.fail()
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		a.cb.fail()
		return nil, fmt.Errorf("alpaca GetBars %s: %w", symbol, res.err)
	}
	a.cb.success()

	out := make([]models.Bar, 0, len(res.bars))
	for _, b := range res.bars {
		out = append(out, models.Bar{
			Time:   b.Timestamp.UTC().Format(time.RFC3339),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
			VWAP:   b.VWAP,
		})
	}
	return out, nil
}
