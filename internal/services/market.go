package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lumotrade/backend-go/internal/cachestore"
	"lumotrade/backend-go/internal/config"
	"lumotrade/backend-go/internal/models"
)

var ErrInvalidSymbol = errors.New("invalid symbol")

const (
	breadthKey        = "market:breadth:v1"
	asOfSuffix        = ":asof"
	sessionLookback   = 7
	newsLookback      = 7 * 24 * time.Hour
	maxNewsItems      = 50
	levelsLookback    = 180 * 24 * time.Hour
	earningsHorizon   = catalystHorizonDays * 24 * time.Hour
	dateLayout        = "2006-01-02"
	maxSymbolLength   = 10
	quotesKeyHashSize = 6
)

type GroupedDailySource interface {
	GroupedDaily(ctx context.Context, date string) ([]GroupedBar, error)
}

type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)
}

type NewsSource interface {
	CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsItem, error)
}

type EarningsSource interface {
	Earnings(ctx context.Context, symbol, from, to string) ([]models.EarningsEvent, error)
}

type BarsSource interface {
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
}

// Sources bundles the upstreams behind MarketService.
type Sources struct {
	Grouped  GroupedDailySource
	Quotes   QuoteSource
	News     NewsSource
	Earnings EarningsSource
	Bars     BarsSource
}

// NewSources wires the production vendor clients.
func NewSources(cfg config.Config, log zerolog.Logger) Sources {
	fh := NewFinnhubClient(cfg, log)
	return Sources{
		Grouped:  NewPolygonClient(cfg, log),
		Quotes:   NewFMPClient(cfg, log),
		News:     fh,
		Earnings: fh,
		Bars:     NewAlpacaBars(cfg),
	}
}

// MarketService computes every dashboard feed through the response cache.
type MarketService struct {
	cfg   config.Config
	store *cachestore.Store
	src   Sources
	now   func() time.Time
	log   zerolog.Logger
}

type MarketOption func(*MarketService)

func WithNow(now func() time.Time) MarketOption {
	return func(s *MarketService) { s.now = now }
}

func NewMarketService(cfg config.Config, store *cachestore.Store, src Sources, log zerolog.Logger, opts ...MarketOption) *MarketService {
	s := &MarketService{cfg: cfg, store: store, src: src, now: time.Now, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MarketService) Store() *cachestore.Store { return s.store }

// Today is the current calendar day in the market timezone.
func (s *MarketService) Today() string {
	return cachestore.DateIn(s.now(), s.cfg.MarketTimezone)
}

// resolveDate returns the market day for a request and the cache key to use
// for it. A past day is stored under its own key so its daily purge never
// evicts today's entry. Future days are rejected.
func (s *MarketService) resolveDate(key, date string) (string, string, error) {
	today := s.Today()
	if date == "" || date == today {
		return today, key, nil
	}
	if !cachestore.ValidDate(date) {
		return "", "", fmt.Errorf("%w: %q", cachestore.ErrInvalidDate, date)
	}
	if date > today {
		return "", "", fmt.Errorf("%w: %q is after %s", cachestore.ErrInvalidDate, date, today)
	}
	return date, key + asOfSuffix, nil
}

// Breadth returns advance/decline statistics for the session before date.
func (s *MarketService) Breadth(ctx context.Context, date string, force bool) (cachestore.Result[models.Breadth], error) {
	date, key, err := s.resolveDate(breadthKey, date)
	if err != nil {
		return cachestore.Result[models.Breadth]{}, err
	}
	return cachestore.GetOrComputeDaily(ctx, s.store, cachestore.DailyParams[models.Breadth]{
		Key:          key,
		DateET:       date,
		ForceRefresh: force,
		Compute: func(ctx context.Context) (models.Breadth, error) {
			return s.computeBreadth(ctx, date)
		},
	})
}

func (s *MarketService) computeBreadth(ctx context.Context, date string) (models.Breadth, error) {
	day, _ := time.Parse(dateLayout, date)
	sessionDate, session, err := s.sessionBefore(ctx, day)
	if err != nil {
		return models.Breadth{}, err
	}
	sd, _ := time.Parse(dateLayout, sessionDate)
	_, prior, err := s.sessionBefore(ctx, sd)
	if err != nil {
		return models.Breadth{}, err
	}
	out := ComputeBreadth(sessionDate, session, prior)
	out.TsISO = s.now().UTC().Format(time.RFC3339)
	s.log.Debug().Str("session", sessionDate).Int("tickers", out.Total).Msg("breadth computed")
	return out, nil
}

// sessionBefore walks back from day to the closest earlier weekday with data.
func (s *MarketService) sessionBefore(ctx context.Context, day time.Time) (string, []GroupedBar, error) {
	for i := 1; i <= sessionLookback; i++ {
		d := day.AddDate(0, 0, -i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		date := d.Format(dateLayout)
		bars, err := s.src.Grouped.GroupedDaily(ctx, date)
		if err != nil {
			return "", nil, fmt.Errorf("grouped daily %s: %w", date, err)
		}
		if len(bars) > 0 {
			return date, bars, nil
		}
	}
	return "", nil, fmt.Errorf("no trading session in the %d days before %s", sessionLookback, day.Format(dateLayout))
}

// NormalizeSymbols upper-cases, dedupes and sorts symbols, dropping invalid ones.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if !ValidSymbol(sym) {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func ValidSymbol(sym string) bool {
	if sym == "" || len(sym) > maxSymbolLength {
		return false
	}
	for _, r := range sym {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

func quotesCacheKey(symbols []string) string {
	sum := sha1.Sum([]byte(strings.Join(symbols, ",")))
	return "quotes:v1:" + hex.EncodeToString(sum[:quotesKeyHashSize])
}

// Quotes returns the latest quotes for symbols, which must already be
// normalized.
func (s *MarketService) Quotes(ctx context.Context, symbols []string, force bool) (cachestore.Result[models.QuotesResponse], error) {
	if len(symbols) == 0 {
		return cachestore.Result[models.QuotesResponse]{}, fmt.Errorf("%w: no symbols", ErrInvalidSymbol)
	}
	return cachestore.GetOrComputeTTL(ctx, s.store, cachestore.TTLParams[models.QuotesResponse]{
		Key:          quotesCacheKey(symbols),
		TTLSeconds:   s.cfg.CacheTTLQuotes,
		ForceRefresh: force,
		Compute: func(ctx context.Context) (models.QuotesResponse, error) {
			quotes, err := s.src.Quotes.Quotes(ctx, symbols)
			if err != nil {
				return models.QuotesResponse{}, err
			}
			return models.QuotesResponse{TsISO: s.now().UTC().Format(time.RFC3339), Quotes: quotes}, nil
		},
	})
}

// News returns the last week of company news for symbol with sentiment.
func (s *MarketService) News(ctx context.Context, symbol string, force bool) (cachestore.Result[models.NewsResponse], error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !ValidSymbol(symbol) {
		return cachestore.Result[models.NewsResponse]{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return cachestore.GetOrComputeTTL(ctx, s.store, cachestore.TTLParams[models.NewsResponse]{
		Key:          "news:v1:" + symbol,
		TTLSeconds:   s.cfg.CacheTTLNews,
		ForceRefresh: force,
		Compute: func(ctx context.Context) (models.NewsResponse, error) {
			now := s.now().UTC()
			items, err := s.src.News.CompanyNews(ctx, symbol, now.Add(-newsLookback), now)
			if err != nil {
				return models.NewsResponse{}, err
			}
			if len(items) > maxNewsItems {
				items = items[:maxNewsItems]
			}
			agg := ScoreNews(items)
			return models.NewsResponse{Symbol: symbol, TsISO: now.Format(time.RFC3339), Items: items, Aggregate: agg}, nil
		},
	})
}

// Levels returns pivots and swing support/resistance from sessions before date.
func (s *MarketService) Levels(ctx context.Context, symbol, date string, force bool) (cachestore.Result[models.Levels], error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !ValidSymbol(symbol) {
		return cachestore.Result[models.Levels]{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	date, key, err := s.resolveDate("levels:" + symbol + ":v1", date)
	if err != nil {
		return cachestore.Result[models.Levels]{}, err
	}
	return cachestore.GetOrComputeDaily(ctx, s.store, cachestore.DailyParams[models.Levels]{
		Key:          key,
		DateET:       date,
		ForceRefresh: force,
		Compute: func(ctx context.Context) (models.Levels, error) {
			end, _ := time.Parse(dateLayout, date)
			bars, err := s.src.Bars.DailyBars(ctx, symbol, end.Add(-levelsLookback), end)
			if err != nil {
				return models.Levels{}, err
			}
			return ComputeLevels(symbol, date, bars), nil
		},
	})
}

// Catalysts rates event risk from the earnings calendar starting at date.
func (s *MarketService) Catalysts(ctx context.Context, symbol, date string, force bool) (cachestore.Result[models.CatalystRisk], error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !ValidSymbol(symbol) {
		return cachestore.Result[models.CatalystRisk]{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	date, key, err := s.resolveDate("catalysts:" + symbol + ":v1", date)
	if err != nil {
		return cachestore.Result[models.CatalystRisk]{}, err
	}
	return cachestore.GetOrComputeDaily(ctx, s.store, cachestore.DailyParams[models.CatalystRisk]{
		Key:          key,
		DateET:       date,
		ForceRefresh: force,
		Compute: func(ctx context.Context) (models.CatalystRisk, error) {
			from, _ := time.Parse(dateLayout, date)
			to := from.Add(earningsHorizon).Format(dateLayout)
			events, err := s.src.Earnings.Earnings(ctx, symbol, date, to)
			if err != nil {
				return models.CatalystRisk{}, err
			}
			return AssessCatalysts(symbol, date, events), nil
		},
	})
}
