package models

import "lumotrade/backend-go/internal/cachestore"

// Envelope is the body of every cached route.
type Envelope[T any] struct {
	Data  T               `json:"data"`
	Cache cachestore.Meta `json:"cache"`
}

func Wrap[T any](r cachestore.Result[T]) Envelope[T] {
	return Envelope[T]{Data: r.Data, Cache: r.Cache}
}

type Breadth struct {
	Date         string  `json:"date"`
	Advancers    int     `json:"advancers"`
	Decliners    int     `json:"decliners"`
	Unchanged    int     `json:"unchanged"`
	Total        int     `json:"total"`
	ADRatio      float64 `json:"ad_ratio"`
	UpVolume     float64 `json:"up_volume"`
	DownVolume   float64 `json:"down_volume"`
	PctAdvancers float64 `json:"pct_advancers"`
	TsISO        string  `json:"tsISO"`
}

type Quote struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	Change     float64 `json:"change"`
	ChangePct  float64 `json:"change_pct"`
	Volume     float64 `json:"volume"`
	DayHigh    float64 `json:"day_high"`
	DayLow     float64 `json:"day_low"`
	PrevClose  float64 `json:"prev_close"`
	UpdatedISO string  `json:"updated_iso"`
}

type QuotesResponse struct {
	TsISO  string           `json:"tsISO"`
	Quotes map[string]Quote `json:"quotes"`
}

type NewsItem struct {
	ID          int64   `json:"id"`
	Headline    string  `json:"headline"`
	Summary     string  `json:"summary"`
	Source      string  `json:"source"`
	URL         string  `json:"url"`
	PublishedAt string  `json:"published_at"`
	Sentiment   float64 `json:"sentiment"`
	Label       string  `json:"label"`
}

type NewsSentiment struct {
	Score    float64 `json:"score"`
	Label    string  `json:"label"`
	Bullish  int     `json:"bullish"`
	Bearish  int     `json:"bearish"`
	Neutral  int     `json:"neutral"`
	Articles int     `json:"articles"`
}

type NewsResponse struct {
	Symbol    string        `json:"symbol"`
	TsISO     string        `json:"tsISO"`
	Items     []NewsItem    `json:"items"`
	Aggregate NewsSentiment `json:"aggregate"`
}

// NewsPage is a filtered, paginated view over a cached NewsResponse.
type NewsPage struct {
	NewsResponse
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// Bar is one daily OHLCV bar.
type Bar struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	VWAP   float64 `json:"vwap,omitempty"`
}

type Pivots struct {
	P  float64 `json:"p"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
}

type Level struct {
	Price   float64 `json:"price"`
	Touches int     `json:"touches"`
	Kind    string  `json:"kind"`
}

type Levels struct {
	Symbol     string  `json:"symbol"`
	AsOf       string  `json:"as_of"`
	LastClose  float64 `json:"last_close"`
	Pivots     Pivots  `json:"pivots"`
	Support    []Level `json:"support"`
	Resistance []Level `json:"resistance"`
	Bars       int     `json:"bars"`
}

type EarningsEvent struct {
	Date        string   `json:"date"`
	Hour        string   `json:"hour,omitempty"`
	EPSEstimate *float64 `json:"eps_estimate"`
	Quarter     int      `json:"quarter,omitempty"`
	Year        int      `json:"year,omitempty"`
}

type CatalystRisk struct {
	Symbol       string         `json:"symbol"`
	AsOf         string         `json:"as_of"`
	Risk         string         `json:"risk"`
	DaysToEvent  *int           `json:"days_to_event"`
	NextEarnings *EarningsEvent `json:"next_earnings"`
	Reason       string         `json:"reason"`
}

type HealthResponse struct {
	Ok      bool              `json:"ok"`
	TsISO   string            `json:"tsISO"`
	Service string            `json:"service"`
	Version string            `json:"version,omitempty"`
	Cache   cachestore.Status `json:"cache"`
	Env     map[string]bool   `json:"env"`
}
