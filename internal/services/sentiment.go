package services

import (
	"strings"
	"unicode"

	"lumotrade/backend-go/internal/models"
)

const sentimentThreshold = 0.15

var bullishWords = map[string]struct{}{
	"beat": {}, "beats": {}, "surge": {}, "surges": {}, "soar": {}, "soars": {}, "rally": {},
	"rallies": {}, "gain": {}, "gains": {}, "jump": {}, "jumps": {}, "record": {}, "upgrade": {},
	"upgraded": {}, "outperform": {}, "growth": {}, "strong": {}, "bullish": {}, "raises": {},
	"raised": {}, "buyback": {}, "profit": {}, "tops": {}, "rebound": {}, "approval": {},
}

var bearishWords = map[string]struct{}{
	"miss": {}, "misses": {}, "plunge": {}, "plunges": {}, "fall": {}, "falls": {}, "drop": {},
	"drops": {}, "slump": {}, "downgrade": {}, "downgraded": {}, "underperform": {}, "weak": {},
	"bearish": {}, "cuts": {}, "cut": {}, "lawsuit": {}, "probe": {}, "recall": {}, "loss": {},
	"losses": {}, "layoffs": {}, "warning": {}, "decline": {}, "declines": {}, "tumble": {},
}

// ScoreText returns a lexicon score in [-1, 1]: (bullish-bearish)/(bullish+bearish)
// over the words of text, or 0 when no word matches.
func ScoreText(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var pos, neg int
	for _, w := range words {
		if _, ok := bullishWords[w]; ok {
			pos++
		}
		if _, ok := bearishWords[w]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return round2(float64(pos-neg) / float64(pos+neg))
}

func SentimentLabel(score float64) string {
	switch {
	case score >= sentimentThreshold:
		return "bullish"
	case score <= -sentimentThreshold:
		return "bearish"
	default:
		return "neutral"
	}
}

// ScoreNews fills each item's sentiment and returns the aggregate.
func ScoreNews(items []models.NewsItem) models.NewsSentiment {
	agg := models.NewsSentiment{Articles: len(items)}
	total := 0.0
	for i := range items {
		s := ScoreText(items[i].Headline + " " + items[i].Summary)
		items[i].Sentiment = s
		items[i].Label = SentimentLabel(s)
		total += s
		switch items[i].Label {
		case "bullish":
			agg.Bullish++
		case "bearish":
			agg.Bearish++
		default:
			agg.Neutral++
		}
	}
	if len(items) > 0 {
		agg.Score = round2(total / float64(len(items)))
	}
	agg.Label = SentimentLabel(agg.Score)
	return agg
}
