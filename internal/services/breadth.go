package services

import (
	"math"

	"lumotrade/backend-go/internal/models"
)

// ComputeBreadth compares each ticker's close in session with its close in
// prior. Tickers missing from prior are ignored.
func ComputeBreadth(date string, session, prior []GroupedBar) models.Breadth {
	prevClose := make(map[string]float64, len(prior))
	for _, b := range prior {
		if b.Close > 0 {
			prevClose[b.Ticker] = b.Close
		}
	}

	out := models.Breadth{Date: date}
	for _, b := range session {
		prev, ok := prevClose[b.Ticker]
		if !ok || b.Close <= 0 {
			continue
		}
		out.Total++
		switch {
		case b.Close > prev:
			out.Advancers++
			out.UpVolume += b.Volume
		case b.Close < prev:
			out.Decliners++
			out.DownVolume += b.Volume
		default:
			out.Unchanged++
		}
	}

	if out.Decliners > 0 {
		out.ADRatio = round2(float64(out.Advancers) / float64(out.Decliners))
	} else if out.Advancers > 0 {
		out.ADRatio = float64(out.Advancers)
	}
	if out.Total > 0 {
		out.PctAdvancers = round2(100 * float64(out.Advancers) / float64(out.Total))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
