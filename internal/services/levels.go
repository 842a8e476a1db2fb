package services

import (
	"sort"

	"lumotrade/backend-go/internal/models"
)

const (
	swingWindow     = 2
	levelTolerance  = 0.015
	maxLevelsOnSide = 5
)

// ClassicPivots uses the high, low and close of one session.
func ClassicPivots(b models.Bar) models.Pivots {
	p := (b.High + b.Low + b.Close) / 3
	rng := b.High - b.Low
	return models.Pivots{
		P:  round2(p),
		R1: round2(2*p - b.Low),
		R2: round2(p + rng),
		S1: round2(2*p - b.High),
		S2: round2(p - rng),
	}
}

// swingPoints returns the highs and lows that exceed swingWindow bars on
// either side.
func swingPoints(bars []models.Bar) (highs, lows []float64) {
	for i := swingWindow; i < len(bars)-swingWindow; i++ {
		isHigh, isLow := true, true
		for j := i - swingWindow; j <= i+swingWindow; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, bars[i].High)
		}
		if isLow {
			lows = append(lows, bars[i].Low)
		}
	}
	return highs, lows
}

type cluster struct {
	sum   float64
	n     int
	first float64
}

// clusterPrices groups prices lying within levelTolerance of the first price
// in each group and returns one level per group at the group mean.
func clusterPrices(prices []float64, kind string) []models.Level {
	if len(prices) == 0 {
		return nil
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	var groups []cluster
	for _, p := range sorted {
		if n := len(groups); n > 0 && p <= groups[n-1].first*(1+levelTolerance) {
			groups[n-1].sum += p
			groups[n-1].n++
			continue
		}
		groups = append(groups, cluster{sum: p, n: 1, first: p})
	}
	out := make([]models.Level, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.Level{Price: round2(g.sum / float64(g.n)), Touches: g.n, Kind: kind})
	}
	return out
}

// ComputeLevels derives pivots from the last bar and support/resistance from
// swing clusters relative to the last close. bars must be oldest first.
func ComputeLevels(symbol, asOf string, bars []models.Bar) models.Levels {
	out := models.Levels{Symbol: symbol, AsOf: asOf, Bars: len(bars), Support: []models.Level{}, Resistance: []models.Level{}}
	if len(bars) == 0 {
		return out
	}
	last := bars[len(bars)-1]
	out.LastClose = last.Close
	out.Pivots = ClassicPivots(last)

	highs, lows := swingPoints(bars)
	levels := append(clusterPrices(highs, "swing_high"), clusterPrices(lows, "swing_low")...)
	for _, l := range levels {
		if l.Price < last.Close {
			out.Support = append(out.Support, l)
		} else {
			out.Resistance = append(out.Resistance, l)
		}
	}
	// Nearest level first on both sides.
	sort.Slice(out.Support, func(i, j int) bool { return out.Support[i].Price > out.Support[j].Price })
	sort.Slice(out.Resistance, func(i, j int) bool { return out.Resistance[i].Price < out.Resistance[j].Price })
	if len(out.Support) > maxLevelsOnSide {
		out.Support = out.Support[:maxLevelsOnSide]
	}
	if len(out.Resistance) > maxLevelsOnSide {
		out.Resistance = out.Resistance[:maxLevelsOnSide]
	}
	return out
}
