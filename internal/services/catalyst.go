package services

import (
	"fmt"
	"sort"
	"time"

	"lumotrade/backend-go/internal/models"
)

const (
	RiskHigh     = "high"
	RiskElevated = "elevated"
	RiskLow      = "low"

	catalystHorizonDays = 30
)

// AssessCatalysts rates the next earnings event on or after asOf.
func AssessCatalysts(symbol, asOf string, events []models.EarningsEvent) models.CatalystRisk {
	out := models.CatalystRisk{Symbol: symbol, AsOf: asOf, Risk: RiskLow}
	day, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		out.Reason = "invalid as-of date"
		return out
	}

	upcoming := make([]models.EarningsEvent, 0, len(events))
	for _, e := range events {
		if e.Date >= asOf {
			upcoming = append(upcoming, e)
		}
	}
	if len(upcoming) == 0 {
		out.Reason = fmt.Sprintf("no earnings in the next %d days", catalystHorizonDays)
		return out
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].Date < upcoming[j].Date })
	next := upcoming[0]

	when, err := time.Parse("2006-01-02", next.Date)
	if err != nil {
		out.Reason = "unparseable earnings date"
		return out
	}
	days := int(when.Sub(day).Hours() / 24)
	out.NextEarnings = &next
	out.DaysToEvent = &days
	switch {
	case days <= 2:
		out.Risk = RiskHigh
	case days <= 7:
		out.Risk = RiskElevated
	}
	out.Reason = fmt.Sprintf("earnings on %s (%d days)", next.Date, days)
	return out
}
