package cachestore

import (
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // containers often ship without zoneinfo.
)

const (
	// DailyPrefix starts every daily scope.
	DailyPrefix = "daily:"
	// TTLScope is the single slot used by TTL caching.
	TTLScope = "ttl"

	dateLayout = "2006-01-02"
	// DefaultTimezone is the market calendar used for daily scopes.
	DefaultTimezone = "America/New_York"
)

// DailyScope returns the scope for a calendar day.
func DailyScope(date string) string {
	return DailyPrefix + date
}

// IsDailyScope reports whether scope belongs to the daily family.
func IsDailyScope(scope string) bool {
	return strings.HasPrefix(scope, DailyPrefix)
}

// ValidDate reports whether date is a real YYYY-MM-DD calendar day.
func ValidDate(date string) bool {
	if len(date) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

var (
	etOnce sync.Once
	etLoc  *time.Location
)

func eastern() *time.Location {
	etOnce.Do(func() {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.FixedZone("EST", -5*60*60)
		}
		etLoc = loc
	})
	return etLoc
}

// DateET formats t as the US Eastern calendar day.
func DateET(t time.Time) string {
	return t.In(eastern()).Format(dateLayout)
}

// DateIn formats t as a calendar day in the named IANA zone, falling back to
// US Eastern when the zone cannot be loaded.
func DateIn(t time.Time, tz string) string {
	if tz == "" || tz == DefaultTimezone {
		return DateET(t)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DateET(t)
	}
	return t.In(loc).Format(dateLayout)
}
