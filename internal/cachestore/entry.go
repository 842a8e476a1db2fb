package cachestore

import (
	"encoding/json"
	"time"
)

// Entry is one persisted (cache key, scope) slot.
type Entry struct {
	CacheKey string          `json:"cacheKey"`
	Scope    string          `json:"scope"`
	Payload  json.RawMessage `json:"payload"`
	// ExpiresAt is epoch millis; nil means the entry never expires by time.
	ExpiresAt *int64    `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ExpiredAt reports whether the entry is past its expiry at now.
// The entry is still valid at exactly expiresAt.
func (e *Entry) ExpiredAt(now time.Time) bool {
	if e.ExpiresAt == nil {
		return false
	}
	return now.UnixMilli() > *e.ExpiresAt
}

func expiresIn(now time.Time, ttlSeconds int) *int64 {
	ms := now.Add(time.Duration(ttlSeconds) * time.Second).UnixMilli()
	return &ms
}
