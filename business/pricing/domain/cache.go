package domain

import (
	"strings"
	"time"
)

// DefaultCacheTTL is how long a derived price is served from cache.
const DefaultCacheTTL = 5 * time.Minute

// CacheKey identifies a cached price: lowercase token address plus network.
type CacheKey struct {
	Token   string
	Network string
}

// NewCacheKey normalizes token and network into a key.
func NewCacheKey(token, network string) CacheKey {
	return CacheKey{
		Token:   strings.ToLower(strings.TrimSpace(token)),
		Network: strings.ToLower(strings.TrimSpace(network)),
	}
}

func (k CacheKey) String() string {
	return k.Network + ":" + k.Token
}

// CacheEntry is a derived price and when it was derived.
type CacheEntry struct {
	Price     string
	Timestamp time.Time
}

// IsValid reports whether the entry is younger than ttl at now.
func (e CacheEntry) IsValid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) < ttl
}
