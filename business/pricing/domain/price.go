package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source says where a returned price came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceAMM   Source = "amm"
	SourceFeed  Source = "feed"
)

// TokenPrice is a token's USD price on a network.
type TokenPrice struct {
	Token    string
	Network  string
	PriceUSD decimal.Decimal
	Source   Source
	// Timestamp is when the price was derived, also for cache hits.
	Timestamp time.Time
}
