package asset

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Price is a rate of base in units of quote observed at a point in time.
type Price struct {
	Base      *Asset
	Quote     *Asset
	Rate      decimal.Decimal
	UpdatedAt time.Time
}

// IsStale reports whether the price is older than maxAge at now. A zero maxAge never goes stale.
func (p Price) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(p.UpdatedAt) > maxAge
}

func (p Price) String() string {
	return fmt.Sprintf("%s %s/%s", p.Rate.String(), p.Base, p.Quote)
}
