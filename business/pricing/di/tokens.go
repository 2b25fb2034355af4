// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/chainkit/business/pricing/app"
	"github.com/fd1az/chainkit/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PriceOracle = di.NewToken[*app.PriceOracle]("pricing.PriceOracle")
)

// Private dependency tokens - internal to pricing module
var (
	PoolReader     = di.NewToken[app.PoolReader]("pricing:poolReader")
	ReferenceFeeds = di.NewToken[[]app.ReferenceFeed]("pricing:referenceFeeds")
)

// Helper functions for type-safe access
func GetPriceOracle(c di.ServiceRegistry) *app.PriceOracle {
	return di.GetToken(c, PriceOracle)
}

func GetPoolReader(c di.ServiceRegistry) app.PoolReader {
	return di.GetToken(c, PoolReader)
}

func GetReferenceFeeds(c di.ServiceRegistry) []app.ReferenceFeed {
	return di.GetToken(c, ReferenceFeeds)
}
