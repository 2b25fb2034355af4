// Package pricing implements the pricing bounded context: USD token prices
// derived from AMM reserves and reference feeds.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum"

	"github.com/fd1az/chainkit/business/pricing/app"
	pricingDI "github.com/fd1az/chainkit/business/pricing/di"
	"github.com/fd1az/chainkit/business/pricing/infra/binance"
	"github.com/fd1az/chainkit/business/pricing/infra/chainlink"
	"github.com/fd1az/chainkit/business/pricing/infra/uniswap"
	"github.com/fd1az/chainkit/internal/asset"
	"github.com/fd1az/chainkit/internal/chain"
	"github.com/fd1az/chainkit/internal/config"
	"github.com/fd1az/chainkit/internal/di"
	"github.com/fd1az/chainkit/internal/logger"
	"github.com/fd1az/chainkit/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

func callers(sr di.ServiceRegistry) app.CallerProvider {
	pool := sr.Get(monolith.ChainPoolService).(*chain.Pool)
	return app.CallerFunc(func(ctx context.Context, network string) (ethereum.ContractCaller, error) {
		client, err := pool.Client(ctx, network)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.PoolReader, func(sr di.ServiceRegistry) app.PoolReader {
		log := sr.Get(monolith.LoggerService).(logger.LoggerInterface)
		registry := sr.Get(monolith.AssetRegistryService).(*asset.Registry)

		provider, err := uniswap.NewProvider(callers(sr), registry, log)
		if err != nil {
			panic("failed to create uniswap provider: " + err.Error())
		}
		return provider
	})

	// Chainlink first, Binance only when the CEX fallback is enabled
	di.RegisterToken(c, pricingDI.ReferenceFeeds, func(sr di.ServiceRegistry) []app.ReferenceFeed {
		cfg := sr.Get(monolith.ConfigService).(*config.Config)
		log := sr.Get(monolith.LoggerService).(logger.LoggerInterface)
		registry := sr.Get(monolith.AssetRegistryService).(*asset.Registry)

		feed, err := chainlink.NewFeed(callers(sr), registry, cfg.Pricing.FeedMaxAge, log)
		if err != nil {
			panic("failed to create chainlink feed: " + err.Error())
		}
		feeds := []app.ReferenceFeed{feed}

		if cfg.Pricing.CEXFallback {
			cex, err := binance.NewFeed(binance.Config{BaseURL: cfg.Pricing.BinanceURL}, registry, log)
			if err != nil {
				panic("failed to create binance feed: " + err.Error())
			}
			feeds = append(feeds, cex)
		}
		return feeds
	})

	di.RegisterToken(c, pricingDI.PriceOracle, func(sr di.ServiceRegistry) *app.PriceOracle {
		cfg := sr.Get(monolith.ConfigService).(*config.Config)
		log := sr.Get(monolith.LoggerService).(logger.LoggerInterface)

		networks, err := app.NetworksFromConfig(cfg.Networks)
		if err != nil {
			panic("invalid pricing networks: " + err.Error())
		}

		oracle, err := app.NewPriceOracle(app.OracleConfig{
			CacheTTL:     cfg.Pricing.CacheTTL,
			SingleFlight: cfg.Pricing.SingleFlight,
		}, networks, pricingDI.GetPoolReader(sr), pricingDI.GetReferenceFeeds(sr), log)
		if err != nil {
			panic("failed to create price oracle: " + err.Error())
		}
		return oracle
	})

	return nil
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	oracle := pricingDI.GetPriceOracle(mono.Services())

	feeds := pricingDI.GetReferenceFeeds(mono.Services())
	names := make([]string, len(feeds))
	for i, f := range feeds {
		names[i] = f.Name()
	}

	mono.Logger().Info(ctx, "pricing module started",
		"networks", oracle.Networks(),
		"feeds", names)
	return nil
}
