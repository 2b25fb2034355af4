// Package watch implements the long-running watch service: it follows
// contract events and refreshes token prices and gas on every new head.
package watch

import (
	"context"
	"fmt"
	"os"

	blockchainDI "github.com/fd1az/chainkit/business/blockchain/di"
	contractDI "github.com/fd1az/chainkit/business/contract/di"
	contractDomain "github.com/fd1az/chainkit/business/contract/domain"
	pricingDI "github.com/fd1az/chainkit/business/pricing/di"
	"github.com/fd1az/chainkit/business/watch/app"
	watchDI "github.com/fd1az/chainkit/business/watch/di"
	"github.com/fd1az/chainkit/business/watch/domain"
	"github.com/fd1az/chainkit/business/watch/infra"
	"github.com/fd1az/chainkit/internal/config"
	"github.com/fd1az/chainkit/internal/di"
	"github.com/fd1az/chainkit/internal/logger"
	"github.com/fd1az/chainkit/internal/monolith"
)

// Module implements the watch bounded context.
type Module struct{}

// RegisterServices registers all watch services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, watchDI.Binder, func(sr di.ServiceRegistry) app.Binder {
		contracts := contractDI.GetContractService(sr)
		return app.BinderFunc(func(ctx context.Context, cfg contractDomain.ContractConfig) (app.EventSource, error) {
			contract, err := contracts.Bind(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return contract.Events, nil
		})
	})

	di.RegisterToken(c, watchDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get(monolith.ConfigService).(*config.Config)
		if cfg.Watch.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, watchDI.Watcher, func(sr di.ServiceRegistry) *app.Watcher {
		cfg := sr.Get(monolith.ConfigService).(*config.Config)
		log := sr.Get(monolith.LoggerService).(logger.LoggerInterface)

		targets, err := Targets(cfg.Watch)
		if err != nil {
			panic("failed to load watch targets: " + err.Error())
		}

		return app.NewWatcher(
			watchDI.GetBinder(sr),
			pricingDI.GetPriceOracle(sr),
			blockchainDI.GetBlockchainService(sr),
			watchDI.GetReporter(sr),
			app.WatcherConfig{Contracts: targets, Tokens: Tokens(cfg.Watch)},
			log,
		)
	})

	return nil
}

// Startup resolves the watcher. Following starts when the caller runs it.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	watchDI.GetWatcher(mono.Services())
	cfg := mono.Config().Watch
	mono.Logger().Info(ctx, "watch module started",
		"contracts", len(cfg.Contracts),
		"tokens", len(cfg.Tokens))
	return nil
}

// Targets converts the configured contracts, reading ABI files from disk.
// A contract without an ABI file is resolved through the block explorer.
func Targets(cfg config.WatchConfig) ([]domain.Target, error) {
	targets := make([]domain.Target, 0, len(cfg.Contracts))
	for _, c := range cfg.Contracts {
		t := domain.Target{Address: c.Address, Network: c.Network, Events: c.Events}
		if c.ABIFile != "" {
			raw, err := os.ReadFile(c.ABIFile)
			if err != nil {
				return nil, fmt.Errorf("read abi for %s: %w", c.Address, err)
			}
			t.ABI = string(raw)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Tokens converts the configured tracked tokens.
func Tokens(cfg config.WatchConfig) []domain.TrackedToken {
	tokens := make([]domain.TrackedToken, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens = append(tokens, domain.TrackedToken{Address: t.Address, Network: t.Network, Label: t.Label})
	}
	return tokens
}
