// Package blockchain implements the blockchain bounded context: head
// tracking and gas prices over the shared node pool.
package blockchain

import (
	"context"
	"time"

	"github.com/fd1az/chainkit/business/blockchain/app"
	blockchainDI "github.com/fd1az/chainkit/business/blockchain/di"
	"github.com/fd1az/chainkit/business/blockchain/infra/ethereum"
	"github.com/fd1az/chainkit/internal/chain"
	"github.com/fd1az/chainkit/internal/config"
	"github.com/fd1az/chainkit/internal/di"
	"github.com/fd1az/chainkit/internal/logger"
	"github.com/fd1az/chainkit/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.Nodes, func(sr di.ServiceRegistry) app.NodeProvider {
		pool := sr.Get(monolith.ChainPoolService).(*chain.Pool)
		return app.NodeFunc(func(ctx context.Context, network string) (app.Node, error) {
			client, err := pool.Client(ctx, network)
			if err != nil {
				return nil, err
			}
			return client, nil
		})
	})

	di.RegisterToken(c, blockchainDI.Heads, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get(monolith.ConfigService).(*config.Config)
		log := sr.Get(monolith.LoggerService).(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.Network)
		subCfg.PollInterval = cfg.Ethereum.PollInterval
		subCfg.InitialBackoff = cfg.Ethereum.InitialBackoff
		subCfg.MaxBackoff = cfg.Ethereum.MaxBackoff
		subCfg.MaxReconnects = cfg.Ethereum.MaxReconnects

		sub, err := ethereum.NewSubscriber(subCfg, di.GetToken(sr, blockchainDI.Nodes), log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, blockchainDI.Gas, func(sr di.ServiceRegistry) app.GasOracle {
		log := sr.Get(monolith.LoggerService).(logger.LoggerInterface)

		oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(), di.GetToken(sr, blockchainDI.Nodes), log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.Service, func(sr di.ServiceRegistry) *app.BlockchainService {
		cfg := sr.Get(monolith.ConfigService).(*config.Config)
		return app.NewBlockchainService(cfg.Ethereum.Network,
			di.GetToken(sr, blockchainDI.Heads),
			di.GetToken(sr, blockchainDI.Gas))
	})

	return nil
}

// Startup initializes the blockchain module. Nodes are dialed lazily, so an
// unreachable primary network only logs.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := blockchainDI.GetBlockchainService(mono.Services())

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var head uint64
	if b, err := svc.LatestBlock(probeCtx); err != nil {
		log.Warn(ctx, "primary network unreachable at startup", "network", svc.Network(), "error", err)
	} else {
		head = b.Number
	}

	log.Info(ctx, "blockchain module started", "network", svc.Network(), "head", head)
	return nil
}
