// Package contract implements the contract bounded context: binding, calls,
// transactions and event subscriptions.
package contract

import (
	"context"

	"github.com/fd1az/chainkit/business/contract/app"
	contractDI "github.com/fd1az/chainkit/business/contract/di"
	"github.com/fd1az/chainkit/business/contract/infra/etherscan"
	"github.com/fd1az/chainkit/business/contract/infra/ethereum"
	"github.com/fd1az/chainkit/internal/chain"
	"github.com/fd1az/chainkit/internal/config"
	"github.com/fd1az/chainkit/internal/di"
	"github.com/fd1az/chainkit/internal/logger"
	"github.com/fd1az/chainkit/internal/monolith"
)

// Module implements the contract bounded context.
type Module struct{}

// RegisterServices registers all contract services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, contractDI.BackendProvider, func(sr di.ServiceRegistry) app.BackendProvider {
		pool := sr.Get(monolith.ChainPoolService).(*chain.Pool)
		return ethereum.NewBackends(pool)
	})

	di.RegisterToken(c, contractDI.ABIResolver, func(sr di.ServiceRegistry) app.ABIResolver {
		cfg := sr.Get(monolith.ConfigService).(*config.Config)
		log := sr.Get(monolith.LoggerService).(logger.LoggerInterface)

		networks := make(map[string]uint64, len(cfg.Networks))
		for name, n := range cfg.Networks {
			if n.ChainID != 0 {
				networks[name] = n.ChainID
			}
		}

		explorer, err := etherscan.New(etherscan.Config{
			BaseURL:  cfg.Explorer.BaseURL,
			RPS:      cfg.Explorer.RPS,
			Burst:    cfg.Explorer.Burst,
			Timeout:  cfg.Explorer.Timeout,
			Networks: networks,
		}, log)
		if err != nil {
			panic("failed to create explorer client: " + err.Error())
		}
		return explorer
	})

	di.RegisterToken(c, contractDI.ContractService, func(sr di.ServiceRegistry) *app.ContractService {
		cfg := sr.Get(monolith.ConfigService).(*config.Config)
		log := sr.Get(monolith.LoggerService).(logger.LoggerInterface)

		chainIDs := make(map[string]uint64, len(cfg.Networks))
		for name, n := range cfg.Networks {
			chainIDs[name] = n.ChainID
		}

		return app.NewContractService(app.ServiceConfig{
			DefaultNetwork:  cfg.Ethereum.Network,
			PrivateKey:      cfg.Signer.PrivateKey,
			ExplorerAPIKey:  cfg.Explorer.APIKey,
			ExplorerNetwork: cfg.Explorer.Network,
			ChainIDs:        chainIDs,
			Executor: app.ExecutorConfig{
				PollInterval:  cfg.Transactions.PollInterval,
				Confirmations: cfg.Transactions.Confirmations,
			},
		}, contractDI.GetBackendProvider(sr), contractDI.GetABIResolver(sr), log)
	})

	return nil
}

// Startup initializes the contract module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	// resolve eagerly so configuration errors surface at boot
	contractDI.GetContractService(mono.Services())
	mono.Logger().Info(ctx, "contract module started")
	return nil
}
