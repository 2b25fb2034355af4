// Package app contains the watch service and its ports.
package app

import (
	"context"
	"time"

	blockchainDomain "github.com/fd1az/chainkit/business/blockchain/domain"
	contractDomain "github.com/fd1az/chainkit/business/contract/domain"
	pricingDomain "github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/business/watch/domain"
)

// EventSource is the event registry of one bound contract.
type EventSource interface {
	Subscribe(ctx context.Context, eventName string, callback contractDomain.EventCallback, filter contractDomain.EventFilter) (string, error)
	Unsubscribe(id string) error
}

// Binder binds a contract and returns its event registry.
type Binder interface {
	Bind(ctx context.Context, cfg contractDomain.ContractConfig) (EventSource, error)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(ctx context.Context, cfg contractDomain.ContractConfig) (EventSource, error)

func (f BinderFunc) Bind(ctx context.Context, cfg contractDomain.ContractConfig) (EventSource, error) {
	return f(ctx, cfg)
}

// PriceSource prices tokens in USD.
type PriceSource interface {
	GetTokenPrice(ctx context.Context, token, network string) (pricingDomain.TokenPrice, error)
}

// ChainSource supplies heads and gas prices of the primary network.
type ChainSource interface {
	Network() string
	SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error)
	GetGasPrice(ctx context.Context, network string) (*blockchainDomain.GasPrice, error)
	Status() blockchainDomain.ConnectionStatus
}

// Reporter displays watcher activity.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	ReportEvent(event domain.ContractEvent)
	ReportBlock(block *blockchainDomain.Block)
	ReportPrice(tick domain.PriceTick)
	ReportGas(tick domain.GasTick)

	// UpdateConnectionStatus updates a connection status display.
	UpdateConnectionStatus(name string, connected bool, latency time.Duration)

	ReportError(err error)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
