// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/internal/asset"
)

// PoolReader discovers constant-product pools and reads their reserves.
type PoolReader interface {
	// FindPool returns the pool pairing token with reference.
	FindPool(ctx context.Context, network domain.Network, token, reference common.Address) (common.Address, error)
	// Reserves reads token0, token1, reserves and both decimals.
	Reserves(ctx context.Context, network domain.Network, pool common.Address) (domain.TradeReserves, error)
}

// ReferenceFeed reports the USD price of a network's reference asset.
type ReferenceFeed interface {
	Name() string
	USDPrice(ctx context.Context, network domain.Network) (asset.Price, error)
}

// CallerProvider returns a read-only contract caller for a network.
type CallerProvider interface {
	Caller(ctx context.Context, network string) (ethereum.ContractCaller, error)
}

// CallerFunc adapts a function to CallerProvider.
type CallerFunc func(ctx context.Context, network string) (ethereum.ContractCaller, error)

func (f CallerFunc) Caller(ctx context.Context, network string) (ethereum.ContractCaller, error) {
	return f(ctx, network)
}
