// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainkit/business/blockchain/domain"
)

// Node is the subset of a node client the blockchain context reads from.
type Node interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// NodeProvider returns the node connection of a network.
type NodeProvider interface {
	Node(ctx context.Context, network string) (Node, error)
}

// NodeFunc adapts a function to NodeProvider.
type NodeFunc func(ctx context.Context, network string) (Node, error)

func (f NodeFunc) Node(ctx context.Context, network string) (Node, error) {
	return f(ctx, network)
}

// BlockSubscriber defines the interface for subscribing to new blocks.
type BlockSubscriber interface {
	// Subscribe starts listening for new blocks and returns a channel of blocks.
	// The channel is closed when the subscriber stops.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock retrieves the most recent block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// State returns the current connection state.
	State() domain.ConnectionState

	// Status returns detailed connection information.
	Status() domain.ConnectionStatus

	Close() error
}

// GasOracle defines the interface for gas price information.
type GasOracle interface {
	// GetGasPrice retrieves the current gas price of network.
	GetGasPrice(ctx context.Context, network string) (*domain.GasPrice, error)

	// Estimate prices gasLimit units at the current gas price.
	Estimate(ctx context.Context, network string, gasLimit uint64) (*domain.GasEstimate, error)
}
