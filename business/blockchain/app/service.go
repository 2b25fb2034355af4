package app

import (
	"context"

	"github.com/fd1az/chainkit/business/blockchain/domain"
)

// BlockchainService coordinates head tracking on the primary network and
// gas prices on any configured network.
type BlockchainService struct {
	network    string
	subscriber BlockSubscriber
	gasOracle  GasOracle
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(network string, subscriber BlockSubscriber, gasOracle GasOracle) *BlockchainService {
	return &BlockchainService{
		network:    network,
		subscriber: subscriber,
		gasOracle:  gasOracle,
	}
}

// Network returns the primary network whose heads are followed.
func (s *BlockchainService) Network() string {
	return s.network
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// LatestBlock returns the head of the primary network.
func (s *BlockchainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

// GetGasPrice retrieves the current gas price. An empty network means the primary one.
func (s *BlockchainService) GetGasPrice(ctx context.Context, network string) (*domain.GasPrice, error) {
	if network == "" {
		network = s.network
	}
	return s.gasOracle.GetGasPrice(ctx, network)
}

// EstimateCost prices gasLimit units on network.
func (s *BlockchainService) EstimateCost(ctx context.Context, network string, gasLimit uint64) (*domain.GasEstimate, error) {
	if network == "" {
		network = s.network
	}
	return s.gasOracle.Estimate(ctx, network, gasLimit)
}

// ConnectionState returns the current connection state.
func (s *BlockchainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}

// Status returns the head subscription status.
func (s *BlockchainService) Status() domain.ConnectionStatus {
	return s.subscriber.Status()
}

// Close stops the head subscription.
func (s *BlockchainService) Close() error {
	return s.subscriber.Close()
}
