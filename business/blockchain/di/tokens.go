// Package di holds the container tokens of the blockchain context.
package di

import (
	"github.com/fd1az/chainkit/business/blockchain/app"
	"github.com/fd1az/chainkit/internal/di"
)

// Service is the only token other contexts resolve.
var Service = di.NewToken[*app.BlockchainService]("chainkit.blockchain.service")

// Module-local tokens.
var (
	Nodes = di.NewToken[app.NodeProvider]("chainkit.blockchain.nodes")
	Heads = di.NewToken[app.BlockSubscriber]("chainkit.blockchain.heads")
	Gas   = di.NewToken[app.GasOracle]("chainkit.blockchain.gas")
)

// GetBlockchainService resolves the blockchain service.
func GetBlockchainService(sr di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(sr, Service)
}
