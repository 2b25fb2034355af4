// Package di contains dependency injection tokens for the contract context.
package di

import (
	"github.com/fd1az/chainkit/business/contract/app"
	"github.com/fd1az/chainkit/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ContractService = di.NewToken[*app.ContractService]("contract.ContractService")
)

// Private dependency tokens - internal to contract module
var (
	BackendProvider = di.NewToken[app.BackendProvider]("contract:backendProvider")
	ABIResolver     = di.NewToken[app.ABIResolver]("contract:abiResolver")
)

func GetContractService(c di.ServiceRegistry) *app.ContractService {
	return di.GetToken(c, ContractService)
}

func GetBackendProvider(c di.ServiceRegistry) app.BackendProvider {
	return di.GetToken(c, BackendProvider)
}

func GetABIResolver(c di.ServiceRegistry) app.ABIResolver {
	return di.GetToken(c, ABIResolver)
}
