package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
	ChainIDPolygon  = 137
	ChainIDArbitrum = 42161
	ChainIDOptimism = 10
	ChainIDBase     = 8453
	ChainIDBSC      = 56
)

var (
	USD = MustNew(FiatID("USD"), "USD", 8)

	WETH    = MustNew(TokenID(ChainIDEthereum, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")), "WETH", 18)
	USDC    = MustNew(TokenID(ChainIDEthereum, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")), "USDC", 6)
	USDT    = MustNew(TokenID(ChainIDEthereum, common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")), "USDT", 6)
	DAI     = MustNew(TokenID(ChainIDEthereum, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")), "DAI", 18)
	WBTC    = MustNew(TokenID(ChainIDEthereum, common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")), "WBTC", 8)
	WMATIC  = MustNew(TokenID(ChainIDPolygon, common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")), "WMATIC", 18)
	SepWETH = MustNew(TokenID(ChainIDSepolia, common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14")), "WETH", 18)
)

// DefaultRegistry returns a registry seeded with well-known tokens.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{USD, WETH, USDC, USDT, DAI, WBTC, WMATIC, SepWETH} {
		r.Put(a)
	}
	return r
}
