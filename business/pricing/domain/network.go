// Package domain contains the core domain types for the pricing context.
package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network is everything the oracle needs to price tokens on one chain.
type Network struct {
	Name    string
	ChainID uint64
	// WrappedNative is the reference asset every pool is quoted against.
	WrappedNative common.Address
	NativeSymbol  string
	// Factory discovers pools; zero disables discovery.
	Factory common.Address
	// PriceFeeds maps an upper-case asset symbol to its USD aggregator.
	PriceFeeds map[string]common.Address
	// Pools pins the pool used for a token, bypassing the factory.
	Pools map[common.Address]common.Address
	// CEXSymbol is the exchange ticker of the reference asset, e.g. ETHUSDT.
	CEXSymbol string
}

// Feed returns the aggregator configured for symbol.
func (n Network) Feed(symbol string) (common.Address, bool) {
	addr, ok := n.PriceFeeds[strings.ToUpper(symbol)]
	return addr, ok
}

// PinnedPool returns the configured pool for token, if any.
func (n Network) PinnedPool(token common.Address) (common.Address, bool) {
	pool, ok := n.Pools[token]
	return pool, ok
}

// IsReference reports whether token is the network's reference asset.
func (n Network) IsReference(token common.Address) bool {
	return token == n.WrappedNative
}
