package app

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/internal/config"
)

// NetworksFromConfig converts the configured networks into pricing networks.
// Networks without a wrapped native asset cannot be priced and are skipped.
func NetworksFromConfig(networks map[string]config.NetworkConfig) (map[string]domain.Network, error) {
	out := make(map[string]domain.Network, len(networks))
	for name, n := range networks {
		if n.WrappedNative == "" {
			continue
		}

		net := domain.Network{
			Name:         strings.ToLower(name),
			ChainID:      n.ChainID,
			NativeSymbol: strings.ToUpper(n.NativeSymbol),
			CEXSymbol:    n.CEXSymbol,
			PriceFeeds:   make(map[string]common.Address, len(n.PriceFeeds)),
			Pools:        make(map[common.Address]common.Address, len(n.Pools)),
		}

		var err error
		if net.WrappedNative, err = parseAddress(name, "wrapped_native", n.WrappedNative); err != nil {
			return nil, err
		}
		if n.Factory != "" {
			if net.Factory, err = parseAddress(name, "factory", n.Factory); err != nil {
				return nil, err
			}
		}
		for sym, addr := range n.PriceFeeds {
			feed, err := parseAddress(name, "price_feeds."+sym, addr)
			if err != nil {
				return nil, err
			}
			net.PriceFeeds[strings.ToUpper(sym)] = feed
		}
		for tok, addr := range n.Pools {
			token, err := parseAddress(name, "pools key", tok)
			if err != nil {
				return nil, err
			}
			pool, err := parseAddress(name, "pools."+tok, addr)
			if err != nil {
				return nil, err
			}
			net.Pools[token] = pool
		}

		out[net.Name] = net
	}
	return out, nil
}

func parseAddress(network, field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("networks.%s.%s: invalid address %q", network, field, s)
	}
	return common.HexToAddress(s), nil
}
