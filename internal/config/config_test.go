package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndPrimaryNetwork(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  http_url: https://rpc.example.org
  websocket_url: wss://rpc.example.org
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Pricing.CacheTTL)
	assert.False(t, cfg.Pricing.SingleFlight)
	assert.Equal(t, 2*time.Second, cfg.Transactions.PollInterval)
	assert.Equal(t, float64(5), cfg.Explorer.RPS)
	assert.Equal(t, 8081, cfg.Health.Port)

	mainnet, ok := cfg.Networks["mainnet"]
	require.True(t, ok)
	assert.Equal(t, "https://rpc.example.org", mainnet.RPCURL)
	assert.Equal(t, "wss://rpc.example.org", mainnet.WSURL)
	assert.Equal(t, "ETH", mainnet.NativeSymbol)
	assert.Equal(t, "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419", mainnet.PriceFeeds["ETH"])

	polygon, ok := cfg.Networks["polygon"]
	require.True(t, ok)
	assert.Empty(t, polygon.RPCURL)
	assert.Equal(t, uint64(137), polygon.ChainID)
	assert.Contains(t, polygon.PriceFeeds, "MATIC")
}

func TestLoad_PoolsAndWatchSection(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  http_url: https://rpc.example.org
networks:
  mainnet:
    pools:
      "0x6b175474e89094c44da98b954eedeac495271d0f": "0xa478c2975ab1ea89e8196811f51a7b7ade33eb11"
watch:
  contracts:
    - address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"
      events: [Transfer, Approval]
  tokens:
    - address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"
      network: mainnet
      label: DAI
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Networks["mainnet"].Pools, 1)
	require.Len(t, cfg.Watch.Contracts, 1)
	assert.Equal(t, []string{"Transfer", "Approval"}, cfg.Watch.Contracts[0].Events)
	require.Len(t, cfg.Watch.Tokens, 1)
	assert.Equal(t, "DAI", cfg.Watch.Tokens[0].Label)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Ethereum:     EthereumConfig{HTTPURL: "https://rpc.example.org"},
			Explorer:     ExplorerConfig{RPS: 5},
			Pricing:      PricingConfig{CacheTTL: time.Minute},
			Transactions: TransactionsConfig{PollInterval: time.Second},
			Networks:     map[string]NetworkConfig{},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing http url", func(c *Config) { c.Ethereum.HTTPURL = "" }, "ethereum.http_url"},
		{"zero ttl", func(c *Config) { c.Pricing.CacheTTL = 0 }, "cache_ttl"},
		{"bad factory", func(c *Config) {
			c.Networks["x"] = NetworkConfig{Factory: "nope"}
		}, "networks.x.factory"},
		{"bad feed", func(c *Config) {
			c.Networks["x"] = NetworkConfig{PriceFeeds: map[string]string{"ETH": "0x1"}}
		}, "price_feeds.ETH"},
		{"bad watch token", func(c *Config) {
			c.Watch.Tokens = []WatchToken{{Address: "dai"}}
		}, "watch.tokens[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNetworkNames_Sorted(t *testing.T) {
	cfg := &Config{Networks: map[string]NetworkConfig{"polygon": {}, "mainnet": {}, "sepolia": {}}}
	assert.Equal(t, []string{"mainnet", "polygon", "sepolia"}, cfg.NetworkNames())
}
