// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App          AppConfig                `mapstructure:"app"`
	Ethereum     EthereumConfig           `mapstructure:"ethereum"`
	Signer       SignerConfig             `mapstructure:"signer"`
	Explorer     ExplorerConfig           `mapstructure:"explorer"`
	Networks     map[string]NetworkConfig `mapstructure:"networks"`
	Pricing      PricingConfig            `mapstructure:"pricing"`
	Transactions TransactionsConfig       `mapstructure:"transactions"`
	Watch        WatchConfig              `mapstructure:"watch"`
	Health       HealthConfig             `mapstructure:"health"`
	Telemetry    TelemetryConfig          `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds the primary node connection.
type EthereumConfig struct {
	Network        string        `mapstructure:"network"`
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// SignerConfig holds the default signing key applied to bindings that carry none.
type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

// ExplorerConfig holds block-explorer (Etherscan family) settings.
type ExplorerConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Network string        `mapstructure:"network"`
	BaseURL string        `mapstructure:"base_url"` // overrides the per-network endpoint
	RPS     float64       `mapstructure:"rate_limit"`
	Burst   int           `mapstructure:"burst"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NetworkConfig describes one chain the pricing and contract contexts can reach.
type NetworkConfig struct {
	RPCURL        string            `mapstructure:"rpc_url"`
	WSURL         string            `mapstructure:"ws_url"`
	ChainID       uint64            `mapstructure:"chain_id"`
	WrappedNative string            `mapstructure:"wrapped_native"`
	NativeSymbol  string            `mapstructure:"native_symbol"`
	Factory       string            `mapstructure:"factory"`
	PriceFeeds    map[string]string `mapstructure:"price_feeds"` // symbol -> aggregator
	Pools         map[string]string `mapstructure:"pools"`       // token -> pair
	CEXSymbol     string            `mapstructure:"cex_symbol"`
}

// PricingConfig holds token price oracle settings.
type PricingConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	SingleFlight bool          `mapstructure:"single_flight"`
	FeedMaxAge   time.Duration `mapstructure:"feed_max_age"`
	CEXFallback  bool          `mapstructure:"cex_fallback"`
	BinanceURL   string        `mapstructure:"binance_url"`
}

// TransactionsConfig holds executor settings.
type TransactionsConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Confirmations uint64        `mapstructure:"confirmations"`
}

// WatchContract is a contract the watch service binds and follows.
type WatchContract struct {
	Address string   `mapstructure:"address"`
	Network string   `mapstructure:"network"`
	ABIFile string   `mapstructure:"abi_file"`
	Events  []string `mapstructure:"events"`
}

// WatchToken is a token whose USD price the watch service refreshes each block.
type WatchToken struct {
	Address string `mapstructure:"address"`
	Network string `mapstructure:"network"`
	Label   string `mapstructure:"label"`
}

// WatchConfig holds the long-running service settings.
type WatchConfig struct {
	Contracts []WatchContract `mapstructure:"contracts"`
	Tokens    []WatchToken    `mapstructure:"tokens"`
	TUIMode   bool            `mapstructure:"-"` // set at runtime
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Exporter       string `mapstructure:"exporter"` // otlp, zipkin, console
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	ZipkinURL      string `mapstructure:"zipkin_url"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CHAINKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "CHAINKIT_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "CHAINKIT_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "CHAINKIT_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("ethereum.network", "CHAINKIT_NETWORK")
	v.BindEnv("ethereum.websocket_url", "CHAINKIT_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "CHAINKIT_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "CHAINKIT_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	v.BindEnv("signer.private_key", "CHAINKIT_PRIVATE_KEY", "PRIVATE_KEY")

	v.BindEnv("explorer.api_key", "CHAINKIT_EXPLORER_API_KEY", "ETHERSCAN_API_KEY")
	v.BindEnv("explorer.network", "CHAINKIT_EXPLORER_NETWORK")

	v.BindEnv("networks.polygon.rpc_url", "CHAINKIT_POLYGON_RPC_URL", "POLYGON_RPC_URL")
	v.BindEnv("networks.sepolia.rpc_url", "CHAINKIT_SEPOLIA_RPC_URL", "SEPOLIA_RPC_URL")

	v.BindEnv("pricing.cex_fallback", "CHAINKIT_CEX_FALLBACK")

	v.BindEnv("telemetry.enabled", "CHAINKIT_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "CHAINKIT_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "CHAINKIT_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "CHAINKIT_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chainkit")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.network", "mainnet")
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.poll_interval", "12s")

	v.SetDefault("explorer.network", "mainnet")
	v.SetDefault("explorer.rate_limit", 5) // free tier
	v.SetDefault("explorer.burst", 1)
	v.SetDefault("explorer.timeout", "10s")

	// Uniswap V2 style factories and Chainlink aggregators
	v.SetDefault("networks.mainnet.chain_id", 1)
	v.SetDefault("networks.mainnet.native_symbol", "ETH")
	v.SetDefault("networks.mainnet.wrapped_native", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("networks.mainnet.factory", "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	v.SetDefault("networks.mainnet.cex_symbol", "ETHUSDT")
	v.SetDefault("networks.mainnet.price_feeds", map[string]string{
		"ETH": "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419",
		"BTC": "0xF4030086522a5bEEa4988F8cA5B36dbC97BeE88c",
	})

	v.SetDefault("networks.sepolia.chain_id", 11155111)
	v.SetDefault("networks.sepolia.native_symbol", "ETH")
	v.SetDefault("networks.sepolia.wrapped_native", "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14")
	v.SetDefault("networks.sepolia.factory", "0xF62c03E08ada871A0bEb309762E260a7a6a880E6")
	v.SetDefault("networks.sepolia.price_feeds", map[string]string{
		"ETH": "0x694AA1769357215DE4FAC081bf1f309aDC325306",
	})

	v.SetDefault("networks.polygon.chain_id", 137)
	v.SetDefault("networks.polygon.native_symbol", "MATIC")
	v.SetDefault("networks.polygon.wrapped_native", "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")
	v.SetDefault("networks.polygon.factory", "0x5757371414417b8C6CAad45bAeF941aBc7d3Ab32")
	v.SetDefault("networks.polygon.cex_symbol", "POLUSDT")
	v.SetDefault("networks.polygon.price_feeds", map[string]string{
		"MATIC": "0xAB594600376Ec9fD91F8e885dADF0CE036862dE0",
	})

	v.SetDefault("pricing.cache_ttl", "5m")
	v.SetDefault("pricing.single_flight", false)
	v.SetDefault("pricing.feed_max_age", "0s") // 0 disables the staleness check
	v.SetDefault("pricing.cex_fallback", false)
	v.SetDefault("pricing.binance_url", "https://api.binance.com")

	v.SetDefault("transactions.poll_interval", "2s")
	v.SetDefault("transactions.confirmations", 1)

	v.SetDefault("health.port", 8081)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "chainkit")
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// normalize lowercases network names and fills the primary network's
// endpoints from the ethereum section.
func (c *Config) normalize() {
	c.Ethereum.Network = strings.ToLower(c.Ethereum.Network)
	c.Explorer.Network = strings.ToLower(c.Explorer.Network)

	networks := make(map[string]NetworkConfig, len(c.Networks))
	for name, n := range c.Networks {
		name = strings.ToLower(name)
		if name == c.Ethereum.Network {
			if n.RPCURL == "" {
				n.RPCURL = c.Ethereum.HTTPURL
			}
			if n.WSURL == "" {
				n.WSURL = c.Ethereum.WebSocketURL
			}
			if n.ChainID == 0 {
				n.ChainID = c.Ethereum.ChainID
			}
		}
		// viper lowercases map keys; feed symbols are matched upper case
		feeds := make(map[string]string, len(n.PriceFeeds))
		for sym, addr := range n.PriceFeeds {
			feeds[strings.ToUpper(sym)] = addr
		}
		n.PriceFeeds = feeds
		n.NativeSymbol = strings.ToUpper(n.NativeSymbol)
		networks[name] = n
	}
	c.Networks = networks

	if c.Ethereum.Network != "" {
		if _, ok := c.Networks[c.Ethereum.Network]; !ok {
			c.Networks[c.Ethereum.Network] = NetworkConfig{
				RPCURL:  c.Ethereum.HTTPURL,
				WSURL:   c.Ethereum.WebSocketURL,
				ChainID: c.Ethereum.ChainID,
			}
		}
	}
}

// NetworkNames returns the configured network names in sorted order.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if c.Pricing.CacheTTL <= 0 {
		return fmt.Errorf("pricing.cache_ttl must be positive")
	}
	if c.Transactions.PollInterval <= 0 {
		return fmt.Errorf("transactions.poll_interval must be positive")
	}
	if c.Explorer.RPS <= 0 {
		return fmt.Errorf("explorer.rate_limit must be positive")
	}

	for name, n := range c.Networks {
		for field, addr := range map[string]string{
			"wrapped_native": n.WrappedNative,
			"factory":        n.Factory,
		} {
			if addr != "" && !common.IsHexAddress(addr) {
				return fmt.Errorf("invalid networks.%s.%s: %s", name, field, addr)
			}
		}
		for sym, addr := range n.PriceFeeds {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("invalid networks.%s.price_feeds.%s: %s", name, sym, addr)
			}
		}
		for token, pool := range n.Pools {
			if !common.IsHexAddress(token) || !common.IsHexAddress(pool) {
				return fmt.Errorf("invalid networks.%s.pools entry: %s -> %s", name, token, pool)
			}
		}
	}

	for i, wc := range c.Watch.Contracts {
		if !common.IsHexAddress(wc.Address) {
			return fmt.Errorf("invalid watch.contracts[%d].address: %s", i, wc.Address)
		}
	}
	for i, wt := range c.Watch.Tokens {
		if !common.IsHexAddress(wt.Address) {
			return fmt.Errorf("invalid watch.tokens[%d].address: %s", i, wt.Address)
		}
	}

	return nil
}
