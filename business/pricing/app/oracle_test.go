package app

import (
	"context"
	"io"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/asset"
	"github.com/fd1az/chainkit/internal/logger"
)

var (
	weth    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	tokenA  = common.HexToAddress("0xAAA0000000000000000000000000000000000001")
	tokenB  = common.HexToAddress("0xBBB0000000000000000000000000000000000002")
	poolA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	poolB   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	mainnet = domain.Network{Name: "mainnet", ChainID: 1, WrappedNative: weth, NativeSymbol: "ETH"}
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type fakePools struct {
	mu       sync.Mutex
	pools    map[common.Address]common.Address
	reserves map[common.Address]domain.TradeReserves
	err      error
	finds    atomic.Int32
	reads    atomic.Int32
	delay    time.Duration
}

func (f *fakePools) FindPool(_ context.Context, _ domain.Network, token, _ common.Address) (common.Address, error) {
	f.finds.Add(1)
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return common.Address{}, f.err
	}
	pool, ok := f.pools[token]
	if !ok {
		return common.Address{}, apperror.New(apperror.CodePoolNotFound)
	}
	return pool, nil
}

func (f *fakePools) Reserves(_ context.Context, _ domain.Network, pool common.Address) (domain.TradeReserves, error) {
	f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserves[pool], nil
}

func (f *fakePools) setReserves(pool common.Address, r domain.TradeReserves) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserves[pool] = r
}

type fakeFeed struct {
	name  string
	usd   decimal.Decimal
	err   error
	calls atomic.Int32
}

func (f *fakeFeed) Name() string { return f.name }

func (f *fakeFeed) USDPrice(context.Context, domain.Network) (asset.Price, error) {
	f.calls.Add(1)
	if f.err != nil {
		return asset.Price{}, f.err
	}
	return asset.Price{Base: asset.WETH, Quote: asset.USD, Rate: f.usd, UpdatedAt: time.Now()}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func scenarioPools() *fakePools {
	return &fakePools{
		pools: map[common.Address]common.Address{tokenA: poolA, tokenB: poolB},
		reserves: map[common.Address]domain.TradeReserves{
			poolA: {Pool: poolA, Token0: weth, Token1: tokenA, Reserve0: ether(10), Reserve1: ether(20000), Decimals0: 18, Decimals1: 18},
			poolB: {Pool: poolB, Token0: tokenB, Token1: weth, Reserve0: ether(3000), Reserve1: ether(1), Decimals0: 18, Decimals1: 18},
		},
	}
}

func newTestOracle(t *testing.T, cfg OracleConfig, pools PoolReader, feeds ...ReferenceFeed) (*PriceOracle, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	o, err := NewPriceOracle(cfg, map[string]domain.Network{"Mainnet": mainnet}, pools, feeds,
		logger.New(io.Discard, logger.LevelError, "test", nil), WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o, clk
}

func TestGetTokenPrice_DerivesFromReserves(t *testing.T) {
	feed := &fakeFeed{name: "chainlink", usd: decimal.NewFromInt(3000)}
	o, _ := newTestOracle(t, OracleConfig{}, scenarioPools(), feed)

	p, err := o.GetTokenPrice(context.Background(), tokenA.Hex(), "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "1.5", p.PriceUSD.String())
	assert.Equal(t, domain.SourceAMM, p.Source)
	assert.Equal(t, "mainnet", p.Network)

	p, err = o.GetTokenPrice(context.Background(), tokenB.Hex(), "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "1", p.PriceUSD.String())
}

func TestGetTokenPrice_CacheHitSkipsDerivation(t *testing.T) {
	pools := scenarioPools()
	feed := &fakeFeed{name: "chainlink", usd: decimal.NewFromInt(3000)}
	o, clk := newTestOracle(t, OracleConfig{}, pools, feed)
	ctx := context.Background()

	first, err := o.GetTokenPrice(ctx, tokenA.Hex(), "mainnet")
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	second, err := o.GetTokenPrice(ctx, "0xaaa0000000000000000000000000000000000001", "MAINNET")
	require.NoError(t, err)

	assert.True(t, first.PriceUSD.Equal(second.PriceUSD))
	assert.Equal(t, domain.SourceCache, second.Source)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Equal(t, int32(1), pools.reads.Load())
	assert.Equal(t, int32(1), feed.calls.Load())
}

func TestGetTokenPrice_ExpiredEntryRederives(t *testing.T) {
	pools := scenarioPools()
	feed := &fakeFeed{name: "chainlink", usd: decimal.NewFromInt(3000)}
	o, clk := newTestOracle(t, OracleConfig{}, pools, feed)
	ctx := context.Background()

	_, err := o.GetTokenPrice(ctx, tokenA.Hex(), "mainnet")
	require.NoError(t, err)

	pools.setReserves(poolA, domain.TradeReserves{
		Pool: poolA, Token0: weth, Token1: tokenA, Reserve0: ether(20), Reserve1: ether(20000), Decimals0: 18, Decimals1: 18,
	})
	clk.Advance(domain.DefaultCacheTTL)

	p, err := o.GetTokenPrice(ctx, tokenA.Hex(), "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "3", p.PriceUSD.String())
	assert.Equal(t, domain.SourceAMM, p.Source)
	assert.Equal(t, int32(2), pools.reads.Load())
}

func TestGetTokenPrice_ReferenceAssetUsesFeed(t *testing.T) {
	pools := scenarioPools()
	feed := &fakeFeed{name: "chainlink", usd: decimal.NewFromInt(3000)}
	o, _ := newTestOracle(t, OracleConfig{}, pools, feed)

	p, err := o.GetTokenPrice(context.Background(), weth.Hex(), "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "3000", p.PriceUSD.String())
	assert.Equal(t, domain.SourceFeed, p.Source)
	assert.Zero(t, pools.finds.Load())
}

func TestGetTokenPrice_FeedCascade(t *testing.T) {
	primary := &fakeFeed{name: "chainlink", err: errBoom}
	fallback := &fakeFeed{name: "binance", usd: decimal.NewFromInt(2000)}
	o, _ := newTestOracle(t, OracleConfig{}, scenarioPools(), primary, fallback)

	p, err := o.GetTokenPrice(context.Background(), tokenA.Hex(), "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "1", p.PriceUSD.String())
	assert.Equal(t, int32(1), primary.calls.Load())
}

func TestGetTokenPrice_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		network string
		pools   func() *fakePools
		feeds   []ReferenceFeed
	}{
		{
			name:    "unknown network",
			token:   tokenA.Hex(),
			network: "atlantis",
		},
		{
			name:    "malformed token",
			token:   "0x123",
			network: "mainnet",
		},
		{
			name:    "no pool",
			token:   common.HexToAddress("0xCCC0000000000000000000000000000000000003").Hex(),
			network: "mainnet",
		},
		{
			name:    "no feed",
			token:   tokenA.Hex(),
			network: "mainnet",
			feeds:   []ReferenceFeed{},
		},
		{
			name:    "every feed fails",
			token:   tokenA.Hex(),
			network: "mainnet",
			feeds:   []ReferenceFeed{&fakeFeed{name: "a", err: errBoom}, &fakeFeed{name: "b", err: errBoom}},
		},
		{
			name:    "pool without reference",
			token:   tokenA.Hex(),
			network: "mainnet",
			pools: func() *fakePools {
				p := scenarioPools()
				p.reserves[poolA] = domain.TradeReserves{Token0: tokenB, Token1: tokenA, Reserve0: ether(1), Reserve1: ether(1)}
				return p
			},
		},
		{
			name:    "empty reserve",
			token:   tokenA.Hex(),
			network: "mainnet",
			pools: func() *fakePools {
				p := scenarioPools()
				p.reserves[poolA] = domain.TradeReserves{Token0: weth, Token1: tokenA, Reserve0: ether(1), Reserve1: big.NewInt(0)}
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pools := scenarioPools()
			if tt.pools != nil {
				pools = tt.pools()
			}
			feeds := tt.feeds
			if feeds == nil {
				feeds = []ReferenceFeed{&fakeFeed{name: "chainlink", usd: decimal.NewFromInt(3000)}}
			}
			o, _ := newTestOracle(t, OracleConfig{}, pools, feeds...)

			_, err := o.GetTokenPrice(context.Background(), tt.token, tt.network)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodePriceUnavailable), "got %v", err)
			assert.Zero(t, o.cache.Len(), "failures must not be cached")
		})
	}
}

func TestClearCache(t *testing.T) {
	feed := &fakeFeed{name: "chainlink", usd: decimal.NewFromInt(3000)}
	pools := scenarioPools()
	o, _ := newTestOracle(t, OracleConfig{}, pools, feed)
	ctx := context.Background()

	warm := func() {
		for _, tok := range []common.Address{tokenA, tokenB} {
			_, err := o.GetTokenPrice(ctx, tok.Hex(), "mainnet")
			require.NoError(t, err)
		}
	}

	warm()
	o.ClearCache(tokenA.Hex(), "mainnet")
	assert.Equal(t, 1, o.cache.Len())

	p, err := o.GetTokenPrice(ctx, tokenA.Hex(), "mainnet")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAMM, p.Source)

	p, err = o.GetTokenPrice(ctx, tokenB.Hex(), "mainnet")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, p.Source)

	o.ClearCache("", "mainnet")
	assert.Zero(t, o.cache.Len())

	warm()
	o.ClearCache(tokenB.Hex(), "")
	assert.Equal(t, 1, o.cache.Len())

	o.ClearCache("", "")
	assert.Zero(t, o.cache.Len())

	o.ClearCache("0xnothing", "nowhere")
}

func TestGetTokenPrice_SingleFlight(t *testing.T) {
	pools := scenarioPools()
	pools.delay = 20 * time.Millisecond
	feed := &fakeFeed{name: "chainlink", usd: decimal.NewFromInt(3000)}
	o, _ := newTestOracle(t, OracleConfig{SingleFlight: true}, pools, feed)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := o.GetTokenPrice(context.Background(), tokenA.Hex(), "mainnet")
			assert.NoError(t, err)
			assert.Equal(t, "1.5", p.PriceUSD.String())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), pools.reads.Load())
}

var errBoom = apperror.New(apperror.CodeEthereumRPCError, apperror.WithContext("boom"))
