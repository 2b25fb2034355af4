package uniswap

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/chainkit/business/pricing/app"
	"github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/asset"
	"github.com/fd1az/chainkit/internal/logger"
)

var (
	weth    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	token   = common.HexToAddress("0xAAA0000000000000000000000000000000000001")
	factory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	pair    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	network = domain.Network{Name: "mainnet", ChainID: 1, WrappedNative: weth, Factory: factory}
)

// fakeChain answers eth_call by contract address and method selector.
type fakeChain struct {
	responses map[common.Address]map[string][]byte
	calls     atomic.Int32
	err       error
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out, ok := f.responses[*msg.To][string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeChain) respond(t *testing.T, to common.Address, abiJSON, method string, values ...any) {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	m := parsed.Methods[method]
	out, err := m.Outputs.Pack(values...)
	require.NoError(t, err)
	if f.responses[to] == nil {
		f.responses[to] = make(map[string][]byte)
	}
	f.responses[to][string(m.ID)] = out
}

func newTestProvider(t *testing.T, chain *fakeChain) *Provider {
	t.Helper()
	callers := app.CallerFunc(func(_ context.Context, name string) (ethereum.ContractCaller, error) {
		if name != "mainnet" {
			return nil, apperror.New(apperror.CodeUnknownNetwork)
		}
		return chain, nil
	})
	p, err := NewProvider(callers, asset.DefaultRegistry(), logger.New(io.Discard, logger.LevelError, "test", nil))
	require.NoError(t, err)
	return p
}

func scenarioChain(t *testing.T) *fakeChain {
	chain := &fakeChain{responses: make(map[common.Address]map[string][]byte)}
	chain.respond(t, factory, FactoryABI, "getPair", pair)
	chain.respond(t, pair, PairABI, "token0", weth)
	chain.respond(t, pair, PairABI, "token1", token)
	ten := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	twentyK := new(big.Int).Mul(big.NewInt(20000), big.NewInt(1e18))
	chain.respond(t, pair, PairABI, "getReserves", ten, twentyK, uint32(1700000000))
	chain.respond(t, token, ERC20ABI, "decimals", uint8(18))
	return chain
}

func TestFindPool_Factory(t *testing.T) {
	p := newTestProvider(t, scenarioChain(t))

	got, err := p.FindPool(context.Background(), network, token, weth)
	require.NoError(t, err)
	assert.Equal(t, pair, got)
}

func TestFindPool_Pinned(t *testing.T) {
	chain := scenarioChain(t)
	p := newTestProvider(t, chain)

	pinned := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	n := network
	n.Pools = map[common.Address]common.Address{token: pinned}

	got, err := p.FindPool(context.Background(), n, token, weth)
	require.NoError(t, err)
	assert.Equal(t, pinned, got)
	assert.Zero(t, chain.calls.Load())
}

func TestFindPool_NotFound(t *testing.T) {
	chain := scenarioChain(t)
	chain.respond(t, factory, FactoryABI, "getPair", common.Address{})
	p := newTestProvider(t, chain)

	_, err := p.FindPool(context.Background(), network, token, weth)
	assert.True(t, apperror.HasCode(err, apperror.CodePoolNotFound))

	n := network
	n.Factory = common.Address{}
	_, err = p.FindPool(context.Background(), n, token, weth)
	assert.True(t, apperror.HasCode(err, apperror.CodePoolNotFound))
}

func TestReserves(t *testing.T) {
	chain := scenarioChain(t)
	p := newTestProvider(t, chain)

	r, err := p.Reserves(context.Background(), network, pair)
	require.NoError(t, err)

	assert.Equal(t, weth, r.Token0)
	assert.Equal(t, token, r.Token1)
	assert.Equal(t, uint8(18), r.Decimals0)
	assert.Equal(t, uint8(18), r.Decimals1)
	assert.Equal(t, "10000000000000000000", r.Reserve0.String())

	price, err := r.SpotPrice(token, weth, decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.Equal(t, "1.5", price.String())

	// WETH decimals come from the registry and token decimals are remembered
	before := chain.calls.Load()
	_, err = p.Reserves(context.Background(), network, pair)
	require.NoError(t, err)
	assert.Equal(t, int32(3), chain.calls.Load()-before)
}

func TestReserves_Errors(t *testing.T) {
	chain := scenarioChain(t)
	p := newTestProvider(t, chain)

	_, err := p.Reserves(context.Background(), network, common.HexToAddress("0x01"))
	assert.True(t, apperror.HasCode(err, apperror.CodeEthereumRPCError))

	other := network
	other.Name = "atlantis"
	_, err = p.Reserves(context.Background(), other, pair)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownNetwork))
}
