package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blockchainDomain "github.com/fd1az/chainkit/business/blockchain/domain"
	contractDomain "github.com/fd1az/chainkit/business/contract/domain"
	pricingDomain "github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/business/watch/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/logger"
)

const (
	dai  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

type fakeSource struct {
	mu        sync.Mutex
	callbacks map[string]contractDomain.EventCallback
	unknown   map[string]bool
	removed   []string
}

func (f *fakeSource) Subscribe(_ context.Context, name string, cb contractDomain.EventCallback, _ contractDomain.EventFilter) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unknown[name] {
		return "", apperror.New(apperror.CodeUnknownEvent)
	}
	id := name + "_1000"
	f.callbacks[id] = cb
	return id, nil
}

func (f *fakeSource) Unsubscribe(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.callbacks, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeSource) emit(id string, e contractDomain.Event) {
	f.mu.Lock()
	cb := f.callbacks[id]
	f.mu.Unlock()
	cb(e)
}

type fakePrices struct {
	prices map[string]decimal.Decimal
}

func (f *fakePrices) GetTokenPrice(_ context.Context, token, network string) (pricingDomain.TokenPrice, error) {
	p, ok := f.prices[token]
	if !ok {
		return pricingDomain.TokenPrice{}, apperror.New(apperror.CodePriceUnavailable)
	}
	return pricingDomain.TokenPrice{Token: token, Network: network, PriceUSD: p, Source: pricingDomain.SourceAMM}, nil
}

type fakeChain struct {
	blocks chan *blockchainDomain.Block
	subErr error
	gasErr error
}

func (f *fakeChain) Network() string { return "mainnet" }

func (f *fakeChain) SubscribeBlocks(context.Context) (<-chan *blockchainDomain.Block, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.blocks, nil
}

func (f *fakeChain) GetGasPrice(_ context.Context, network string) (*blockchainDomain.GasPrice, error) {
	if f.gasErr != nil {
		return nil, f.gasErr
	}
	return blockchainDomain.NewGasPrice(network, big.NewInt(12_000_000_000), time.Now()), nil
}

func (f *fakeChain) Status() blockchainDomain.ConnectionStatus {
	return blockchainDomain.ConnectionStatus{State: blockchainDomain.StateConnected}
}

type recorder struct {
	mu      sync.Mutex
	events  []domain.ContractEvent
	blocks  []uint64
	prices  []domain.PriceTick
	gas     []domain.GasTick
	errs    []error
	status  map[string]bool
	started bool
	stopped bool
}

func newRecorder() *recorder { return &recorder{status: map[string]bool{}} }

func (r *recorder) Start(context.Context) error { r.started = true; return nil }
func (r *recorder) Stop() error                 { r.stopped = true; return nil }

func (r *recorder) ReportEvent(e domain.ContractEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ReportBlock(b *blockchainDomain.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, b.Number)
}

func (r *recorder) ReportPrice(t domain.PriceTick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, t)
}

func (r *recorder) ReportGas(t domain.GasTick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gas = append(r.gas, t)
}

func (r *recorder) UpdateConnectionStatus(name string, connected bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[name] = connected
}

func (r *recorder) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) blockCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blocks)
}

type fixture struct {
	watcher  *Watcher
	sources  map[string]*fakeSource
	chain    *fakeChain
	reporter *recorder
}

func newFixture(t *testing.T, cfg WatcherConfig, failBind map[string]bool) *fixture {
	t.Helper()
	f := &fixture{
		sources:  map[string]*fakeSource{},
		chain:    &fakeChain{blocks: make(chan *blockchainDomain.Block, 4)},
		reporter: newRecorder(),
	}
	binder := BinderFunc(func(_ context.Context, cfg contractDomain.ContractConfig) (EventSource, error) {
		if failBind[cfg.Address] {
			return nil, apperror.New(apperror.CodeABIResolutionFailed)
		}
		s := &fakeSource{callbacks: map[string]contractDomain.EventCallback{}, unknown: map[string]bool{"Mint": true}}
		f.sources[cfg.Address] = s
		return s, nil
	})
	prices := &fakePrices{prices: map[string]decimal.Decimal{dai: decimal.RequireFromString("1.0002")}}

	f.watcher = NewWatcher(binder, prices, f.chain, f.reporter, cfg,
		logger.New(io.Discard, logger.LevelError, "test", nil))
	return f
}

func TestWatcher_FollowsEvents(t *testing.T) {
	f := newFixture(t, WatcherConfig{
		Contracts: []domain.Target{
			{Address: dai, Network: "mainnet", Events: []string{"Transfer", "Approval", "Mint"}},
			{Address: usdc, Network: "mainnet", Events: []string{"Transfer"}},
		},
	}, map[string]bool{usdc: true})

	require.NoError(t, f.watcher.Start(context.Background()))
	assert.True(t, f.reporter.started)
	assert.True(t, f.reporter.status["mainnet"])

	ids := f.watcher.Listeners()
	sort.Strings(ids)
	assert.Equal(t, []string{"Approval_1000", "Transfer_1000"}, ids)

	// unknown event and failed bind are reported, not fatal
	require.Len(t, f.reporter.errs, 2)
	assert.True(t, apperror.HasCode(f.reporter.errs[0], apperror.CodeUnknownEvent))
	assert.True(t, apperror.HasCode(f.reporter.errs[1], apperror.CodeABIResolutionFailed))

	tx := common.HexToHash("0xabc")
	f.sources[dai].emit("Transfer_1000", contractDomain.Event{
		Name:        "Transfer",
		BlockNumber: 99,
		TxHash:      tx,
		Args:        map[string]any{"value": big.NewInt(5)},
	})

	require.Len(t, f.reporter.events, 1)
	e := f.reporter.events[0]
	assert.Equal(t, "Transfer", e.Name)
	assert.Equal(t, common.HexToAddress(dai), e.Contract)
	assert.Equal(t, uint64(99), e.BlockNumber)
	assert.Equal(t, tx, e.TxHash)
	assert.Equal(t, "value=5", e.Summary())

	require.NoError(t, f.watcher.Stop())
	assert.True(t, f.reporter.stopped)
	assert.Empty(t, f.watcher.Listeners())
	assert.ElementsMatch(t, []string{"Transfer_1000", "Approval_1000"}, f.sources[dai].removed)
}

func TestWatcher_RefreshesOnEachBlock(t *testing.T) {
	f := newFixture(t, WatcherConfig{
		Tokens: []domain.TrackedToken{
			{Address: dai, Network: "mainnet", Label: "DAI"},
			{Address: usdc, Network: "mainnet", Label: "USDC"},
		},
	}, nil)

	require.NoError(t, f.watcher.Start(context.Background()))
	f.chain.blocks <- &blockchainDomain.Block{Network: "mainnet", Number: 100, Timestamp: time.Now()}

	require.Eventually(t, func() bool { return f.reporter.blockCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.watcher.Stop())

	assert.Equal(t, []uint64{100}, f.reporter.blocks)
	require.Len(t, f.reporter.gas, 1)
	assert.Equal(t, "12", f.reporter.gas[0].Gwei.String())
	assert.Equal(t, uint64(100), f.reporter.gas[0].Block)

	require.Len(t, f.reporter.prices, 2)
	byLabel := map[string]domain.PriceTick{}
	for _, p := range f.reporter.prices {
		byLabel[p.Token.Name()] = p
	}
	assert.Equal(t, "1.0002", byLabel["DAI"].PriceUSD.String())
	assert.Equal(t, "amm", byLabel["DAI"].Source)
	assert.NoError(t, byLabel["DAI"].Err)
	assert.True(t, apperror.HasCode(byLabel["USDC"].Err, apperror.CodePriceUnavailable))
}

func TestWatcher_GasFailureIsReported(t *testing.T) {
	f := newFixture(t, WatcherConfig{}, nil)
	f.chain.gasErr = errors.New("node down")

	f.watcher.OnBlock(context.Background(), &blockchainDomain.Block{Number: 7})
	assert.Empty(t, f.reporter.gas)
	require.Len(t, f.reporter.errs, 1)
	assert.Equal(t, []uint64{7}, f.reporter.blocks)
}

func TestWatcher_StartFailsWithoutHeads(t *testing.T) {
	f := newFixture(t, WatcherConfig{}, nil)
	f.chain.subErr = apperror.New(apperror.CodeEthereumConnectionFailed)

	err := f.watcher.Start(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeEthereumConnectionFailed))
	assert.False(t, f.reporter.status["mainnet"])
	require.NoError(t, f.watcher.Stop())
}

func TestWatcher_ClosedHeadChannelStopsLoop(t *testing.T) {
	f := newFixture(t, WatcherConfig{}, nil)
	require.NoError(t, f.watcher.Start(context.Background()))

	close(f.chain.blocks)
	require.Eventually(t, func() bool {
		f.reporter.mu.Lock()
		defer f.reporter.mu.Unlock()
		return !f.reporter.status["mainnet"]
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, f.watcher.Stop())
}
