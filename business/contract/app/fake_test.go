package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainkit/internal/logger"
)

const erc20ABI = `[
 {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
 {"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

const (
	tokenAddress = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	// well-known development key
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var errBoom = errors.New("boom")

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

type fakeSub struct {
	errc chan error
	once sync.Once
	done chan struct{}
}

func newFakeSub() *fakeSub {
	return &fakeSub{errc: make(chan error, 1), done: make(chan struct{})}
}

func (s *fakeSub) Unsubscribe()      { s.once.Do(func() { close(s.done) }) }
func (s *fakeSub) Err() <-chan error { return s.errc }

func (s *fakeSub) unsubscribed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// fakeBackend is an in-memory node. Every sent transaction is mined on the
// next receipt lookup unless a hook says otherwise.
type fakeBackend struct {
	mu sync.Mutex

	chainID   *big.Int
	baseFee   *big.Int
	head      uint64
	baseNonce uint64

	callOut   []byte
	callErr   error
	estimate  uint64
	estErr    error
	nonceErr  error
	nonceHits int

	sendErrAt  map[int]error
	sendDelay  func(nonce uint64) time.Duration
	sent       []*types.Transaction
	revert     map[common.Hash]bool
	pendingFor int
	lookups    map[common.Hash]int
	minedAt    map[common.Hash]uint64
	receiptLog func(tx *types.Transaction) []*types.Log

	logs      []types.Log
	filterErr error
	lastQuery ethereum.FilterQuery

	subErr  error
	subs    []*fakeSub
	subChs  []chan<- types.Log
	queries []ethereum.FilterQuery
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:   big.NewInt(1),
		baseFee:   big.NewInt(10_000_000_000),
		head:      100,
		estimate:  50_000,
		sendErrAt: make(map[int]error),
		revert:    make(map[common.Hash]bool),
		lookups:   make(map[common.Hash]int),
		minedAt:   make(map[common.Hash]uint64),
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(f.head), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callOut, f.callErr
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.estErr
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceHits++
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.baseNonce + uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(20_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendDelay != nil {
		time.Sleep(f.sendDelay(tx.Nonce()))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.sendErrAt[len(f.sent)]; ok {
		return err
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var tx *types.Transaction
	for _, s := range f.sent {
		if s.Hash() == hash {
			tx = s
		}
	}
	if tx == nil {
		return nil, ethereum.NotFound
	}

	f.lookups[hash]++
	if f.lookups[hash] <= f.pendingFor {
		return nil, ethereum.NotFound
	}

	mined, ok := f.minedAt[hash]
	if !ok {
		mined = f.head
		f.minedAt[hash] = mined
	}

	var logs []*types.Log
	if f.receiptLog != nil {
		logs = f.receiptLog(tx)
	}
	status := types.ReceiptStatusSuccessful
	if f.revert[hash] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(mined),
		GasUsed:     21_000,
		Logs:        logs,
	}, nil
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	return f.logs, f.filterErr
}

func (f *fakeBackend) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	sub := newFakeSub()
	f.subs = append(f.subs, sub)
	f.subChs = append(f.subChs, ch)
	f.queries = append(f.queries, q)
	return sub, nil
}

func (f *fakeBackend) sentNonces() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, len(f.sent))
	for i, tx := range f.sent {
		out[i] = tx.Nonce()
	}
	return out
}

func (f *fakeBackend) sub(i int) (*fakeSub, chan<- types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i], f.subChs[i]
}

type fakeResolver struct {
	abi     string
	err     error
	calls   int
	network string
	apiKey  string
}

func (r *fakeResolver) FetchABI(_ context.Context, network string, _ common.Address, apiKey string) (string, error) {
	r.calls++
	r.network = network
	r.apiKey = apiKey
	return r.abi, r.err
}

type fakeProvider struct {
	backends map[string]ChainBackend
}

func (p fakeProvider) Backend(_ context.Context, network string) (ChainBackend, error) {
	b, ok := p.backends[network]
	if !ok {
		return nil, errors.New("unknown network " + network)
	}
	return b, nil
}
