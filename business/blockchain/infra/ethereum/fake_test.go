package ethereum

import (
	"context"
	"io"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainkit/business/blockchain/app"
	"github.com/fd1az/chainkit/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

type fakeSub struct {
	ch   chan<- *types.Header
	errc chan error
	once sync.Once
	done atomic.Bool
}

func (s *fakeSub) Err() <-chan error { return s.errc }

func (s *fakeSub) Unsubscribe() {
	s.once.Do(func() {
		s.done.Store(true)
		close(s.errc)
	})
}

func (s *fakeSub) push(n uint64) {
	s.ch <- header(n)
}

func (s *fakeSub) drop(err error) {
	s.errc <- err
}

type fakeNode struct {
	mu     sync.Mutex
	head   uint64
	subErr error
	subs   []*fakeSub

	headerErr error

	gasPrice *big.Int
	gasErr   error
	tip      *big.Int
	tipErr   error
	gasCalls atomic.Int32
}

func header(n uint64) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(n),
		Difficulty: big.NewInt(0),
		GasLimit:   30_000_000,
		Time:       uint64(time.Now().Unix()),
		BaseFee:    big.NewInt(1_000_000_000),
	}
}

func (f *fakeNode) provider() app.NodeProvider {
	return app.NodeFunc(func(context.Context, string) (app.Node, error) { return f, nil })
}

func (f *fakeNode) setHead(n uint64) {
	f.mu.Lock()
	f.head = n
	f.mu.Unlock()
}

func (f *fakeNode) setSubErr(err error) {
	f.mu.Lock()
	f.subErr = err
	f.mu.Unlock()
}

func (f *fakeNode) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.subs) {
		return nil
	}
	return f.subs[i]
}

func (f *fakeNode) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeNode) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	return header(f.head), nil
}

func (f *fakeNode) SubscribeNewHead(_ context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	s := &fakeSub{ch: ch, errc: make(chan error, 1)}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeNode) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.gasCalls.Add(1)
	if f.gasErr != nil {
		return nil, f.gasErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeNode) SuggestGasTipCap(context.Context) (*big.Int, error) {
	if f.tipErr != nil {
		return nil, f.tipErr
	}
	return f.tip, nil
}
