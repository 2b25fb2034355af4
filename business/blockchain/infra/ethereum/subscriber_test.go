package ethereum

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/chainkit/business/blockchain/app"
	"github.com/fd1az/chainkit/business/blockchain/domain"
	"github.com/fd1az/chainkit/internal/apperror"
)

func newTestSubscriber(t *testing.T, nodes app.NodeProvider) *Subscriber {
	t.Helper()
	s, err := NewSubscriber(SubscriberConfig{
		Network:        "mainnet",
		PollInterval:   10 * time.Millisecond,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
	}, nodes, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// next reads blocks until one numbered n arrives.
func next(t *testing.T, blocks <-chan *domain.Block, n uint64) *domain.Block {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b, ok := <-blocks:
			require.True(t, ok, "block channel closed")
			if b.Number == n {
				return b
			}
		case <-timeout:
			t.Fatalf("block %d not received", n)
		}
	}
}

func TestSubscriber_PushedHeads(t *testing.T) {
	node := &fakeNode{}
	s := newTestSubscriber(t, node.provider())

	blocks, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, node.subCount())
	assert.Equal(t, domain.StateConnected, s.State())

	again, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, blocks, again)
	assert.Equal(t, 1, node.subCount())

	node.sub(0).push(42)
	b := next(t, blocks, 42)
	assert.Equal(t, "mainnet", b.Network)
	assert.Equal(t, uint64(30_000_000), b.GasLimit)
	assert.Equal(t, "1000000000", b.BaseFee.String())

	status := s.Status()
	assert.Equal(t, uint64(42), status.LastBlock)
	assert.False(t, status.Polling)
	assert.False(t, status.LastUpdate.IsZero())

	require.NoError(t, s.Close())
	_, ok := <-blocks
	assert.False(t, ok)
	assert.True(t, node.sub(0).done.Load())
	assert.Equal(t, domain.StateDisconnected, s.State())
	require.NoError(t, s.Close())

	_, err = s.Subscribe(context.Background())
	assert.Error(t, err)
}

func TestSubscriber_PollsWhenSubscriptionsUnsupported(t *testing.T) {
	node := &fakeNode{head: 5, subErr: rpc.ErrNotificationsUnsupported}
	s := newTestSubscriber(t, node.provider())

	blocks, err := s.Subscribe(context.Background())
	require.NoError(t, err)

	next(t, blocks, 5)
	node.setHead(6)
	next(t, blocks, 6)

	// the same head is not emitted twice
	select {
	case b := <-blocks:
		t.Fatalf("unexpected block %d", b.Number)
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, s.Status().Polling)
	assert.Zero(t, node.subCount())
	assert.Equal(t, int32(0), s.reconnects.Load())
}

func TestSubscriber_DroppedSubscriptionPollsThenResubscribes(t *testing.T) {
	node := &fakeNode{head: 10}
	s := newTestSubscriber(t, node.provider())

	blocks, err := s.Subscribe(context.Background())
	require.NoError(t, err)

	node.setSubErr(errors.New("connection reset"))
	node.sub(0).drop(errors.New("websocket closed"))

	next(t, blocks, 10)
	assert.True(t, s.Status().Polling)

	node.setSubErr(nil)
	require.Eventually(t, func() bool { return node.subCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.Status().Polling }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.Status().Reconnects)
	assert.Equal(t, domain.StateConnected, s.State())

	node.sub(1).push(11)
	next(t, blocks, 11)
}

func TestSubscriber_StopsWithContext(t *testing.T) {
	node := &fakeNode{}
	s := newTestSubscriber(t, node.provider())

	ctx, cancel := context.WithCancel(context.Background())
	blocks, err := s.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-blocks:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("block channel not closed after cancel")
	}
	require.NoError(t, s.Close())
}

func TestSubscriber_NoNode(t *testing.T) {
	nodes := app.NodeFunc(func(context.Context, string) (app.Node, error) {
		return nil, apperror.New(apperror.CodeUnknownNetwork)
	})
	s := newTestSubscriber(t, nodes)

	_, err := s.Subscribe(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownNetwork))
	assert.Equal(t, domain.StateDisconnected, s.State())

	_, err = s.LatestBlock(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownNetwork))
}

func TestSubscriber_LatestBlock(t *testing.T) {
	node := &fakeNode{head: 77}
	s := newTestSubscriber(t, node.provider())

	b, err := s.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(77), b.Number)
	assert.Equal(t, "mainnet", b.Network)

	node.headerErr = errors.New("timeout")
	_, err = s.LatestBlock(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeEthereumRPCError))
}
