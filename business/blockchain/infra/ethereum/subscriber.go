// Package ethereum provides Ethereum blockchain infrastructure adapters.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainkit/business/blockchain/app"
	"github.com/fd1az/chainkit/business/blockchain/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/circuitbreaker"
	"github.com/fd1az/chainkit/internal/logger"
)

const (
	tracerName = "github.com/fd1az/chainkit/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/chainkit/business/blockchain/infra/ethereum"
)

var _ app.BlockSubscriber = (*Subscriber)(nil)

// SubscriberConfig holds configuration for the head subscriber.
type SubscriberConfig struct {
	Network        string
	PollInterval   time.Duration // Polling interval when heads cannot be pushed
	InitialBackoff time.Duration // First delay before resubscribing
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 retries forever
	BufferSize     int // Block channel buffer size
}

// DefaultSubscriberConfig returns sensible defaults.
func DefaultSubscriberConfig(network string) SubscriberConfig {
	return SubscriberConfig{
		Network:        network,
		PollInterval:   12 * time.Second, // ~1 block time
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BufferSize:     16,
	}
}

// subscriberMetrics holds OTEL metric instruments.
type subscriberMetrics struct {
	blocksReceived  metric.Int64Counter
	subscribeErrors metric.Int64Counter
	connectionState metric.Int64Gauge
	blockLatency    metric.Float64Histogram
	pollFallback    metric.Int64Counter
}

// Subscriber follows the heads of one network. Heads are pushed over a
// subscription when the node supports it and polled otherwise; after a
// dropped subscription it polls until resubscribing succeeds.
type Subscriber struct {
	config SubscriberConfig
	nodes  app.NodeProvider
	logger logger.LoggerInterface

	// State
	state      domain.ConnectionState
	stateMu    sync.RWMutex
	polling    atomic.Bool
	lastBlock  atomic.Uint64
	lastUpdate atomic.Int64
	reconnects atomic.Int32

	// Channels
	blocks  chan *domain.Block
	done    chan struct{}
	started atomic.Bool
	closed  atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup

	pollCB *circuitbreaker.CircuitBreaker[*types.Header]

	// Observability
	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewSubscriber creates a new head subscriber.
func NewSubscriber(cfg SubscriberConfig, nodes app.NodeProvider, log logger.LoggerInterface) (*Subscriber, error) {
	def := DefaultSubscriberConfig(cfg.Network)
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.InitialBackoff)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	s := &Subscriber{
		config: cfg,
		nodes:  nodes,
		logger: log,
		state:  domain.StateDisconnected,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	pollCfg := circuitbreaker.DefaultConfig("eth-poll-" + cfg.Network)
	pollCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.pollCB = circuitbreaker.New[*types.Header](pollCfg)

	return s, nil
}

// initMetrics initializes OTEL metric instruments.
func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total Ethereum blocks received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total Ethereum subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("Ethereum connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"eth_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.pollFallback, err = meter.Int64Counter(
		"eth_poll_fallback_total",
		metric.WithDescription("Times head polling replaced a subscription"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Subscribe starts following heads and returns the block channel. The
// subscriber has a single consumer; later calls return the same channel.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.subscribe",
		trace.WithAttributes(attribute.String("network", s.config.Network)),
	)
	defer span.End()

	if s.closed.Load() {
		err := apperror.New(apperror.CodeInvalidState, apperror.WithContext("subscriber is closed"))
		span.RecordError(err)
		return nil, err
	}
	if !s.started.CompareAndSwap(false, true) {
		return s.blocks, nil
	}

	s.setState(domain.StateConnecting)

	headers := make(chan *types.Header, s.config.BufferSize)
	sub, err := s.subscribe(ctx, headers)
	retry := true
	if err != nil {
		if apperror.HasCode(err, apperror.CodeEthereumConnectionFailed) || apperror.HasCode(err, apperror.CodeUnknownNetwork) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "no node")
			s.started.Store(false)
			s.setState(domain.StateDisconnected)
			return nil, err
		}
		// plain HTTP endpoints never support subscriptions
		retry = !errors.Is(err, rpc.ErrNotificationsUnsupported)
		s.logger.Warn(ctx, "head subscription unavailable, polling", "network", s.config.Network, "error", err)
		span.AddEvent("subscribe_failed_polling")
	}

	// the loop outlives the caller's span but not its cancellation
	runCtx := context.WithoutCancel(ctx)
	stop := context.AfterFunc(ctx, s.stop)

	s.wg.Add(1)
	go func() {
		defer stop()
		s.run(runCtx, sub, headers, retry)
	}()

	s.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "subscribed")

	return s.blocks, nil
}

func (s *Subscriber) subscribe(ctx context.Context, headers chan *types.Header) (ethereum.Subscription, error) {
	node, err := s.nodes.Node(ctx, s.config.Network)
	if err != nil {
		return nil, err
	}
	return node.SubscribeNewHead(ctx, headers)
}

// run alternates between following a subscription and polling until stopped.
func (s *Subscriber) run(ctx context.Context, sub ethereum.Subscription, headers chan *types.Header, retry bool) {
	defer s.wg.Done()
	defer close(s.blocks)

	for {
		if sub != nil {
			s.polling.Store(false)
			s.logger.Info(ctx, "subscribed to new heads", "network", s.config.Network)

			stopped := s.follow(ctx, sub, headers)
			sub.Unsubscribe()
			if stopped {
				return
			}
			s.setState(domain.StateReconnecting)
			s.metrics.pollFallback.Add(ctx, 1)
		}

		s.polling.Store(true)
		sub = s.poll(ctx, headers, retry)
		if sub == nil {
			return
		}
		s.reconnects.Add(1)
		s.setState(domain.StateConnected)
	}
}

// follow processes pushed headers. It reports true when the subscriber was
// stopped and false when the subscription ended.
func (s *Subscriber) follow(ctx context.Context, sub ethereum.Subscription, headers <-chan *types.Header) bool {
	for {
		select {
		case <-s.done:
			return true
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error(ctx, "subscription error", "network", s.config.Network, "error", err)
			}
			s.metrics.subscribeErrors.Add(ctx, 1)
			return false
		case header := <-headers:
			if header == nil {
				continue
			}
			s.processHeader(ctx, header, false)
		}
	}
}

// poll fetches the latest head every PollInterval. When retry is set it
// also tries to resubscribe with exponential backoff and returns the new
// subscription on success. It returns nil once stopped.
func (s *Subscriber) poll(ctx context.Context, headers chan *types.Header, retry bool) ethereum.Subscription {
	s.logger.Info(ctx, "starting head polling", "network", s.config.Network, "interval", s.config.PollInterval)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	backoff := s.config.InitialBackoff
	resubscribe := time.NewTimer(backoff)
	defer resubscribe.Stop()
	if !retry {
		resubscribe.Stop()
	}

	attempts := 0
	s.pollLatestBlock(ctx)

	for {
		select {
		case <-s.done:
			return nil
		case <-ticker.C:
			s.pollLatestBlock(ctx)
		case <-resubscribe.C:
			attempts++
			sub, err := s.subscribe(ctx, headers)
			if err == nil {
				return sub
			}
			s.logger.Warn(ctx, "resubscribe failed", "network", s.config.Network, "attempt", attempts, "error", err)
			if s.config.MaxReconnects > 0 && attempts >= s.config.MaxReconnects {
				s.logger.Warn(ctx, "giving up on head subscription", "network", s.config.Network)
				continue
			}
			backoff = min(backoff*2, s.config.MaxBackoff)
			resubscribe.Reset(backoff)
		}
	}
}

// pollLatestBlock fetches the latest header and emits it when it is new.
func (s *Subscriber) pollLatestBlock(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	header, err := s.pollCB.Execute(func() (*types.Header, error) {
		node, err := s.nodes.Node(ctx, s.config.Network)
		if err != nil {
			return nil, err
		}
		return node.HeaderByNumber(ctx, nil) // nil = latest
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "head poll failed", "network", s.config.Network, "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return
	}

	if s.State() != domain.StateConnected {
		s.setState(domain.StateConnected)
	}

	if header.Number.Uint64() <= s.lastBlock.Load() {
		span.AddEvent("duplicate_block")
		return
	}

	s.processHeader(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

// processHeader converts and emits a block header.
func (s *Subscriber) processHeader(ctx context.Context, header *types.Header, polled bool) {
	ctx, span := s.tracer.Start(ctx, "eth.process.header",
		trace.WithAttributes(
			attribute.Int64("block_number", header.Number.Int64()),
			attribute.Bool("polled", polled),
		),
	)
	defer span.End()

	block := s.headerToBlock(header)

	latency := time.Since(block.Timestamp)
	s.metrics.blockLatency.Record(ctx, float64(latency.Milliseconds()),
		metric.WithAttributes(attribute.String("network", s.config.Network)))

	s.lastBlock.Store(block.Number)
	s.lastUpdate.Store(time.Now().UnixNano())

	// Emit block (non-blocking)
	select {
	case s.blocks <- block:
		s.metrics.blocksReceived.Add(ctx, 1)
		s.logger.Debug(ctx, "block received",
			"network", s.config.Network,
			"number", block.Number,
			"hash", block.Hash.Hex()[:10],
			"latency_ms", latency.Milliseconds())
	default:
		span.AddEvent("block_dropped_buffer_full")
		s.logger.Warn(ctx, "block dropped, buffer full", "number", block.Number)
	}

	span.SetStatus(codes.Ok, "processed")
}

// headerToBlock converts an Ethereum header to domain Block.
func (s *Subscriber) headerToBlock(header *types.Header) *domain.Block {
	return &domain.Block{
		Network:    s.config.Network,
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(int64(header.Time), 0),
		GasLimit:   header.GasLimit,
		GasUsed:    header.GasUsed,
		BaseFee:    header.BaseFee,
	}
}

// LatestBlock retrieves the most recent block.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block",
		trace.WithAttributes(attribute.String("network", s.config.Network)),
	)
	defer span.End()

	node, err := s.nodes.Node(ctx, s.config.Network)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	header, err := node.HeaderByNumber(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest block on "+s.config.Network))
	}

	span.SetStatus(codes.Ok, "fetched")
	return s.headerToBlock(header), nil
}

// State returns the current connection state.
func (s *Subscriber) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Status returns detailed connection status.
func (s *Subscriber) Status() domain.ConnectionStatus {
	var updated time.Time
	if ns := s.lastUpdate.Load(); ns != 0 {
		updated = time.Unix(0, ns)
	}
	return domain.ConnectionStatus{
		Network:    s.config.Network,
		State:      s.State(),
		LastBlock:  s.lastBlock.Load(),
		LastUpdate: updated,
		Reconnects: int(s.reconnects.Load()),
		Polling:    s.polling.Load(),
	}
}

func (s *Subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Close stops the subscriber and waits for its loop to exit. The block
// channel is closed by then.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.logger.Info(context.Background(), "closing head subscriber", "network", s.config.Network)

	s.stop()
	s.wg.Wait()
	s.setState(domain.StateDisconnected)

	return nil
}

// setState updates the connection state and records metrics.
func (s *Subscriber) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	s.metrics.connectionState.Record(context.Background(), state.Value(),
		metric.WithAttributes(attribute.String("network", s.config.Network)))
}

// BlockNumber returns the number of the last received block.
func (s *Subscriber) BlockNumber() uint64 {
	return s.lastBlock.Load()
}
