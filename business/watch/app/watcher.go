package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	blockchainDomain "github.com/fd1az/chainkit/business/blockchain/domain"
	contractDomain "github.com/fd1az/chainkit/business/contract/domain"
	"github.com/fd1az/chainkit/business/watch/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/logger"
)

const tracerName = "github.com/fd1az/chainkit/business/watch/app"

// WatcherConfig lists what the watcher follows.
type WatcherConfig struct {
	Contracts []domain.Target
	Tokens    []domain.TrackedToken
	// RefreshParallelism bounds concurrent price refreshes per block.
	RefreshParallelism int
}

type listener struct {
	source EventSource
	id     string
}

// Watcher follows configured contract events and refreshes token prices
// and gas on every new head.
type Watcher struct {
	binder   Binder
	prices   PriceSource
	chain    ChainSource
	reporter Reporter
	config   WatcherConfig
	logger   logger.LoggerInterface
	tracer   trace.Tracer
	now      func() time.Time

	mu        sync.Mutex
	listeners []listener
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewWatcher creates a new Watcher.
func NewWatcher(binder Binder, prices PriceSource, chain ChainSource, reporter Reporter, cfg WatcherConfig, log logger.LoggerInterface) *Watcher {
	if cfg.RefreshParallelism <= 0 {
		cfg.RefreshParallelism = 4
	}
	return &Watcher{
		binder:   binder,
		prices:   prices,
		chain:    chain,
		reporter: reporter,
		config:   cfg,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// Start binds the configured contracts, subscribes to their events and
// begins the per-block refresh loop. A contract that fails to bind is
// reported and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "starting watcher",
		"contracts", len(w.config.Contracts),
		"tokens", len(w.config.Tokens))

	if err := w.reporter.Start(ctx); err != nil {
		return err
	}

	for _, target := range w.config.Contracts {
		if err := w.follow(ctx, target); err != nil {
			w.logger.Error(ctx, "failed to follow contract", "contract", target.Label(), "error", err)
			w.reporter.ReportError(err)
		}
	}

	blocks, err := w.chain.SubscribeBlocks(ctx)
	if err != nil {
		w.reporter.UpdateConnectionStatus(w.chain.Network(), false, 0)
		return err
	}
	w.reporter.UpdateConnectionStatus(w.chain.Network(), true, 0)

	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.run(ctx, blocks)

	return nil
}

// follow binds target and registers one listener per configured event.
func (w *Watcher) follow(ctx context.Context, target domain.Target) error {
	source, err := w.binder.Bind(ctx, contractDomain.ContractConfig{
		Address: target.Address,
		Network: target.Network,
		ABI:     target.ABI,
	})
	if err != nil {
		return err
	}

	contract := common.HexToAddress(target.Address)
	for _, name := range target.Events {
		id, err := source.Subscribe(ctx, name, w.eventHandler(contract, target.Network, name), contractDomain.EventFilter{})
		if err != nil {
			w.logger.Error(ctx, "failed to subscribe", "contract", target.Label(), "event", name, "error", err)
			w.reporter.ReportError(err)
			continue
		}

		w.mu.Lock()
		w.listeners = append(w.listeners, listener{source: source, id: id})
		w.mu.Unlock()

		w.logger.Info(ctx, "following event", "contract", target.Label(), "event", name, "listener", id)
	}
	return nil
}

func (w *Watcher) eventHandler(contract common.Address, network, name string) contractDomain.EventCallback {
	return func(e contractDomain.Event) {
		w.reporter.ReportEvent(domain.ContractEvent{
			Contract:    contract,
			Network:     network,
			Name:        name,
			BlockNumber: e.BlockNumber,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			Args:        e.Args,
			Removed:     e.Removed,
			ReceivedAt:  w.now(),
		})
	}
}

func (w *Watcher) run(ctx context.Context, blocks <-chan *blockchainDomain.Block) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "watcher stopping", "reason", ctx.Err())
			return
		case <-w.done:
			return
		case block, ok := <-blocks:
			if !ok {
				w.logger.Warn(ctx, "head subscription closed")
				w.reporter.UpdateConnectionStatus(w.chain.Network(), false, 0)
				return
			}
			if block != nil {
				w.OnBlock(ctx, block)
			}
		}
	}
}

// OnBlock reports block and refreshes gas and every tracked token price.
func (w *Watcher) OnBlock(ctx context.Context, block *blockchainDomain.Block) {
	ctx, span := w.tracer.Start(ctx, "watch.on_block",
		trace.WithAttributes(attribute.Int64("block_number", int64(block.Number))),
	)
	defer span.End()

	w.reporter.ReportBlock(block)

	status := w.chain.Status()
	latency := time.Duration(0)
	if !block.Timestamp.IsZero() {
		latency = w.now().Sub(block.Timestamp)
	}
	w.reporter.UpdateConnectionStatus(w.chain.Network(), status.State == blockchainDomain.StateConnected, latency)

	if gas, err := w.chain.GetGasPrice(ctx, block.Network); err != nil {
		w.logger.Warn(ctx, "gas price refresh failed", "network", block.Network, "error", err)
		w.reporter.ReportError(err)
	} else {
		w.reporter.ReportGas(domain.GasTick{Network: gas.Network, Gwei: gas.Gwei(), Block: block.Number})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.RefreshParallelism)
	for _, token := range w.config.Tokens {
		g.Go(func() error {
			w.reporter.ReportPrice(w.refresh(gctx, token, block.Number))
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Watcher) refresh(ctx context.Context, token domain.TrackedToken, block uint64) domain.PriceTick {
	tick := domain.PriceTick{Token: token, Block: block}

	price, err := w.prices.GetTokenPrice(ctx, token.Address, token.Network)
	if err != nil {
		w.logger.Debug(ctx, "price refresh failed", "token", token.Name(), "network", token.Network, "error", err)
		tick.Err = err
		return tick
	}

	tick.PriceUSD = price.PriceUSD
	tick.Source = string(price.Source)
	return tick
}

// Stop removes every listener and stops the reporter.
func (w *Watcher) Stop() error {
	w.logger.Info(context.Background(), "stopping watcher")

	if w.done != nil {
		close(w.done)
		w.wg.Wait()
		w.done = nil
	}

	w.mu.Lock()
	listeners := w.listeners
	w.listeners = nil
	w.mu.Unlock()

	var failed []string
	for _, l := range listeners {
		if err := l.source.Unsubscribe(l.id); err != nil {
			failed = append(failed, l.id)
		}
	}

	if err := w.reporter.Stop(); err != nil {
		return err
	}
	if len(failed) > 0 {
		return apperror.New(apperror.CodeInternalError,
			apperror.WithContext(fmt.Sprintf("failed to remove listeners %s", strings.Join(failed, ", "))))
	}
	return nil
}

// Listeners returns the IDs of the active listeners.
func (w *Watcher) Listeners() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]string, len(w.listeners))
	for i, l := range w.listeners {
		ids[i] = l.id
	}
	return ids
}
