// Package uniswap discovers Uniswap V2 style pools and reads their reserves.
package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainkit/business/pricing/app"
	"github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/asset"
	"github.com/fd1az/chainkit/internal/circuitbreaker"
	"github.com/fd1az/chainkit/internal/logger"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"
)

// Ensure Provider implements PoolReader.
var _ app.PoolReader = (*Provider)(nil)

type providerMetrics struct {
	callsTotal  metric.Int64Counter
	callErrors  metric.Int64Counter
	callLatency metric.Float64Histogram
}

type decimalsKey struct {
	chainID uint64
	token   common.Address
}

// Provider reads Uniswap V2 factories and pairs through eth_call.
type Provider struct {
	callers  app.CallerProvider
	registry *asset.Registry
	logger   logger.LoggerInterface
	cb       *circuitbreaker.CircuitBreaker[[]byte]

	factoryABI abi.ABI
	pairABI    abi.ABI
	erc20ABI   abi.ABI

	// token decimals never change, so they are kept for the process lifetime
	decimalsMu sync.RWMutex
	decimals   map[decimalsKey]uint8

	tracer  trace.Tracer
	metrics *providerMetrics
}

// NewProvider creates a pool reader. registry short-circuits decimals lookups for known tokens.
func NewProvider(callers app.CallerProvider, registry *asset.Registry, log logger.LoggerInterface) (*Provider, error) {
	p := &Provider{
		callers:  callers,
		registry: registry,
		logger:   log,
		decimals: make(map[decimalsKey]uint8),
		tracer:   otel.Tracer(tracerName),
	}

	var err error
	if p.factoryABI, err = abi.JSON(strings.NewReader(FactoryABI)); err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	if p.pairABI, err = abi.JSON(strings.NewReader(PairABI)); err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	if p.erc20ABI, err = abi.JSON(strings.NewReader(ERC20ABI)); err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	p.cb = circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("uniswap-v2"))

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.callsTotal, err = meter.Int64Counter(
		"uniswap_calls_total",
		metric.WithDescription("Total pool and factory reads"),
	)
	if err != nil {
		return err
	}

	p.metrics.callErrors, err = meter.Int64Counter(
		"uniswap_call_errors_total",
		metric.WithDescription("Total failed pool and factory reads"),
	)
	if err != nil {
		return err
	}

	p.metrics.callLatency, err = meter.Float64Histogram(
		"uniswap_call_latency_ms",
		metric.WithDescription("Pool and factory read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// FindPool returns the pinned pool for token or asks the factory for the pair.
func (p *Provider) FindPool(ctx context.Context, network domain.Network, token, reference common.Address) (common.Address, error) {
	ctx, span := p.tracer.Start(ctx, "uniswap.find_pool",
		trace.WithAttributes(
			attribute.String("network", network.Name),
			attribute.String("token", token.Hex()),
		),
	)
	defer span.End()

	if pool, ok := network.PinnedPool(token); ok {
		span.AddEvent("pinned_pool")
		return pool, nil
	}

	if network.Factory == (common.Address{}) {
		err := apperror.New(apperror.CodePoolNotFound,
			apperror.WithContext("no factory configured for "+network.Name))
		span.SetStatus(codes.Error, "no factory")
		return common.Address{}, err
	}

	out, err := p.call(ctx, network.Name, network.Factory, p.factoryABI, "getPair", token, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "getPair failed")
		return common.Address{}, err
	}

	pair := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if pair == (common.Address{}) {
		span.SetStatus(codes.Error, "no pair")
		return common.Address{}, apperror.New(apperror.CodePoolNotFound,
			apperror.WithContext(fmt.Sprintf("%s/%s on %s", token.Hex(), reference.Hex(), network.Name)))
	}

	span.SetAttributes(attribute.String("pool", pair.Hex()))
	span.SetStatus(codes.Ok, "")
	return pair, nil
}

// Reserves reads both pool tokens, their reserves and decimals.
func (p *Provider) Reserves(ctx context.Context, network domain.Network, pool common.Address) (domain.TradeReserves, error) {
	ctx, span := p.tracer.Start(ctx, "uniswap.reserves",
		trace.WithAttributes(
			attribute.String("network", network.Name),
			attribute.String("pool", pool.Hex()),
		),
	)
	defer span.End()

	fail := func(err error) (domain.TradeReserves, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return domain.TradeReserves{}, err
	}

	token0, err := p.address(ctx, network.Name, pool, "token0")
	if err != nil {
		return fail(err)
	}
	token1, err := p.address(ctx, network.Name, pool, "token1")
	if err != nil {
		return fail(err)
	}

	out, err := p.call(ctx, network.Name, pool, p.pairABI, "getReserves")
	if err != nil {
		return fail(err)
	}
	if len(out) < 2 {
		return fail(apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithContext(fmt.Sprintf("getReserves returned %d values", len(out)))))
	}

	dec0, err := p.tokenDecimals(ctx, network, token0)
	if err != nil {
		return fail(err)
	}
	dec1, err := p.tokenDecimals(ctx, network, token1)
	if err != nil {
		return fail(err)
	}

	r := domain.TradeReserves{
		Pool:      pool,
		Token0:    token0,
		Token1:    token1,
		Reserve0:  out[0].(*big.Int),
		Reserve1:  out[1].(*big.Int),
		Decimals0: dec0,
		Decimals1: dec1,
	}

	span.SetAttributes(
		attribute.String("reserve0", r.Reserve0.String()),
		attribute.String("reserve1", r.Reserve1.String()),
	)
	span.SetStatus(codes.Ok, "")
	return r, nil
}

func (p *Provider) address(ctx context.Context, network string, pool common.Address, method string) (common.Address, error) {
	out, err := p.call(ctx, network, pool, p.pairABI, method)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (p *Provider) tokenDecimals(ctx context.Context, network domain.Network, token common.Address) (uint8, error) {
	if a, ok := p.registry.Token(network.ChainID, token); ok {
		return a.Decimals(), nil
	}

	key := decimalsKey{chainID: network.ChainID, token: token}
	p.decimalsMu.RLock()
	d, ok := p.decimals[key]
	p.decimalsMu.RUnlock()
	if ok {
		return d, nil
	}

	out, err := p.call(ctx, network.Name, token, p.erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	d = *abi.ConvertType(out[0], new(uint8)).(*uint8)

	p.decimalsMu.Lock()
	p.decimals[key] = d
	p.decimalsMu.Unlock()
	return d, nil
}

// call packs, executes through the circuit breaker and unpacks one read.
func (p *Provider) call(ctx context.Context, network string, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("method", method), attribute.String("network", network))
	p.metrics.callsTotal.Add(ctx, 1, attrs)

	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	caller, err := p.callers.Caller(ctx, network)
	if err != nil {
		p.metrics.callErrors.Add(ctx, 1, attrs)
		return nil, err
	}

	result, err := p.cb.Execute(func() ([]byte, error) {
		return caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	p.metrics.callLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		p.metrics.callErrors.Add(ctx, 1, attrs)
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s on %s", method, to.Hex())))
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		p.metrics.callErrors.Add(ctx, 1, attrs)
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("decode %s from %s", method, to.Hex())))
	}
	if len(out) == 0 {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithContext(method+" returned no values"))
	}
	return out, nil
}
