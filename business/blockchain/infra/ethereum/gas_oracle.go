package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainkit/business/blockchain/app"
	"github.com/fd1az/chainkit/business/blockchain/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/cache"
	"github.com/fd1az/chainkit/internal/circuitbreaker"
	"github.com/fd1az/chainkit/internal/logger"
)

var _ app.GasOracle = (*GasOracle)(nil)

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL    time.Duration // How long to cache gas prices
	MaxGasPrice *big.Int      // Prices above this are clamped; nil disables
}

// DefaultGasOracleConfig returns sensible defaults.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:    12 * time.Second, // ~1 block
		MaxGasPrice: big.NewInt(500_000_000_000),
	}
}

// gasOracleMetrics holds OTEL metric instruments.
type gasOracleMetrics struct {
	gasPriceFetches metric.Int64Counter
	gasPriceGwei    metric.Float64Gauge
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// GasOracle reads suggested gas prices per network with a short cache.
type GasOracle struct {
	config GasOracleConfig
	nodes  app.NodeProvider
	logger logger.LoggerInterface
	now    func() time.Time

	priceCache *cache.Cache[string, *domain.GasPrice]
	cb         *circuitbreaker.CircuitBreaker[*domain.GasPrice]

	// Observability
	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a new gas oracle instance.
func NewGasOracle(cfg GasOracleConfig, nodes app.NodeProvider, log logger.LoggerInterface) (*GasOracle, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultGasOracleConfig().CacheTTL
	}

	g := &GasOracle{
		config: cfg,
		nodes:  nodes,
		logger: log,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	g.priceCache = cache.New[string, *domain.GasPrice](time.Minute, cache.WithClock(func() time.Time { return g.now() }))
	g.cb = circuitbreaker.New[*domain.GasPrice](circuitbreaker.DefaultConfig("gas-oracle"))

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return g, nil
}

// initMetrics initializes OTEL metric instruments.
func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.gasPriceFetches, err = meter.Int64Counter(
		"gas_price_fetches_total",
		metric.WithDescription("Total gas price fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gasPriceGwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheMisses, err = meter.Int64Counter(
		"gas_cache_misses_total",
		metric.WithDescription("Gas price cache misses"),
		metric.WithUnit("{miss}"),
	)
	return err
}

// GetGasPrice retrieves the current gas price of network with caching.
func (g *GasOracle) GetGasPrice(ctx context.Context, network string) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_price",
		trace.WithAttributes(attribute.String("network", network)),
	)
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("network", network))

	if price, found := g.priceCache.Get(ctx, network); found {
		g.metrics.cacheHits.Add(ctx, 1, attrs)
		span.AddEvent("cache_hit")
		return price, nil
	}

	g.metrics.cacheMisses.Add(ctx, 1, attrs)
	g.metrics.gasPriceFetches.Add(ctx, 1, attrs)

	node, err := g.nodes.Node(ctx, network)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no node")
		return nil, err
	}

	price, err := g.cb.Execute(func() (*domain.GasPrice, error) {
		wei, err := node.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		p := domain.NewGasPrice(network, wei, g.now())
		// legacy chains have no tip; the price alone is still usable
		if tip, err := node.SuggestGasTipCap(ctx); err == nil {
			p.TipCap = tip
		}
		return p, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get gas price on "+network))
	}

	// Safety check
	if g.config.MaxGasPrice != nil && price.Wei.Cmp(g.config.MaxGasPrice) > 0 {
		span.AddEvent("gas_price_exceeded_max",
			trace.WithAttributes(attribute.String("wei", price.Wei.String())))
		g.logger.Warn(ctx, "gas price exceeds max", "network", network, "wei", price.Wei.String())
		price.Wei = new(big.Int).Set(g.config.MaxGasPrice)
	}

	g.priceCache.Set(ctx, network, price, g.config.CacheTTL)

	gwei := price.Gwei().InexactFloat64()
	g.metrics.gasPriceGwei.Record(ctx, gwei, attrs)

	span.SetAttributes(attribute.Float64("gwei", gwei))
	span.SetStatus(codes.Ok, "fetched")

	return price, nil
}

// Estimate prices gasLimit units at the current gas price of network.
func (g *GasOracle) Estimate(ctx context.Context, network string, gasLimit uint64) (*domain.GasEstimate, error) {
	ctx, span := g.tracer.Start(ctx, "gas.estimate",
		trace.WithAttributes(
			attribute.String("network", network),
			attribute.Int64("gas_limit", int64(gasLimit)),
		),
	)
	defer span.End()

	price, err := g.GetGasPrice(ctx, network)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	estimate := domain.NewGasEstimate(gasLimit, price)
	span.SetAttributes(attribute.String("total_wei", estimate.TotalWei.String()))
	span.SetStatus(codes.Ok, "estimated")
	return estimate, nil
}

// Close stops the price cache.
func (g *GasOracle) Close() error {
	g.priceCache.Close()
	return nil
}
