package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/cache"
	"github.com/fd1az/chainkit/internal/logger"
)

const tracerName = "github.com/fd1az/chainkit/business/pricing"

// OracleConfig configures the price oracle.
type OracleConfig struct {
	CacheTTL time.Duration
	// SingleFlight collapses concurrent derivations of the same key.
	SingleFlight bool
}

// OracleOption customizes a PriceOracle.
type OracleOption func(*PriceOracle)

// WithClock overrides the oracle's clock, including cache expiry.
func WithClock(now func() time.Time) OracleOption {
	return func(o *PriceOracle) { o.now = now }
}

type oracleMetrics struct {
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	derivations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

// PriceOracle derives token USD prices from pool reserves and a reference
// feed, caching each result per token and network.
type PriceOracle struct {
	networks map[string]domain.Network
	pools    PoolReader
	feeds    []ReferenceFeed
	ttl      time.Duration
	now      func() time.Time
	group    *singleflight.Group

	cache   *cache.Cache[domain.CacheKey, domain.CacheEntry]
	log     logger.LoggerInterface
	tracer  trace.Tracer
	metrics *oracleMetrics
}

// NewPriceOracle creates an oracle. feeds are tried in order.
func NewPriceOracle(cfg OracleConfig, networks map[string]domain.Network, pools PoolReader, feeds []ReferenceFeed, log logger.LoggerInterface, opts ...OracleOption) (*PriceOracle, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = domain.DefaultCacheTTL
	}

	o := &PriceOracle{
		networks: make(map[string]domain.Network, len(networks)),
		pools:    pools,
		feeds:    feeds,
		ttl:      cfg.CacheTTL,
		now:      time.Now,
		log:      log,
		tracer:   otel.Tracer(tracerName),
	}
	for name, n := range networks {
		o.networks[strings.ToLower(name)] = n
	}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.SingleFlight {
		o.group = &singleflight.Group{}
	}
	o.cache = cache.New[domain.CacheKey, domain.CacheEntry](cfg.CacheTTL, cache.WithClock(o.now))

	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return o, nil
}

func (o *PriceOracle) initMetrics() error {
	meter := otel.Meter(tracerName)
	o.metrics = &oracleMetrics{}

	var err error
	if o.metrics.cacheHits, err = meter.Int64Counter("price_cache_hits_total",
		metric.WithDescription("Token price cache hits"),
		metric.WithUnit("{hit}"),
	); err != nil {
		return err
	}
	if o.metrics.cacheMisses, err = meter.Int64Counter("price_cache_misses_total",
		metric.WithDescription("Token price cache misses"),
		metric.WithUnit("{miss}"),
	); err != nil {
		return err
	}
	if o.metrics.derivations, err = meter.Int64Counter("price_derivations_total",
		metric.WithDescription("Token prices derived from pool reserves"),
		metric.WithUnit("{derivation}"),
	); err != nil {
		return err
	}
	if o.metrics.failures, err = meter.Int64Counter("price_unavailable_total",
		metric.WithDescription("Token price requests that failed"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	o.metrics.latency, err = meter.Float64Histogram("price_derivation_ms",
		metric.WithDescription("Token price derivation latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// GetTokenPrice returns token's USD price on network. Every failure is PRICE_UNAVAILABLE.
func (o *PriceOracle) GetTokenPrice(ctx context.Context, token, network string) (domain.TokenPrice, error) {
	key := domain.NewCacheKey(token, network)

	ctx, span := o.tracer.Start(ctx, "pricing.get_token_price",
		trace.WithAttributes(
			attribute.String("token", key.Token),
			attribute.String("network", key.Network),
		),
	)
	defer span.End()

	if entry, ok := o.cache.Get(ctx, key); ok && entry.IsValid(o.now(), o.ttl) {
		price, err := decimal.NewFromString(entry.Price)
		if err == nil {
			o.metrics.cacheHits.Add(ctx, 1)
			span.AddEvent("cache_hit")
			span.SetStatus(codes.Ok, "")
			return domain.TokenPrice{
				Token:     key.Token,
				Network:   key.Network,
				PriceUSD:  price,
				Source:    domain.SourceCache,
				Timestamp: entry.Timestamp,
			}, nil
		}
	}
	o.metrics.cacheMisses.Add(ctx, 1)

	net, ok := o.networks[key.Network]
	if !ok {
		return o.unavailable(ctx, span, key, apperror.New(apperror.CodeUnknownNetwork,
			apperror.WithContext("network="+network)))
	}
	if !common.IsHexAddress(key.Token) {
		return o.unavailable(ctx, span, key, apperror.New(apperror.CodeInvalidAddress,
			apperror.WithContext("token="+token)))
	}

	var (
		price domain.TokenPrice
		err   error
	)
	if o.group != nil {
		var v any
		v, err, _ = o.group.Do(key.String(), func() (any, error) {
			return o.derive(ctx, key, net)
		})
		if err == nil {
			price = v.(domain.TokenPrice)
		}
	} else {
		price, err = o.derive(ctx, key, net)
	}
	if err != nil {
		return o.unavailable(ctx, span, key, err)
	}

	span.SetAttributes(
		attribute.String("price_usd", price.PriceUSD.String()),
		attribute.String("source", string(price.Source)),
	)
	span.SetStatus(codes.Ok, "")
	return price, nil
}

// derive computes and caches a fresh price. Nothing is cached on failure.
func (o *PriceOracle) derive(ctx context.Context, key domain.CacheKey, net domain.Network) (domain.TokenPrice, error) {
	start := o.now()
	o.metrics.derivations.Add(ctx, 1, metric.WithAttributes(attribute.String("network", net.Name)))

	tokenAddr := common.HexToAddress(key.Token)

	var (
		price  decimal.Decimal
		source domain.Source
		err    error
	)
	if net.IsReference(tokenAddr) {
		price, err = o.referencePrice(ctx, net)
		source = domain.SourceFeed
	} else {
		price, err = o.fromPool(ctx, net, tokenAddr)
		source = domain.SourceAMM
	}
	if err != nil {
		return domain.TokenPrice{}, err
	}

	now := o.now()
	o.cache.Set(ctx, key, domain.CacheEntry{Price: price.String(), Timestamp: now}, o.ttl)
	o.metrics.latency.Record(ctx, float64(now.Sub(start).Milliseconds()))

	o.log.Debug(ctx, "token price derived",
		"token", key.Token,
		"network", key.Network,
		"price_usd", price.String(),
		"source", source,
	)

	return domain.TokenPrice{
		Token:     key.Token,
		Network:   key.Network,
		PriceUSD:  price,
		Source:    source,
		Timestamp: now,
	}, nil
}

// fromPool prices token against the reference asset of its pool.
func (o *PriceOracle) fromPool(ctx context.Context, net domain.Network, token common.Address) (decimal.Decimal, error) {
	pool, err := o.pools.FindPool(ctx, net, token, net.WrappedNative)
	if err != nil {
		return decimal.Zero, err
	}

	reserves, err := o.pools.Reserves(ctx, net, pool)
	if err != nil {
		return decimal.Zero, err
	}

	ref, err := o.referencePrice(ctx, net)
	if err != nil {
		return decimal.Zero, err
	}

	return reserves.SpotPrice(token, net.WrappedNative, ref)
}

// referencePrice walks the feed cascade and returns the first price.
func (o *PriceOracle) referencePrice(ctx context.Context, net domain.Network) (decimal.Decimal, error) {
	if len(o.feeds) == 0 {
		return decimal.Zero, apperror.New(apperror.CodeFeedNotConfigured,
			apperror.WithContext("no reference feeds"))
	}

	var errs []error
	for _, feed := range o.feeds {
		p, err := feed.USDPrice(ctx, net)
		if err == nil {
			return p.Rate, nil
		}
		o.log.Debug(ctx, "reference feed failed", "feed", feed.Name(), "network", net.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", feed.Name(), err))
	}
	return decimal.Zero, errors.Join(errs...)
}

func (o *PriceOracle) unavailable(ctx context.Context, span trace.Span, key domain.CacheKey, cause error) (domain.TokenPrice, error) {
	o.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("network", key.Network)))
	span.RecordError(cause)
	span.SetStatus(codes.Error, "price unavailable")
	return domain.TokenPrice{}, apperror.New(apperror.CodePriceUnavailable,
		apperror.WithCause(cause),
		apperror.WithContext(key.String()))
}

// ClearCache invalidates cached prices. Empty token and network clear
// everything; an empty token or network matches any value.
func (o *PriceOracle) ClearCache(token, network string) {
	ctx := context.Background()
	key := domain.NewCacheKey(token, network)

	switch {
	case key.Token == "" && key.Network == "":
		o.cache.Clear(ctx)
	case key.Token == "":
		o.cache.DeleteFunc(ctx, func(k domain.CacheKey) bool { return k.Network == key.Network })
	case key.Network == "":
		o.cache.DeleteFunc(ctx, func(k domain.CacheKey) bool { return k.Token == key.Token })
	default:
		o.cache.Delete(ctx, key)
	}
}

// Networks returns the names of the networks the oracle can price.
func (o *PriceOracle) Networks() []string {
	names := make([]string, 0, len(o.networks))
	for name := range o.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops the cache janitor.
func (o *PriceOracle) Close() {
	o.cache.Close()
}
