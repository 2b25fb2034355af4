// Package chainlink reads USD reference prices from Chainlink aggregators.
package chainlink

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
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainkit/business/pricing/app"
	"github.com/fd1az/chainkit/business/pricing/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/asset"
	"github.com/fd1az/chainkit/internal/circuitbreaker"
	"github.com/fd1az/chainkit/internal/logger"
)

const tracerName = "chainlink"

// AggregatorABI is the AggregatorV3Interface subset the feed reads.
const AggregatorABI = `[
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "latestRoundData",
		"outputs": [
			{"internalType": "uint80", "name": "roundId", "type": "uint80"},
			{"internalType": "int256", "name": "answer", "type": "int256"},
			{"internalType": "uint256", "name": "startedAt", "type": "uint256"},
			{"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
			{"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

var _ app.ReferenceFeed = (*Feed)(nil)

// Feed prices a network's reference asset from the aggregator configured
// for its native symbol.
type Feed struct {
	callers  app.CallerProvider
	registry *asset.Registry
	maxAge   time.Duration
	now      func() time.Time
	log      logger.LoggerInterface
	cb       *circuitbreaker.CircuitBreaker[[]byte]
	abi      abi.ABI
	tracer   trace.Tracer

	decimalsMu sync.RWMutex
	decimals   map[common.Address]uint8
}

// NewFeed creates a Chainlink feed. A zero maxAge accepts any round age.
func NewFeed(callers app.CallerProvider, registry *asset.Registry, maxAge time.Duration, log logger.LoggerInterface) (*Feed, error) {
	parsed, err := abi.JSON(strings.NewReader(AggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator ABI: %w", err)
	}
	return &Feed{
		callers:  callers,
		registry: registry,
		maxAge:   maxAge,
		now:      time.Now,
		log:      log,
		cb:       circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("chainlink")),
		abi:      parsed,
		tracer:   otel.Tracer(tracerName),
		decimals: make(map[common.Address]uint8),
	}, nil
}

func (f *Feed) Name() string { return "chainlink" }

// USDPrice returns the latest round answer scaled by the aggregator's decimals.
func (f *Feed) USDPrice(ctx context.Context, network domain.Network) (asset.Price, error) {
	ctx, span := f.tracer.Start(ctx, "chainlink.latest_round",
		trace.WithAttributes(
			attribute.String("network", network.Name),
			attribute.String("symbol", network.NativeSymbol),
		),
	)
	defer span.End()

	fail := func(err error) (asset.Price, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return asset.Price{}, err
	}

	aggregator, ok := network.Feed(network.NativeSymbol)
	if !ok {
		return fail(apperror.New(apperror.CodeFeedNotConfigured,
			apperror.WithContext(network.NativeSymbol+" on "+network.Name)))
	}

	caller, err := f.callers.Caller(ctx, network.Name)
	if err != nil {
		return fail(err)
	}

	dec, err := f.feedDecimals(ctx, caller, aggregator)
	if err != nil {
		return fail(err)
	}

	out, err := f.read(ctx, caller, aggregator, "latestRoundData")
	if err != nil {
		return fail(err)
	}
	if len(out) < 4 {
		return fail(apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithContext("latestRoundData returned too few values")))
	}

	answer := out[1].(*big.Int)
	updatedAt := time.Unix(out[3].(*big.Int).Int64(), 0)
	if answer.Sign() <= 0 {
		return fail(apperror.New(apperror.CodeStaleFeed,
			apperror.WithContext(fmt.Sprintf("non-positive answer %s from %s", answer, aggregator.Hex()))))
	}

	price := asset.Price{
		Base:      f.referenceAsset(network),
		Quote:     asset.USD,
		Rate:      decimal.NewFromBigInt(answer, -int32(dec)),
		UpdatedAt: updatedAt,
	}
	if price.IsStale(f.now(), f.maxAge) {
		return fail(apperror.New(apperror.CodeStaleFeed,
			apperror.WithContext(fmt.Sprintf("%s updated %s", aggregator.Hex(), updatedAt.UTC().Format(time.RFC3339)))))
	}

	span.SetAttributes(attribute.String("price", price.Rate.String()))
	span.SetStatus(codes.Ok, "")
	return price, nil
}

func (f *Feed) feedDecimals(ctx context.Context, caller ethereum.ContractCaller, aggregator common.Address) (uint8, error) {
	f.decimalsMu.RLock()
	d, ok := f.decimals[aggregator]
	f.decimalsMu.RUnlock()
	if ok {
		return d, nil
	}

	out, err := f.read(ctx, caller, aggregator, "decimals")
	if err != nil {
		return 0, err
	}
	d = *abi.ConvertType(out[0], new(uint8)).(*uint8)

	f.decimalsMu.Lock()
	f.decimals[aggregator] = d
	f.decimalsMu.Unlock()
	return d, nil
}

func (f *Feed) read(ctx context.Context, caller ethereum.ContractCaller, aggregator common.Address, method string) ([]any, error) {
	data, err := f.abi.Pack(method)
	if err != nil {
		return nil, err
	}

	raw, err := f.cb.Execute(func() ([]byte, error) {
		return caller.CallContract(ctx, ethereum.CallMsg{To: &aggregator, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext(method+" on "+aggregator.Hex()))
	}

	out, err := f.abi.Unpack(method, raw)
	if err != nil || len(out) == 0 {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("decode "+method+" from "+aggregator.Hex()))
	}
	return out, nil
}

func (f *Feed) referenceAsset(network domain.Network) *asset.Asset {
	if a, ok := f.registry.Token(network.ChainID, network.WrappedNative); ok {
		return a
	}
	a, err := asset.New(asset.NativeID(network.ChainID), network.NativeSymbol, 18)
	if err != nil {
		return asset.WETH
	}
	return a
}
