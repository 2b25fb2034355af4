// Package etherscan resolves verified contract ABIs through the Etherscan V2 API.
package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/circuitbreaker"
	"github.com/fd1az/chainkit/internal/httpclient"
	"github.com/fd1az/chainkit/internal/logger"
	"github.com/fd1az/chainkit/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/chainkit/business/contract/infra/etherscan"

	// DefaultBaseURL is the multichain V2 endpoint; the chain is a query parameter.
	DefaultBaseURL = "https://api.etherscan.io/v2/api"

	defaultTimeout = 10 * time.Second
	defaultRPS     = 5
)

// ChainIDs maps the network names the explorer understands to chain IDs.
var ChainIDs = map[string]uint64{
	"mainnet":  1,
	"sepolia":  11155111,
	"holesky":  17000,
	"polygon":  137,
	"amoy":     80002,
	"arbitrum": 42161,
	"optimism": 10,
	"base":     8453,
	"bsc":      56,
}

// Config configures the explorer client.
type Config struct {
	BaseURL string
	RPS     float64
	Burst   int
	Timeout time.Duration
	// Networks adds or overrides entries of ChainIDs.
	Networks map[string]uint64
}

type explorerMetrics struct {
	lookups  metric.Int64Counter
	failures metric.Int64Counter
}

// Explorer fetches ABIs for verified contracts.
type Explorer struct {
	client  httpclient.Client
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[string]
	chains  map[string]uint64
	log     logger.LoggerInterface
	tracer  trace.Tracer
	metrics *explorerMetrics
}

// response is the envelope every Etherscan endpoint returns. Result is a
// string for getabi but an object for some errors, so it stays raw.
type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// New creates an explorer client.
func New(cfg Config, log logger.LoggerInterface) (*Explorer, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("etherscan"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithRedactedParams("apikey"),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	chains := make(map[string]uint64, len(ChainIDs)+len(cfg.Networks))
	for name, id := range ChainIDs {
		chains[name] = id
	}
	for name, id := range cfg.Networks {
		chains[strings.ToLower(name)] = id
	}

	breaker := circuitbreaker.DefaultConfig("etherscan")
	// an unverified contract is an answer, not an outage
	breaker.IsSuccessful = func(err error) bool {
		return err == nil || apperror.HasCode(err, apperror.CodeABIResolutionFailed)
	}

	e := &Explorer{
		client:  client,
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
		cb:      circuitbreaker.New[string](breaker),
		chains:  chains,
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return e, nil
}

func (e *Explorer) initMetrics() error {
	meter := otel.Meter(tracerName)
	e.metrics = &explorerMetrics{}

	var err error
	e.metrics.lookups, err = meter.Int64Counter("explorer_abi_lookups_total",
		metric.WithDescription("ABI lookups sent to the block explorer"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}
	e.metrics.failures, err = meter.Int64Counter("explorer_abi_failures_total",
		metric.WithDescription("ABI lookups that failed"),
		metric.WithUnit("{lookup}"),
	)
	return err
}

// FetchABI returns the verified ABI JSON of address on network.
func (e *Explorer) FetchABI(ctx context.Context, network string, address common.Address, apiKey string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "etherscan.get_abi",
		trace.WithAttributes(
			attribute.String("network", network),
			attribute.String("address", address.Hex()),
		),
	)
	defer span.End()

	chainID, ok := e.chains[strings.ToLower(network)]
	if !ok {
		err := apperror.New(apperror.CodeUnknownNetwork, apperror.WithContext("explorer network "+network))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown network")
		return "", err
	}
	if apiKey == "" {
		return "", apperror.New(apperror.CodeConfigurationError, apperror.WithContext("explorer api key is empty"))
	}

	if err := e.limiter.Wait(ctx, apiKey); err != nil {
		return "", apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}

	e.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("network", network)))

	raw, err := e.cb.Execute(func() (string, error) {
		return e.getABI(ctx, chainID, address, apiKey)
	})
	if err != nil {
		e.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("network", network)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		if circuitbreaker.IsOpen(err) {
			return "", apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err), apperror.WithContext("etherscan"))
		}
		return "", err
	}

	span.SetStatus(codes.Ok, "")
	e.log.Debug(ctx, "abi fetched from explorer", "network", network, "address", address.Hex(), "bytes", len(raw))
	return raw, nil
}

func (e *Explorer) getABI(ctx context.Context, chainID uint64, address common.Address, apiKey string) (string, error) {
	var out response
	_, err := e.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("action", "getabi")),
	).
		SetQueryParam("chainid", strconv.FormatUint(chainID, 10)).
		SetQueryParam("module", "contract").
		SetQueryParam("action", "getabi").
		SetQueryParam("address", address.Hex()).
		SetQueryParam("apikey", apiKey).
		SetResult(&out).
		Get(ctx, "")
	if err != nil {
		return "", apperror.New(apperror.CodeExplorerAPIError,
			apperror.WithCause(err),
			apperror.WithContext("getabi "+address.Hex()))
	}

	var result string
	if err := json.Unmarshal(out.Result, &result); err != nil {
		result = string(out.Result)
	}

	if out.Status != "1" {
		// Etherscan reports unverified contracts and key problems the same way
		if strings.Contains(strings.ToLower(result), "not verified") {
			return "", apperror.New(apperror.CodeABIResolutionFailed,
				apperror.WithContext(address.Hex()+": "+result))
		}
		return "", apperror.New(apperror.CodeExplorerAPIError,
			apperror.WithContext(fmt.Sprintf("%s: %s", out.Message, result)))
	}
	return result, nil
}
