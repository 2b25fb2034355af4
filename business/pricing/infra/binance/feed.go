// Package binance prices a network's native asset from the Binance spot ticker.
// It is the last resort of the reference cascade when on-chain feeds fail.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

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
	"github.com/fd1az/chainkit/internal/httpclient"
	"github.com/fd1az/chainkit/internal/logger"
)

const (
	tracerName = "binance"

	// Binance REST API endpoints
	BaseAPIURL   = "https://api.binance.com"
	BaseAPIURLUS = "https://api.binance.us"

	tickerEndpoint = "/api/v3/ticker/price"

	httpTimeout = 10 * time.Second
)

var _ app.ReferenceFeed = (*Feed)(nil)

// Config holds configuration for the Binance feed.
type Config struct {
	BaseURL string        // API base URL (empty = default)
	Timeout time.Duration // Request timeout
}

// Feed reads the last traded price of a network's CEX symbol. Stablecoin
// quoted pairs (USDT, USDC, BUSD) are treated as USD.
type Feed struct {
	client   httpclient.Client
	cb       *circuitbreaker.CircuitBreaker[decimal.Decimal]
	registry *asset.Registry
	now      func() time.Time
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

// NewFeed creates a Binance ticker feed.
func NewFeed(cfg Config, registry *asset.Registry, log logger.LoggerInterface) (*Feed, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseAPIURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Feed{
		client:   client,
		cb:       circuitbreaker.New[decimal.Decimal](circuitbreaker.DefaultConfig("binance")),
		registry: registry,
		now:      time.Now,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

func (f *Feed) Name() string { return "binance" }

// tickerResponse is the REST API response for a single symbol ticker.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// USDPrice fetches the ticker of network.CEXSymbol.
func (f *Feed) USDPrice(ctx context.Context, network domain.Network) (asset.Price, error) {
	symbol := strings.ToUpper(network.CEXSymbol)

	ctx, span := f.tracer.Start(ctx, "binance.http.ticker_price",
		trace.WithAttributes(
			attribute.String("network", network.Name),
			attribute.String("symbol", symbol),
		),
	)
	defer span.End()

	if symbol == "" || !usdQuoted(symbol) {
		err := apperror.New(apperror.CodeFeedNotConfigured,
			apperror.WithContext(fmt.Sprintf("no USD-quoted binance symbol for %s (%q)", network.Name, symbol)))
		span.SetStatus(codes.Error, "no symbol")
		return asset.Price{}, err
	}

	rate, err := f.cb.Execute(func() (decimal.Decimal, error) {
		return f.ticker(ctx, symbol)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if circuitbreaker.IsOpen(err) {
			return asset.Price{}, apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err), apperror.WithContext("binance"))
		}
		return asset.Price{}, err
	}

	span.SetAttributes(attribute.String("price", rate.String()))
	span.SetStatus(codes.Ok, "")
	f.logger.Debug(ctx, "fetched ticker via HTTP", "symbol", symbol, "price", rate.String())

	return asset.Price{
		Base:      f.referenceAsset(network),
		Quote:     asset.USD,
		Rate:      rate,
		UpdatedAt: f.now(),
	}, nil
}

func (f *Feed) ticker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var result tickerResponse
	_, err := f.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "ticker_price"),
			httpclient.NewLabel("symbol", symbol),
		),
		httpclient.WithResponseErrorHandler(binanceErrorHandler),
	).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(ctx, tickerEndpoint)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeBinanceAPIError,
			apperror.WithCause(err),
			apperror.WithContext("ticker "+symbol))
	}

	rate, err := decimal.NewFromString(result.Price)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, apperror.New(apperror.CodeBinanceAPIError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("ticker %s returned price %q", symbol, result.Price)))
	}
	return rate, nil
}

func (f *Feed) referenceAsset(network domain.Network) *asset.Asset {
	if a, ok := f.registry.Token(network.ChainID, network.WrappedNative); ok {
		return a
	}
	return asset.MustNew(asset.NativeID(network.ChainID), network.NativeSymbol, 18)
}

func usdQuoted(symbol string) bool {
	for _, q := range []string{"USDT", "USDC", "FDUSD", "BUSD", "USD"} {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return true
		}
	}
	return false
}

// APIError represents an error response from Binance API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

// binanceErrorHandler parses Binance API error responses.
func binanceErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
