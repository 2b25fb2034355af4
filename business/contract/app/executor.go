package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainkit/business/contract/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/logger"
)

// ExecutorConfig configures transaction submission.
type ExecutorConfig struct {
	// PollInterval is the receipt polling period.
	PollInterval time.Duration
	// Confirmations is the default block depth to wait for.
	Confirmations uint64
}

// DefaultExecutorConfig returns 2s polling and one confirmation.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{PollInterval: 2 * time.Second, Confirmations: 1}
}

type executorMetrics struct {
	submitted   metric.Int64Counter
	failed      metric.Int64Counter
	confirmTime metric.Float64Histogram
	batchSize   metric.Int64Histogram
}

// Executor sends state-changing calls through a bound contract. Nonce
// allocation and submission are serialized per executor.
type Executor struct {
	binding *Binding
	backend ChainBackend
	cfg     ExecutorConfig
	log     logger.LoggerInterface
	tracer  trace.Tracer
	metrics *executorMetrics

	// mu serializes nonce allocation and submission
	mu sync.Mutex

	chainMu sync.Mutex
	chainID *big.Int
}

// NewExecutor creates an executor for binding.
func NewExecutor(binding *Binding, backend ChainBackend, cfg ExecutorConfig, log logger.LoggerInterface) (*Executor, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultExecutorConfig().PollInterval
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}

	e := &Executor{
		binding: binding,
		backend: backend,
		cfg:     cfg,
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
	if binding.cfg.ChainID != 0 {
		e.chainID = new(big.Int).SetUint64(binding.cfg.ChainID)
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init executor metrics: %w", err)
	}
	return e, nil
}

func (e *Executor) initMetrics() error {
	meter := otel.Meter(tracerName)
	e.metrics = &executorMetrics{}

	var err error
	e.metrics.submitted, err = meter.Int64Counter("contract_tx_submitted_total",
		metric.WithDescription("Transactions accepted by the node"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}
	e.metrics.failed, err = meter.Int64Counter("contract_tx_failed_total",
		metric.WithDescription("Transactions that failed submission or confirmation"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}
	e.metrics.confirmTime, err = meter.Float64Histogram("contract_tx_confirmation_seconds",
		metric.WithDescription("Time from submission to required confirmation depth"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	e.metrics.batchSize, err = meter.Int64Histogram("contract_tx_batch_size",
		metric.WithDescription("Transactions per batch"),
		metric.WithUnit("{tx}"),
	)
	return err
}

// signingState returns the bound state with a signer or the matching error.
func (e *Executor) signingState() (*bound, error) {
	st, err := e.binding.bound()
	if err != nil {
		return nil, err
	}
	if !st.hasSigner() {
		return nil, apperror.New(apperror.CodeNoSigningIdentity,
			apperror.WithContext(st.address.Hex()))
	}
	return st, nil
}

// GetNonce returns the signer's pending transaction count.
func (e *Executor) GetNonce(ctx context.Context) (uint64, error) {
	st, err := e.signingState()
	if err != nil {
		return 0, err
	}

	nonce, err := e.backend.PendingNonceAt(ctx, st.signer)
	if err != nil {
		return 0, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("pending nonce for "+st.signer.Hex()))
	}
	return nonce, nil
}

// EstimateGas estimates gas for a call without submitting it.
func (e *Executor) EstimateGas(ctx context.Context, method string, args ...any) (uint64, error) {
	st, err := e.binding.bound()
	if err != nil {
		return 0, err
	}

	ctx, span := e.tracer.Start(ctx, "contract.estimate_gas",
		trace.WithAttributes(attribute.String("contract.method", method)),
	)
	defer span.End()

	data, err := st.abi.Pack(method, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pack failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}

	msg := ethereum.CallMsg{To: &st.address, Data: data}
	if st.hasSigner() {
		msg.From = st.signer
	}

	gas, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}

	span.SetAttributes(attribute.Int64("tx.gas", int64(gas)))
	span.SetStatus(codes.Ok, "")
	return gas, nil
}

// SendTransaction signs, submits and waits for confirmation. A confirmation
// failure means the outcome is unknown: the transaction may still be mined.
// A reverted receipt is returned along with the error.
func (e *Executor) SendTransaction(ctx context.Context, method string, args []any, opts domain.TxOptions) (*domain.Receipt, error) {
	st, err := e.signingState()
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "contract.send_transaction",
		trace.WithAttributes(
			attribute.String("contract.address", st.address.Hex()),
			attribute.String("contract.method", method),
		),
	)
	defer span.End()

	e.mu.Lock()
	nonce := opts.Nonce
	if nonce == nil {
		n, err := e.backend.PendingNonceAt(ctx, st.signer)
		if err != nil {
			e.mu.Unlock()
			return nil, e.submissionError(ctx, span, method, err)
		}
		nonce = &n
	}
	tx, err := e.submit(ctx, st, method, args, opts, *nonce)
	e.mu.Unlock()
	if err != nil {
		return nil, e.submissionError(ctx, span, method, err)
	}

	return e.await(ctx, span, st, tx, opts.Confirmations)
}

// BatchTransactions sends reqs in order with nonces n, n+1, ... where n is
// fetched once. Each transaction is confirmed before the next is submitted.
// The batch stops at the first failure and is not rolled back.
func (e *Executor) BatchTransactions(ctx context.Context, reqs []domain.TxRequest) (domain.BatchResult, error) {
	result := domain.BatchResult{BatchID: uuid.NewString(), FailedIndex: -1}

	st, err := e.signingState()
	if err != nil {
		return result, err
	}
	if len(reqs) == 0 {
		return result, nil
	}

	ctx, span := e.tracer.Start(ctx, "contract.batch_transactions",
		trace.WithAttributes(
			attribute.String("batch.id", result.BatchID),
			attribute.Int("batch.size", len(reqs)),
		),
	)
	defer span.End()
	e.metrics.batchSize.Record(ctx, int64(len(reqs)))

	e.mu.Lock()
	defer e.mu.Unlock()

	start, err := e.backend.PendingNonceAt(ctx, st.signer)
	if err != nil {
		result.FailedIndex = 0
		return result, e.submissionError(ctx, span, reqs[0].Method, err)
	}
	result.StartNonce = start

	for i, req := range reqs {
		nonce := start + uint64(i)

		tx, err := e.submit(ctx, st, req.Method, req.Args, req.Options, nonce)
		if err != nil {
			result.FailedIndex = i
			e.log.Warn(ctx, "batch aborted at submission",
				"batch_id", result.BatchID, "index", i, "nonce", nonce, "error", err)
			return result, e.submissionError(ctx, span, req.Method, err)
		}

		receipt, err := e.await(ctx, span, st, tx, req.Options.Confirmations)
		if err != nil {
			result.FailedIndex = i
			e.log.Warn(ctx, "batch aborted awaiting confirmation",
				"batch_id", result.BatchID, "index", i, "nonce", nonce, "tx", tx.Hash().Hex(), "error", err)
			return result, err
		}
		result.Receipts = append(result.Receipts, receipt)
	}

	span.SetStatus(codes.Ok, "batch confirmed")
	e.log.Info(ctx, "batch confirmed",
		"batch_id", result.BatchID, "size", len(reqs), "start_nonce", start)
	return result, nil
}

// submit builds, signs and sends one transaction. Caller holds e.mu.
func (e *Executor) submit(ctx context.Context, st *bound, method string, args []any, opts domain.TxOptions, nonce uint64) (*types.Transaction, error) {
	if _, ok := st.methods[method]; !ok {
		return nil, errUnknownMethod(method)
	}

	data, err := st.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	value := opts.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		gasLimit, err = e.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  st.signer,
			To:    &st.address,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
	}

	chainID, err := e.resolveChainID(ctx)
	if err != nil {
		return nil, err
	}

	txData, err := e.feeFields(ctx, opts, nonce, gasLimit, st, value, data, chainID)
	if err != nil {
		return nil, err
	}

	signed, err := types.SignTx(types.NewTx(txData), types.LatestSignerForChainID(chainID), st.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	e.metrics.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	e.log.Info(ctx, "transaction submitted",
		"tx", signed.Hash().Hex(), "method", method, "nonce", nonce, "gas", gasLimit)
	return signed, nil
}

// feeFields picks EIP-1559 pricing when the head carries a base fee and legacy pricing otherwise.
func (e *Executor) feeFields(ctx context.Context, opts domain.TxOptions, nonce, gas uint64, st *bound, value *big.Int, data []byte, chainID *big.Int) (types.TxData, error) {
	to := st.address

	legacy := func(price *big.Int) types.TxData {
		return &types.LegacyTx{Nonce: nonce, GasPrice: price, Gas: gas, To: &to, Value: value, Data: data}
	}

	if opts.GasPrice != nil {
		return legacy(opts.GasPrice), nil
	}

	head, err := e.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}

	if head.BaseFee == nil {
		price, err := e.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return legacy(price), nil
	}

	tip := opts.GasTipCap
	if tip == nil {
		tip, err = e.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest tip cap: %w", err)
		}
	}

	feeCap := opts.GasFeeCap
	if feeCap == nil {
		feeCap = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
	}

	return &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	}, nil
}

func (e *Executor) resolveChainID(ctx context.Context) (*big.Int, error) {
	e.chainMu.Lock()
	defer e.chainMu.Unlock()

	if e.chainID != nil {
		return e.chainID, nil
	}
	id, err := e.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	e.chainID = id
	return id, nil
}

// await polls for the receipt until mined at the requested depth.
func (e *Executor) await(ctx context.Context, span trace.Span, st *bound, tx *types.Transaction, confirmations uint64) (*domain.Receipt, error) {
	if confirmations == 0 {
		confirmations = e.cfg.Confirmations
	}
	started := time.Now()

	fail := func(cause error, msg string) error {
		e.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "confirmation")))
		span.RecordError(cause)
		span.SetStatus(codes.Error, msg)
		return apperror.New(apperror.CodeTxConfirmationFailed,
			apperror.WithCause(cause),
			apperror.WithContext(tx.Hash().Hex()+": "+msg))
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		raw, err := e.backend.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil && raw != nil:
			confirmed, cerr := e.deepEnough(ctx, raw, confirmations)
			if cerr != nil {
				return nil, fail(cerr, "block number unavailable")
			}
			if !confirmed {
				break
			}

			receipt := domain.NewReceipt(raw, tx.Nonce())
			receipt.Events = st.decodeReceiptLogs(raw.Logs)
			e.metrics.confirmTime.Record(ctx, time.Since(started).Seconds())
			span.SetAttributes(
				attribute.String("tx.hash", tx.Hash().Hex()),
				attribute.Int64("tx.block", int64(receipt.BlockNumber)),
			)

			if !receipt.Succeeded() {
				return receipt, fail(errors.New("execution reverted"), "reverted")
			}
			span.SetStatus(codes.Ok, "confirmed")
			return receipt, nil

		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fail(err, "receipt lookup failed")
		}

		select {
		case <-ctx.Done():
			return nil, fail(ctx.Err(), "stopped waiting")
		case <-ticker.C:
		}
	}
}

func (e *Executor) deepEnough(ctx context.Context, r *types.Receipt, confirmations uint64) (bool, error) {
	if confirmations <= 1 || r.BlockNumber == nil {
		return true, nil
	}
	head, err := e.backend.BlockNumber(ctx)
	if err != nil {
		return false, err
	}
	return head+1 >= r.BlockNumber.Uint64()+confirmations, nil
}

func (e *Executor) submissionError(ctx context.Context, span trace.Span, method string, cause error) error {
	e.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "submission")))
	span.RecordError(cause)
	span.SetStatus(codes.Error, "submission failed")
	return apperror.New(apperror.CodeTxSubmissionFailed,
		apperror.WithCause(cause),
		apperror.WithContext(method))
}
