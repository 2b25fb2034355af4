package app

import (
	"context"
	"crypto/ecdsa"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainkit/business/contract/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/logger"
)

const tracerName = "github.com/fd1az/chainkit/business/contract"

type bindingState int

const (
	stateUnbound bindingState = iota
	stateBound
	stateClosed
)

// bound is the immutable result of a successful Initialize.
type bound struct {
	address common.Address
	rawABI  string
	abi     abi.ABI
	methods map[string]domain.MethodDescriptor
	events  map[string]domain.EventDescriptor
	key     *ecdsa.PrivateKey
	signer  common.Address
}

func (b *bound) hasSigner() bool { return b.key != nil }

// Binding resolves and holds a contract's ABI and address. It is unbound until
// Initialize succeeds and cannot be re-initialized.
type Binding struct {
	cfg      domain.ContractConfig
	backend  ChainBackend
	resolver ABIResolver
	log      logger.LoggerInterface
	tracer   trace.Tracer

	mu    sync.RWMutex
	state bindingState
	b     *bound
}

// NewBinding creates an unbound binding. resolver may be nil when the ABI is inline.
func NewBinding(cfg domain.ContractConfig, backend ChainBackend, resolver ABIResolver, log logger.LoggerInterface) *Binding {
	return &Binding{
		cfg:      cfg,
		backend:  backend,
		resolver: resolver,
		log:      log,
		tracer:   otel.Tracer(tracerName),
	}
}

// Initialize resolves the ABI and, when a private key is configured, binds the signing identity.
func (b *Binding) Initialize(ctx context.Context) error {
	ctx, span := b.tracer.Start(ctx, "contract.initialize",
		trace.WithAttributes(
			attribute.String("contract.address", b.cfg.Address),
			attribute.String("contract.network", b.cfg.Network),
		),
	)
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateUnbound {
		return apperror.New(apperror.CodeContractAlreadyInitialized,
			apperror.WithContext(b.cfg.Address))
	}

	if !common.IsHexAddress(b.cfg.Address) {
		return apperror.New(apperror.CodeInvalidAddress,
			apperror.WithContext("contract address "+b.cfg.Address))
	}
	address := common.HexToAddress(b.cfg.Address)

	raw, err := b.resolveABI(ctx, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "abi resolution failed")
		return err
	}

	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid abi")
		return apperror.New(apperror.CodeABIResolutionFailed,
			apperror.WithCause(err),
			apperror.WithContext("abi is not valid JSON interface"))
	}

	st := &bound{
		address: address,
		rawABI:  raw,
		abi:     parsed,
		methods: make(map[string]domain.MethodDescriptor, len(parsed.Methods)),
		events:  make(map[string]domain.EventDescriptor, len(parsed.Events)),
	}
	for name, m := range parsed.Methods {
		st.methods[name] = domain.NewMethodDescriptor(m)
	}
	for name, e := range parsed.Events {
		st.events[name] = domain.NewEventDescriptor(e)
	}

	if b.cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(b.cfg.PrivateKey), "0x"))
		if err != nil {
			// the cause can echo key material
			return apperror.New(apperror.CodeInvalidPrivateKey)
		}
		st.key = key
		st.signer = crypto.PubkeyToAddress(key.PublicKey)
	}

	b.b = st
	b.state = stateBound

	span.SetAttributes(
		attribute.Int("contract.methods", len(st.methods)),
		attribute.Int("contract.events", len(st.events)),
		attribute.Bool("contract.signer", st.hasSigner()),
	)
	span.SetStatus(codes.Ok, "bound")
	b.log.Info(ctx, "contract bound",
		"address", address.Hex(),
		"network", b.cfg.Network,
		"methods", len(st.methods),
		"events", len(st.events),
		"signer", st.signer.Hex(),
	)

	return nil
}

func (b *Binding) resolveABI(ctx context.Context, address common.Address) (string, error) {
	if strings.TrimSpace(b.cfg.ABI) != "" {
		return b.cfg.ABI, nil
	}

	if !b.cfg.UsesExplorer() {
		return "", apperror.New(apperror.CodeABIResolutionFailed,
			apperror.WithContext("no ABI supplied and no explorer credentials"))
	}
	if b.resolver == nil {
		return "", apperror.New(apperror.CodeABIResolutionFailed,
			apperror.WithContext("no block explorer configured"))
	}

	raw, err := b.resolver.FetchABI(ctx, b.cfg.ExplorerNetwork, address, b.cfg.ExplorerAPIKey)
	if err != nil {
		return "", apperror.New(apperror.CodeABIResolutionFailed,
			apperror.WithCause(err),
			apperror.WithContext("explorer lookup for "+address.Hex()+" on "+b.cfg.ExplorerNetwork))
	}
	return raw, nil
}

// Call invokes a method through eth_call against the latest block. It has no
// side effects even for state-changing methods.
func (b *Binding) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	st, err := b.bound()
	if err != nil {
		return nil, err
	}

	ctx, span := b.tracer.Start(ctx, "contract.call",
		trace.WithAttributes(
			attribute.String("contract.address", st.address.Hex()),
			attribute.String("contract.method", method),
		),
	)
	defer span.End()

	fail := func(cause error, msg string) ([]any, error) {
		span.RecordError(cause)
		span.SetStatus(codes.Error, msg)
		return nil, apperror.New(apperror.CodeMethodInvocationFailed,
			apperror.WithCause(cause),
			apperror.WithContext(method+": "+msg))
	}

	if _, ok := st.methods[method]; !ok {
		return fail(errUnknownMethod(method), "unknown method")
	}

	data, err := st.abi.Pack(method, args...)
	if err != nil {
		return fail(err, "argument packing failed")
	}

	msg := ethereum.CallMsg{To: &st.address, Data: data}
	if st.hasSigner() {
		msg.From = st.signer
	}

	out, err := b.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return fail(err, "call failed")
	}

	values, err := st.abi.Unpack(method, out)
	if err != nil {
		return fail(err, "output decoding failed")
	}

	span.SetStatus(codes.Ok, "")
	return values, nil
}

// Close tears the binding down; later operations fail as not initialized.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
}

func (b *Binding) bound() (*bound, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.state != stateBound {
		return nil, apperror.New(apperror.CodeContractNotInitialized,
			apperror.WithContext(b.cfg.Address))
	}
	return b.b, nil
}

// IsInitialized reports whether the binding is bound and not closed.
func (b *Binding) IsInitialized() bool {
	_, err := b.bound()
	return err == nil
}

// Config returns the configuration the binding was created with, without the key.
func (b *Binding) Config() domain.ContractConfig {
	cfg := b.cfg
	cfg.PrivateKey = ""
	return cfg
}

// Address returns the bound address; zero before Initialize.
func (b *Binding) Address() common.Address {
	if st, err := b.bound(); err == nil {
		return st.address
	}
	return common.Address{}
}

// ABI returns the resolved ABI JSON.
func (b *Binding) ABI() string {
	if st, err := b.bound(); err == nil {
		return st.rawABI
	}
	return ""
}

// Method looks up a method descriptor.
func (b *Binding) Method(name string) (domain.MethodDescriptor, bool) {
	st, err := b.bound()
	if err != nil {
		return domain.MethodDescriptor{}, false
	}
	m, ok := st.methods[name]
	return m, ok
}

// Methods returns every method descriptor sorted by name.
func (b *Binding) Methods() []domain.MethodDescriptor {
	st, err := b.bound()
	if err != nil {
		return nil
	}
	out := make([]domain.MethodDescriptor, 0, len(st.methods))
	for _, m := range st.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Event looks up an event descriptor.
func (b *Binding) Event(name string) (domain.EventDescriptor, bool) {
	st, err := b.bound()
	if err != nil {
		return domain.EventDescriptor{}, false
	}
	e, ok := st.events[name]
	return e, ok
}

// Events returns every event descriptor sorted by name.
func (b *Binding) Events() []domain.EventDescriptor {
	st, err := b.bound()
	if err != nil {
		return nil
	}
	out := make([]domain.EventDescriptor, 0, len(st.events))
	for _, e := range st.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasSigner reports whether a signing identity is bound.
func (b *Binding) HasSigner() bool {
	st, err := b.bound()
	return err == nil && st.hasSigner()
}

// SignerAddress returns the signing identity's address.
func (b *Binding) SignerAddress() (common.Address, bool) {
	st, err := b.bound()
	if err != nil || !st.hasSigner() {
		return common.Address{}, false
	}
	return st.signer, true
}
