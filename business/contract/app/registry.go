package app

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainkit/business/contract/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/logger"
)

const logBufferSize = 128

type listener struct {
	id       string
	event    abi.Event
	callback domain.EventCallback
	sub      ethereum.Subscription
	cancel   context.CancelFunc

	active     atomic.Bool
	inCallback atomic.Bool
	// gate is held from the active check until the callback returns
	gate sync.Mutex
}

// EventRegistry manages live event subscriptions and historical queries for
// one binding. Listener IDs are "<event>_<unix-millis>", with a sequence
// suffix when that millisecond was already used for the event.
type EventRegistry struct {
	binding *Binding
	backend ChainBackend
	log     logger.LoggerInterface
	tracer  trace.Tracer
	now     func() time.Time

	seq atomic.Uint64

	mu         sync.Mutex
	listeners  map[string]*listener
	lastMillis map[string]int64
	closed     bool
}

// RegistryOption configures an EventRegistry.
type RegistryOption func(*EventRegistry)

// WithRegistryClock overrides the clock used to build listener IDs.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *EventRegistry) { r.now = now }
}

// NewEventRegistry creates a registry for binding.
func NewEventRegistry(binding *Binding, backend ChainBackend, log logger.LoggerInterface, opts ...RegistryOption) *EventRegistry {
	r := &EventRegistry{
		binding:    binding,
		backend:    backend,
		log:        log,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		listeners:  make(map[string]*listener),
		lastMillis: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers callback for eventName. The callback runs on a
// dedicated goroutine, once per matching log, in node delivery order.
func (r *EventRegistry) Subscribe(ctx context.Context, eventName string, callback domain.EventCallback, filter domain.EventFilter) (string, error) {
	st, err := r.binding.bound()
	if err != nil {
		return "", err
	}

	ctx, span := r.tracer.Start(ctx, "contract.subscribe",
		trace.WithAttributes(
			attribute.String("contract.address", st.address.Hex()),
			attribute.String("contract.event", eventName),
		),
	)
	defer span.End()

	ev, ok := st.abi.Events[eventName]
	if !ok {
		return "", apperror.New(apperror.CodeUnknownEvent, apperror.WithContext(eventName))
	}

	query, err := filterQuery(st.address, ev, filter.Indexed)
	if err != nil {
		return "", apperror.New(apperror.CodeEventSubscribeFailed,
			apperror.WithCause(err),
			apperror.WithContext(eventName+": invalid filter"))
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", apperror.New(apperror.CodeRegistryClosed, apperror.WithContext(eventName))
	}
	r.mu.Unlock()

	logs := make(chan types.Log, logBufferSize)
	sub, err := r.backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return "", apperror.New(apperror.CodeEventSubscribeFailed,
			apperror.WithCause(err),
			apperror.WithContext(eventName))
	}

	deliverCtx, cancel := context.WithCancel(context.Background())
	l := &listener{
		event:    ev,
		callback: callback,
		sub:      sub,
		cancel:   cancel,
	}
	l.active.Store(true)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		sub.Unsubscribe()
		return "", apperror.New(apperror.CodeRegistryClosed, apperror.WithContext(eventName))
	}
	l.id = r.nextID(eventName)
	r.listeners[l.id] = l
	r.mu.Unlock()

	go r.deliver(deliverCtx, l, logs)

	span.SetAttributes(attribute.String("listener.id", l.id))
	span.SetStatus(codes.Ok, "")
	r.log.Info(ctx, "event listener registered", "listener", l.id, "event", eventName)
	return l.id, nil
}

// nextID builds a listener ID unique for the registry's lifetime. Caller holds r.mu.
func (r *EventRegistry) nextID(event string) string {
	ms := r.now().UnixMilli()
	if last, ok := r.lastMillis[event]; ok && ms <= last {
		return fmt.Sprintf("%s_%d_%d", event, ms, r.seq.Add(1))
	}
	r.lastMillis[event] = ms
	return fmt.Sprintf("%s_%d", event, ms)
}

func (r *EventRegistry) deliver(ctx context.Context, l *listener, logs <-chan types.Log) {
	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-l.sub.Err():
			if !ok {
				return
			}
			r.log.Error(context.Background(), "event subscription dropped by node",
				"listener", l.id, "error", err)
			r.remove(l.id)
			return

		case lg := <-logs:
			ev, err := decodeLog(l.event, lg)
			if err != nil {
				r.log.Warn(context.Background(), "undecodable event log",
					"listener", l.id, "tx", lg.TxHash.Hex(), "error", err)
				continue
			}
			r.invoke(l, ev)
		}
	}
}

func (r *EventRegistry) invoke(l *listener, ev domain.Event) {
	l.gate.Lock()
	defer l.gate.Unlock()

	if !l.active.Load() {
		return
	}

	l.inCallback.Store(true)
	defer l.inCallback.Store(false)

	defer func() {
		if p := recover(); p != nil {
			r.log.Error(context.Background(), "event callback panicked",
				"listener", l.id, "panic", fmt.Sprint(p))
		}
	}()
	l.callback(ev)
}

// Unsubscribe removes a listener. Unknown IDs are logged and ignored. No
// callback for id starts after Unsubscribe returns.
func (r *EventRegistry) Unsubscribe(id string) error {
	l := r.remove(id)
	if l == nil {
		r.log.Warn(context.Background(), "unsubscribe of unknown listener", "listener", id)
		return nil
	}
	r.log.Info(context.Background(), "event listener removed", "listener", id)
	return nil
}

// remove detaches the listener and stops its delivery goroutine.
func (r *EventRegistry) remove(id string) *listener {
	r.mu.Lock()
	l, ok := r.listeners[id]
	if ok {
		delete(r.listeners, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	l.active.Store(false)
	// a running callback may be the caller; waiting on the gate would deadlock
	if !l.inCallback.Load() {
		l.gate.Lock()
		l.gate.Unlock()
	}
	l.cancel()
	l.sub.Unsubscribe()
	return l
}

// GetPastEvents runs a one-shot historical query. It never registers a listener.
func (r *EventRegistry) GetPastEvents(ctx context.Context, eventName string, q domain.PastEventsQuery) ([]domain.Event, error) {
	st, err := r.binding.bound()
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "contract.past_events",
		trace.WithAttributes(
			attribute.String("contract.address", st.address.Hex()),
			attribute.String("contract.event", eventName),
		),
	)
	defer span.End()

	ev, ok := st.abi.Events[eventName]
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownEvent, apperror.WithContext(eventName))
	}

	query, err := filterQuery(st.address, ev, q.Indexed)
	if err != nil {
		return nil, apperror.New(apperror.CodeEventQueryFailed,
			apperror.WithCause(err),
			apperror.WithContext(eventName+": invalid filter"))
	}

	query.FromBlock = new(big.Int)
	if q.FromBlock != nil {
		query.FromBlock.SetUint64(*q.FromBlock)
	}
	if q.ToBlock != nil {
		query.ToBlock = new(big.Int).SetUint64(*q.ToBlock)
	}

	logs, err := r.backend.FilterLogs(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "filter logs failed")
		return nil, apperror.New(apperror.CodeEventQueryFailed,
			apperror.WithCause(err),
			apperror.WithContext(eventName))
	}

	events := make([]domain.Event, 0, len(logs))
	for _, lg := range logs {
		decoded, err := decodeLog(ev, lg)
		if err != nil {
			r.log.Warn(ctx, "skipping undecodable log", "event", eventName, "tx", lg.TxHash.Hex(), "error", err)
			continue
		}
		events = append(events, decoded)
	}

	span.SetAttributes(attribute.Int("events.count", len(events)))
	span.SetStatus(codes.Ok, "")
	return events, nil
}

// Disconnect unsubscribes every listener and refuses new subscriptions. Idempotent.
func (r *EventRegistry) Disconnect() {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.remove(id)
	}
	if len(ids) > 0 {
		r.log.Info(context.Background(), "event registry disconnected", "listeners", len(ids))
	}
}

// Active returns the registered listener IDs in sorted order.
func (r *EventRegistry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func filterQuery(address common.Address, ev abi.Event, indexed [][]any) (ethereum.FilterQuery, error) {
	q := ethereum.FilterQuery{Addresses: []common.Address{address}}

	rest, err := abi.MakeTopics(indexed...)
	if err != nil {
		return q, err
	}

	if ev.Anonymous {
		q.Topics = rest
		return q, nil
	}
	q.Topics = append([][]common.Hash{{ev.ID}}, rest...)
	return q, nil
}
