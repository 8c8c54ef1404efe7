/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glycerine/idem"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/sysctrl-ipc/api"
	"github.com/srediag/sysctrl-ipc/internal/config"
	"github.com/srediag/sysctrl-ipc/internal/logger"
	"github.com/srediag/sysctrl-ipc/pkg/types"
)

const tracerName = "github.com/srediag/sysctrl-ipc/pkg/backend"

// State is the connection state of an endpoint. The only transition is
// StateNotConnected -> StateConnected.
type State int32

const (
	StateNotConnected State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateNotConnected:
		return "not_connected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Option configures an Endpoint
type Option func(*Endpoint)

// WithLogger sets the logger; the endpoint adds its own component attributes.
func WithLogger(l *logger.Logger) Option {
	return func(e *Endpoint) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDispatcher sets the consumer of inbound payloads. Without it inbound
// payloads are validated and discarded.
func WithDispatcher(d api.Dispatcher) Option {
	return func(e *Endpoint) {
		if d != nil {
			e.dispatcher = d
		}
	}
}

// WithErrorHandler replaces the default log-and-restart policy.
func WithErrorHandler(h ErrorHandler) Option {
	return func(e *Endpoint) {
		if h != nil {
			e.errHandler = h
		}
	}
}

// WithMetrics sets the collectors built by NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Endpoint) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer used for send and transmit spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Endpoint) {
		if t != nil {
			e.tracer = t
		}
	}
}

type endpointCounters struct {
	enqueued         atomic.Uint64
	transmitted      atomic.Uint64
	transmitFailures atomic.Uint64
	received         atomic.Uint64
	rejected         atomic.Uint64
	errors           atomic.Uint64
}

// Endpoint is one logical channel to the system controller. It owns the
// connection state, the outbound queue and the transmitter.
type Endpoint struct {
	cfg        config.EndpointConfig
	transport  api.Transport
	dispatcher api.Dispatcher
	errHandler ErrorHandler
	logger     *logger.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	connected atomic.Bool
	connEvent *idem.IdemCloseChan

	queue *packetQueue
	tx    *transmitter

	initialized atomic.Bool
	closeCtx    context.Context
	closeCancel context.CancelFunc
	closeOnce   sync.Once

	counters endpointCounters
}

// New creates an endpoint bound to transport. The configuration is fixed for
// the lifetime of the endpoint.
func New(cfg config.EndpointConfig, transport api.Transport, opts ...Option) (*Endpoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "transport cannot be nil")
	}

	e := &Endpoint{
		cfg:        cfg,
		transport:  transport,
		dispatcher: api.DispatcherFunc(func([]byte) {}),
		logger:     logger.NewNop(),
		tracer:     noop.NewTracerProvider().Tracer(tracerName),
		connEvent:  idem.NewIdemCloseChan(),
		queue:      newPacketQueue(cfg.QueueCapacity),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("component", "ipc_endpoint", "endpoint", cfg.Name)
	if e.errHandler == nil {
		e.errHandler = NewDefaultErrorHandler(e.logger, nil)
	}
	if e.metrics == nil {
		m, err := NewMetrics(nil, "", cfg.Name)
		if err != nil {
			return nil, err
		}
		e.metrics = m
	}
	e.closeCtx, e.closeCancel = context.WithCancel(context.Background())
	e.tx = newTransmitter(cfg.Name, e.drain)
	return e, nil
}

// Name returns the configured endpoint name
func (e *Endpoint) Name() string {
	return e.cfg.Name
}

// Config returns the configuration the endpoint was built with
func (e *Endpoint) Config() config.EndpointConfig {
	return e.cfg
}

// Initialize starts the transmitter, opens the transport instance and
// registers the endpoint callbacks. An already open instance is accepted.
// A failed Initialize may be retried; a successful one may not be repeated.
func (e *Endpoint) Initialize(ctx context.Context) (err error) {
	_, span := e.tracer.Start(ctx, "sysctrl_ipc.initialize",
		trace.WithAttributes(attribute.String("endpoint", e.cfg.Name)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if e.closeCtx.Err() != nil {
		return types.NewError(types.ErrCodeInvalidState, "endpoint closed")
	}
	if !e.initialized.CompareAndSwap(false, true) {
		return types.NewError(types.ErrCodeInvalidState, "endpoint already initialized")
	}

	e.tx.start()

	if err := e.transport.Open(); err != nil && !errors.Is(err, api.ErrAlreadyOpen) {
		e.initialized.Store(false)
		e.report(KindTransportOpen, err, false)
		return types.WrapError(types.ErrCodeTransport, "open transport instance", err)
	}

	err = e.transport.Register(api.EndpointConfig{
		Name: e.cfg.Name,
		Callbacks: api.EndpointCallbacks{
			Bound:    e.onBound,
			Received: e.onReceive,
		},
	})
	if err != nil {
		e.initialized.Store(false)
		e.report(KindEndpointRegister, err, false)
		return types.WrapError(types.ErrCodeTransport, "register endpoint", err)
	}

	e.logger.Info("Endpoint registered",
		"channel_id", e.cfg.ChannelID,
		"max_packet_size", e.cfg.MaxPacketSize,
		"queue_capacity", e.cfg.QueueCapacity)
	return nil
}

// onBound runs on the transport context when the remote endpoint is bound.
// The flag is set before the event is raised, so a waiter woken by the event
// always observes IsConnected.
func (e *Endpoint) onBound() {
	if e.connected.Swap(true) {
		return
	}
	e.connEvent.Close()
	e.metrics.Connected.Set(1)
	e.logger.Info("Endpoint bound")
}

// IsConnected reports whether the remote endpoint has been bound
func (e *Endpoint) IsConnected() bool {
	return e.connected.Load()
}

// State returns the current connection state
func (e *Endpoint) State() State {
	if e.connected.Load() {
		return StateConnected
	}
	return StateNotConnected
}

// WaitForConnection blocks until the endpoint is bound or ctx is done. Once
// bound it returns immediately on every call. On expiry the error carries
// code CONNECTION_TIMEOUT and wraps ctx.Err(); the endpoint is not affected.
func (e *Endpoint) WaitForConnection(ctx context.Context) error {
	if e.connected.Load() {
		return nil
	}
	select {
	case <-e.connEvent.Chan:
		return nil
	case <-ctx.Done():
		if e.connected.Load() {
			return nil
		}
		return types.WrapError(types.ErrCodeConnectionTimeout, "wait for connection", ctx.Err())
	}
}

// WaitForConnectionTimeout is WaitForConnection bounded by d. A zero d only
// checks the current state.
func (e *Endpoint) WaitForConnectionTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return e.WaitForConnection(ctx)
}

// Close stops the transmitter and drops every packet still queued. Senders
// waiting for room are released with INVALID_STATE. Close does not touch the
// transport, which may be shared with other endpoints.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closeCancel()
		e.tx.stop()
		dropped := e.queue.dispose()
		e.metrics.QueueDepth.Set(0)
		e.logger.Info("Endpoint closed", "dropped", dropped)
	})
	return nil
}

func (e *Endpoint) report(kind ErrorKind, err error, fatal bool) {
	e.counters.errors.Add(1)
	e.metrics.Errors.WithLabelValues(kind.String(), strconv.FormatBool(fatal)).Inc()
	e.errHandler.Report(kind, err, fatal)
}

// Stats is a point-in-time snapshot of an endpoint
type Stats struct {
	Name             string
	ChannelID        uint32
	State            State
	QueueDepth       int
	QueueCapacity    int
	Enqueued         uint64
	Transmitted      uint64
	TransmitFailures uint64
	Received         uint64
	Rejected         uint64
	Errors           uint64
}

// Stats returns the current counters of the endpoint
func (e *Endpoint) Stats() Stats {
	return Stats{
		Name:             e.cfg.Name,
		ChannelID:        e.cfg.ChannelID,
		State:            e.State(),
		QueueDepth:       e.queue.size(),
		QueueCapacity:    e.cfg.QueueCapacity,
		Enqueued:         e.counters.enqueued.Load(),
		Transmitted:      e.counters.transmitted.Load(),
		TransmitFailures: e.counters.transmitFailures.Load(),
		Received:         e.counters.received.Load(),
		Rejected:         e.counters.rejected.Load(),
		Errors:           e.counters.errors.Load(),
	}
}

// String returns a string representation of the stats
func (s Stats) String() string {
	return fmt.Sprintf("Endpoint{Name: %s, Channel: %d, State: %s, Queue: %d/%d, Enqueued: %d, Transmitted: %d, TransmitFailures: %d, Received: %d, Rejected: %d, Errors: %d}",
		s.Name, s.ChannelID, s.State, s.QueueDepth, s.QueueCapacity,
		s.Enqueued, s.Transmitted, s.TransmitFailures, s.Received, s.Rejected, s.Errors)
}

// String returns a string representation of the endpoint
func (e *Endpoint) String() string {
	return e.Stats().String()
}
