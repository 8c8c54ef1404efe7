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

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/sysctrl-ipc/pkg/types"
)

// Priority is a hint attached to a send. It is recorded in logs and spans and
// does not change queue order.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

const (
	rejectClosed       = "closed"
	rejectNotConnected = "not_connected"
	rejectSize         = "size"
	rejectCapacity     = "capacity"
)

// Send enqueues msg for transmission without waiting for queue room.
//
// It fails with INVALID_STATE before the endpoint is bound, with SIZE when
// len(msg) is not below the configured maximum and with CAPACITY when the
// queue is full. msg is copied; the caller may reuse it once Send returns.
func (e *Endpoint) Send(msg []byte) error {
	return e.send(context.Background(), msg, PriorityNormal, false)
}

// SendEx is Send that waits for queue room until ctx is done. A ctx without
// deadline waits until room frees up or the endpoint is closed. Expiry only
// abandons the wait; packets already queued are unaffected.
func (e *Endpoint) SendEx(ctx context.Context, msg []byte, prio Priority) error {
	return e.send(ctx, msg, prio, true)
}

func (e *Endpoint) send(ctx context.Context, msg []byte, prio Priority, wait bool) error {
	ctx, span := e.tracer.Start(ctx, "sysctrl_ipc.send",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("endpoint", e.cfg.Name),
			attribute.Int("size", len(msg)),
			attribute.String("priority", prio.String()),
		))
	defer span.End()

	err := e.enqueue(ctx, msg, wait)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("Send rejected", "size", len(msg), "priority", prio.String(), "error", err)
	}
	return err
}

func (e *Endpoint) enqueue(ctx context.Context, msg []byte, wait bool) error {
	if e.closeCtx.Err() != nil {
		e.reject(rejectClosed)
		return types.NewError(types.ErrCodeInvalidState, "endpoint closed")
	}
	if !e.connected.Load() {
		e.reject(rejectNotConnected)
		return types.NewError(types.ErrCodeInvalidState, "endpoint not connected")
	}
	if len(msg) >= e.cfg.MaxPacketSize {
		e.reject(rejectSize)
		return types.NewError(types.ErrCodeSize,
			fmt.Sprintf("message of %d bytes, limit is below %d", len(msg), e.cfg.MaxPacketSize))
	}

	pkt := newPacket(e.cfg.ChannelID, msg)
	var err error
	if wait {
		waitCtx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(e.closeCtx, cancel)
		err = e.queue.put(waitCtx, pkt)
		stop()
		cancel()
	} else {
		err = e.queue.tryPut(pkt)
	}
	if err != nil {
		pkt.release()
		if errors.Is(err, queuepkg.ErrDisposed) || e.closeCtx.Err() != nil {
			e.reject(rejectClosed)
			return types.WrapError(types.ErrCodeInvalidState, "endpoint closed", err)
		}
		e.reject(rejectCapacity)
		return types.WrapError(types.ErrCodeCapacity, "outbound queue full", err)
	}

	e.counters.enqueued.Add(1)
	e.metrics.Enqueued.Inc()
	e.metrics.QueueDepth.Set(float64(e.queue.size()))
	e.tx.schedule()
	return nil
}

func (e *Endpoint) reject(reason string) {
	e.counters.rejected.Add(1)
	e.metrics.Rejected.WithLabelValues(reason).Inc()
}

// drain runs on the transmitter goroutine only.
func (e *Endpoint) drain() {
	for {
		pkt, ok := e.queue.pop()
		if !ok {
			break
		}
		e.transmit(pkt)
	}
	e.metrics.QueueDepth.Set(float64(e.queue.size()))
}

func (e *Endpoint) transmit(pkt *Packet) {
	defer pkt.release()

	_, span := e.tracer.Start(context.Background(), "sysctrl_ipc.transmit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("endpoint", e.cfg.Name),
			attribute.Int64("channel_id", int64(pkt.ChannelID)),
			attribute.Int("size", pkt.Size),
		))
	defer span.End()

	if err := e.transport.Send(pkt.Bytes()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.counters.transmitFailures.Add(1)
		e.metrics.TransmitFailures.Inc()
		e.report(KindTransmit, types.WrapError(types.ErrCodeTransport, "transport send", err), false)
		return
	}
	e.counters.transmitted.Add(1)
	e.metrics.Transmitted.Inc()
}
