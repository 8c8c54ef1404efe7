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

// Package dispatch fans inbound payloads out to named handlers without
// blocking the transport that delivered them.
package dispatch

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/srediag/sysctrl-ipc/internal/logger"
	"github.com/srediag/sysctrl-ipc/pkg/types"
)

// DefaultWorkers bounds concurrent handler invocations when New gets zero
const DefaultWorkers = 4

// Handler consumes one payload. It owns data.
type Handler func(data []byte)

// Dispatcher implements api.Dispatcher. Notify copies the payload once per
// handler and submits the calls to a non-blocking worker pool; when the pool
// is saturated the payload is dropped for that handler and counted. Handlers
// may run concurrently and in any order.
type Dispatcher struct {
	handlers cmap.ConcurrentMap[string, Handler]
	pool     *ants.Pool
	logger   *logger.Logger

	// gate orders Notify's inflight.Add against Close's inflight.Wait
	gate     sync.RWMutex
	closed   bool
	inflight sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// Stats is a snapshot of dispatcher counters
type Stats struct {
	Handlers  int
	Running   int
	Delivered uint64
	Dropped   uint64
	Panics    uint64
}

// String returns a string representation of the stats
func (s Stats) String() string {
	return fmt.Sprintf("Dispatcher{Handlers: %d, Running: %d, Delivered: %d, Dropped: %d, Panics: %d}",
		s.Handlers, s.Running, s.Delivered, s.Dropped, s.Panics)
}

// New creates a dispatcher running at most workers handlers at a time
func New(workers int, log *logger.Logger) (*Dispatcher, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = logger.NewNop()
	}
	d := &Dispatcher{
		handlers: cmap.New[Handler](),
		logger:   log.With("component", "ipc_dispatcher"),
	}
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithLogger(d.logger),
		ants.WithPanicHandler(func(p any) {
			d.panics.Add(1)
			d.logger.Error("Handler panicked", "panic", p)
		}),
	)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "create dispatcher pool", err)
	}
	d.pool = pool
	return d, nil
}

// Subscribe adds h under name. Names are unique.
func (d *Dispatcher) Subscribe(name string, h Handler) error {
	if name == "" || h == nil {
		return types.NewError(types.ErrCodeInvalidArgument, "handler name and function are required")
	}
	if !d.handlers.SetIfAbsent(name, h) {
		return types.NewError(types.ErrCodeAlreadyExists, fmt.Sprintf("handler %s already subscribed", name))
	}
	d.logger.Debug("Handler subscribed", "handler", name)
	return nil
}

// Unsubscribe removes the handler registered under name
func (d *Dispatcher) Unsubscribe(name string) {
	d.handlers.Remove(name)
}

// Handlers returns the subscribed names in lexical order
func (d *Dispatcher) Handlers() []string {
	names := d.handlers.Keys()
	sort.Strings(names)
	return names
}

// Notify implements api.Dispatcher. It never blocks on handlers. Payloads
// arriving after Close are counted as dropped.
func (d *Dispatcher) Notify(data []byte) {
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	for name, h := range d.handlers.Items() {
		payload := append(make([]byte, 0, len(data)), data...)
		handler := h
		d.inflight.Add(1)
		err := d.pool.Submit(func() {
			defer d.inflight.Done()
			handler(payload)
			d.delivered.Add(1)
		})
		if err != nil {
			d.inflight.Done()
			d.dropped.Add(1)
			d.logger.Warn("Payload dropped", "handler", name, "size", len(data), "error", err)
		}
	}
}

// Wait blocks until every submitted handler call has returned
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Stats returns the current counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Handlers:  d.handlers.Count(),
		Running:   d.pool.Running(),
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Panics:    d.panics.Load(),
	}
}

// Close waits for in-flight handlers and releases the worker pool
func (d *Dispatcher) Close() error {
	d.gate.Lock()
	if d.closed {
		d.gate.Unlock()
		return nil
	}
	d.closed = true
	d.gate.Unlock()

	d.inflight.Wait()
	d.pool.Release()
	return nil
}
