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

// Package seqpacket implements api.Transport over a connected AF_UNIX
// SOCK_SEQPACKET pair (Linux only; other platforms fail at NewPair).
//
// Each record starts with a one-byte kind. A hello record is written by
// Register and delivered to the peer as Bound; data records carry one
// payload each. Records are never empty, so a zero-length read means the peer
// is gone.
package seqpacket

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/glycerine/idem"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/sysctrl-ipc/api"
	"github.com/srediag/sysctrl-ipc/internal/logger"
	"github.com/srediag/sysctrl-ipc/internal/sockpair"
)

const (
	recordHello byte = 'H'
	recordData  byte = 'D'
)

// DefaultMaxRecord is the payload limit used when NewPair gets none.
const DefaultMaxRecord = 4096

var (
	ErrNotOpen           = errors.New("seqpacket: instance not open")
	ErrAlreadyRegistered = errors.New("seqpacket: endpoint already registered")
)

var recordPool bytebufferpool.Pool

// Transport is one end of the pair
type Transport struct {
	name      string
	conn      *sockpair.Conn
	maxRecord int
	logger    *logger.Logger
	halt      *idem.Halter
	bound     atomic.Bool

	mu         sync.Mutex
	opened     bool
	registered bool
	closed     bool
	cb         api.EndpointCallbacks
}

// NewPair creates two connected transports accepting payloads of up to
// maxRecord bytes; maxRecord <= 0 selects DefaultMaxRecord. A larger inbound
// record is delivered as its first maxRecord+1 bytes, so a receiver whose
// limit is maxRecord always sees it as oversized and never gets a short
// payload that looks legal.
func NewPair(maxRecord int, log *logger.Logger) (*Transport, *Transport, error) {
	if maxRecord <= 0 {
		maxRecord = DefaultMaxRecord
	}
	if log == nil {
		log = logger.NewNop()
	}
	a, b, err := sockpair.New()
	if err != nil {
		return nil, nil, err
	}
	return newTransport("local", a, maxRecord, log), newTransport("remote", b, maxRecord, log), nil
}

func newTransport(name string, conn *sockpair.Conn, maxRecord int, log *logger.Logger) *Transport {
	return &Transport{
		name:      name,
		conn:      conn,
		maxRecord: maxRecord,
		logger:    log.With("component", "seqpacket_transport", "side", name),
		halt:      idem.NewHalterNamed("seqpacket(" + name + ")"),
	}
}

// Open opens the instance; a second call returns api.ErrAlreadyOpen.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return api.ErrClosed
	}
	if t.opened {
		return api.ErrAlreadyOpen
	}
	t.opened = true
	return nil
}

// Register starts the reader and announces the endpoint to the peer.
func (t *Transport) Register(cfg api.EndpointConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.closed:
		return api.ErrClosed
	case !t.opened:
		return ErrNotOpen
	case t.registered:
		return ErrAlreadyRegistered
	}
	if err := t.conn.Write([]byte{recordHello}); err != nil {
		return fmt.Errorf("announce endpoint %s: %w", cfg.Name, err)
	}
	t.cb = cfg.Callbacks
	t.registered = true
	go t.read()
	t.logger.Debug("Endpoint registered", "endpoint", cfg.Name)
	return nil
}

// Send writes data as one record.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	closed, registered := t.closed, t.registered
	t.mu.Unlock()
	if closed {
		return api.ErrClosed
	}
	if !registered {
		return api.ErrNotRegistered
	}

	rec := recordPool.Get()
	defer recordPool.Put(rec)
	_ = rec.WriteByte(recordData)
	_, _ = rec.Write(data)
	return t.conn.Write(rec.B)
}

// Close stops the reader and releases the socket. The peer reads end of
// stream.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	started := t.registered
	t.mu.Unlock()

	t.halt.ReqStop.Close()
	err := t.conn.Shutdown()
	if started {
		<-t.halt.Done.Chan
	}
	return errors.Join(err, t.conn.Close())
}

// read delivers records on a single goroutine. The payload slice is reused
// for the next record once the callback returns.
func (t *Transport) read() {
	defer t.halt.Done.Close()
	// kind byte, payload, one spare byte that marks overflow
	buf := make([]byte, 1+t.maxRecord+1)
	for {
		n, err := t.conn.Read(buf)
		if t.halt.ReqStop.IsClosed() {
			return
		}
		if err != nil && !errors.Is(err, sockpair.ErrTruncated) {
			t.logger.Error("Read failed", "error", err)
			return
		}
		if n == 0 {
			t.logger.Info("Peer closed")
			return
		}
		if err != nil {
			t.logger.Warn("Record exceeds limit", "limit", t.maxRecord)
		}

		switch buf[0] {
		case recordHello:
			if !t.bound.Swap(true) && t.cb.Bound != nil {
				t.cb.Bound()
			}
		case recordData:
			if t.cb.Received != nil {
				t.cb.Received(buf[1:n])
			}
		default:
			t.logger.Warn("Unknown record kind", "kind", buf[0], "size", n)
		}
	}
}
