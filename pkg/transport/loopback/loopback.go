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

// Package loopback provides an in-process api.Transport pair. Each side
// delivers inbound messages on its own goroutine, one at a time, in the order
// the peer sent them.
package loopback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/glycerine/idem"

	"github.com/srediag/sysctrl-ipc/api"
	"github.com/srediag/sysctrl-ipc/internal/logger"
)

// DefaultInboxSize is used when NewPair gets zero
const DefaultInboxSize = 64

var (
	// ErrNotOpen is returned by Register before Open
	ErrNotOpen = errors.New("loopback: instance not open")
	// ErrAlreadyRegistered is returned by a second Register on one side
	ErrAlreadyRegistered = errors.New("loopback: endpoint already registered")
	// ErrInboxFull is returned by Send when the peer has not drained its inbox
	ErrInboxFull = errors.New("loopback: peer inbox full")
)

type event struct {
	bound bool
	data  []byte
}

// Pair is a linked Local/Remote transport couple
type Pair struct {
	Local  *Side
	Remote *Side

	mu sync.Mutex
}

// Side is one end of a Pair; it implements api.Transport.
type Side struct {
	name   string
	pair   *Pair
	peer   *Side
	inbox  chan event
	halt   *idem.Halter
	logger *logger.Logger

	// guarded by pair.mu
	opened     bool
	registered bool
	closed     bool
	cb         api.EndpointCallbacks
}

// NewPair creates a linked pair whose inboxes hold inboxSize messages
func NewPair(inboxSize int, log *logger.Logger) *Pair {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	p := &Pair{}
	p.Local = newSide("local", p, inboxSize, log)
	p.Remote = newSide("remote", p, inboxSize, log)
	p.Local.peer = p.Remote
	p.Remote.peer = p.Local
	return p
}

func newSide(name string, p *Pair, inboxSize int, log *logger.Logger) *Side {
	return &Side{
		name:   name,
		pair:   p,
		inbox:  make(chan event, inboxSize),
		halt:   idem.NewHalterNamed("loopback(" + name + ")"),
		logger: log.With("component", "loopback_transport", "side", name),
	}
}

// Close closes both sides
func (p *Pair) Close() error {
	return errors.Join(p.Local.Close(), p.Remote.Close())
}

// Open opens this side. Subsequent calls return api.ErrAlreadyOpen.
func (s *Side) Open() error {
	s.pair.mu.Lock()
	defer s.pair.mu.Unlock()
	if s.closed {
		return api.ErrClosed
	}
	if s.opened {
		return api.ErrAlreadyOpen
	}
	s.opened = true
	return nil
}

// Register installs the endpoint callbacks and starts delivery. Bound fires
// on both sides once both have registered.
func (s *Side) Register(cfg api.EndpointConfig) error {
	s.pair.mu.Lock()
	defer s.pair.mu.Unlock()
	switch {
	case s.closed:
		return api.ErrClosed
	case !s.opened:
		return ErrNotOpen
	case s.registered:
		return ErrAlreadyRegistered
	}
	s.cb = cfg.Callbacks
	s.registered = true
	go s.deliver()
	s.logger.Debug("Endpoint registered", "endpoint", cfg.Name)

	if s.peer.registered && !s.peer.closed {
		// Both inboxes are empty: nothing can be sent before registration.
		s.inbox <- event{bound: true}
		s.peer.inbox <- event{bound: true}
	}
	return nil
}

// Send copies data into the peer's inbox.
func (s *Side) Send(data []byte) error {
	s.pair.mu.Lock()
	defer s.pair.mu.Unlock()
	switch {
	case s.closed || s.peer.closed:
		return api.ErrClosed
	case !s.registered || !s.peer.registered:
		return api.ErrNotRegistered
	}
	msg := append(make([]byte, 0, len(data)), data...)
	select {
	case s.peer.inbox <- event{data: msg}:
		return nil
	default:
		return fmt.Errorf("%w: %d pending", ErrInboxFull, len(s.peer.inbox))
	}
}

// Close stops delivery on this side. Pending inbound messages are dropped.
func (s *Side) Close() error {
	s.pair.mu.Lock()
	if s.closed {
		s.pair.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.registered
	s.pair.mu.Unlock()

	s.halt.ReqStop.Close()
	if started {
		<-s.halt.Done.Chan
	}
	return nil
}

func (s *Side) deliver() {
	defer s.halt.Done.Close()
	for {
		select {
		case <-s.halt.ReqStop.Chan:
			return
		case ev := <-s.inbox:
			if ev.bound {
				if s.cb.Bound != nil {
					s.cb.Bound()
				}
				continue
			}
			if s.cb.Received != nil {
				s.cb.Received(ev.data)
			}
		}
	}
}
