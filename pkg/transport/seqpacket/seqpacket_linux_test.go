//go:build linux

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

package seqpacket

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srediag/sysctrl-ipc/api"
	"github.com/srediag/sysctrl-ipc/internal/config"
	"github.com/srediag/sysctrl-ipc/pkg/backend"
)

var _ api.Transport = (*Transport)(nil)

type sink struct {
	mu    sync.Mutex
	bound chan struct{}
	msgs  [][]byte
}

func newSink() *sink {
	return &sink{bound: make(chan struct{}, 1)}
}

func (s *sink) callbacks() api.EndpointCallbacks {
	return api.EndpointCallbacks{
		Bound: func() { s.bound <- struct{}{} },
		Received: func(data []byte) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.msgs = append(s.msgs, bytes.Clone(data))
		},
	}
}

func (s *sink) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.msgs))
	copy(out, s.msgs)
	return out
}

type SeqpacketTestSuite struct {
	suite.Suite
	local, remote         *Transport
	localSink, remoteSink *sink
}

func TestSeqpacketTestSuite(t *testing.T) {
	suite.Run(t, new(SeqpacketTestSuite))
}

func (s *SeqpacketTestSuite) SetupTest() {
	var err error
	s.local, s.remote, err = NewPair(64, nil)
	s.Require().NoError(err)
	s.localSink = newSink()
	s.remoteSink = newSink()
}

func (s *SeqpacketTestSuite) TearDownTest() {
	_ = s.local.Close()
	_ = s.remote.Close()
}

func (s *SeqpacketTestSuite) register(t *Transport, sk *sink, name string) {
	s.Require().NoError(t.Open())
	s.Require().NoError(t.Register(api.EndpointConfig{Name: name, Callbacks: sk.callbacks()}))
}

func (s *SeqpacketTestSuite) waitBound(sk *sink) {
	select {
	case <-sk.bound:
	case <-time.After(time.Second):
		s.FailNow("bound not delivered")
	}
}

func (s *SeqpacketTestSuite) TestOpenAndRegisterOrder() {
	s.ErrorIs(s.local.Register(api.EndpointConfig{Name: "x"}), ErrNotOpen)
	s.NoError(s.local.Open())
	s.ErrorIs(s.local.Open(), api.ErrAlreadyOpen)
	s.ErrorIs(s.local.Send([]byte("x")), api.ErrNotRegistered)
	s.NoError(s.local.Register(api.EndpointConfig{Name: "x", Callbacks: s.localSink.callbacks()}))
	s.ErrorIs(s.local.Register(api.EndpointConfig{Name: "x"}), ErrAlreadyRegistered)
}

func (s *SeqpacketTestSuite) TestBoundAfterBothRegistered() {
	s.register(s.local, s.localSink, "app")
	select {
	case <-s.localSink.bound:
		s.FailNow("bound before the peer registered")
	case <-time.After(20 * time.Millisecond):
	}
	s.register(s.remote, s.remoteSink, "sysctrl")
	s.waitBound(s.localSink)
	s.waitBound(s.remoteSink)
}

func (s *SeqpacketTestSuite) TestRecordsArriveInOrder() {
	s.register(s.local, s.localSink, "app")
	s.register(s.remote, s.remoteSink, "sysctrl")
	s.waitBound(s.remoteSink)

	s.Require().NoError(s.local.Send([]byte("one")))
	s.Require().NoError(s.local.Send([]byte{}))
	s.Require().NoError(s.local.Send([]byte("three")))

	s.Eventually(func() bool { return len(s.remoteSink.received()) == 3 }, time.Second, time.Millisecond)
	got := s.remoteSink.received()
	s.Equal([]byte("one"), got[0])
	s.NotNil(got[1])
	s.Empty(got[1])
	s.Equal([]byte("three"), got[2])
}

func (s *SeqpacketTestSuite) TestRecordAtLimitArrivesWhole() {
	s.register(s.local, s.localSink, "app")
	s.register(s.remote, s.remoteSink, "sysctrl")
	s.waitBound(s.remoteSink)

	payload := bytes.Repeat([]byte{0xA5}, 64)
	s.Require().NoError(s.local.Send(payload))
	s.Eventually(func() bool { return len(s.remoteSink.received()) == 1 }, time.Second, time.Millisecond)
	s.Equal(payload, s.remoteSink.received()[0])
}

func (s *SeqpacketTestSuite) TestRecordOverLimitStaysOversized() {
	s.register(s.local, s.localSink, "app")
	s.register(s.remote, s.remoteSink, "sysctrl")
	s.waitBound(s.remoteSink)

	s.Require().NoError(s.local.Send(make([]byte, 65)))
	s.Require().NoError(s.local.Send(make([]byte, 1000)))
	s.Eventually(func() bool { return len(s.remoteSink.received()) == 2 }, time.Second, time.Millisecond)
	for _, got := range s.remoteSink.received() {
		s.Greater(len(got), 64)
	}
}

func (s *SeqpacketTestSuite) TestCloseStopsReader() {
	s.register(s.local, s.localSink, "app")
	s.register(s.remote, s.remoteSink, "sysctrl")
	s.waitBound(s.localSink)

	done := make(chan error, 1)
	go func() { done <- s.remote.Close() }()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.FailNow("Close blocked")
	}
	s.ErrorIs(s.remote.Send([]byte("x")), api.ErrClosed)
	s.Error(s.local.Send([]byte("x")))
}

func TestEndpointsOverSeqpacket(t *testing.T) {
	cfg := config.EndpointConfig{Name: "ipc_to_sysctrl", MaxPacketSize: 32, QueueCapacity: 8}

	local, remote, err := NewPair(cfg.MaxPacketSize, nil)
	require.NoError(t, err)
	defer func() { _ = local.Close(); _ = remote.Close() }()

	var mu sync.Mutex
	var reports []backend.ErrorKind
	handler := backend.ErrorHandlerFunc(func(kind backend.ErrorKind, _ error, fatal bool) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, kind)
		assert.True(t, fatal)
	})

	received := make(chan []byte, 4)
	app, err := backend.New(cfg, local, backend.WithErrorHandler(handler))
	require.NoError(t, err)
	defer func() { _ = app.Close() }()
	sysctrl, err := backend.New(cfg, remote,
		backend.WithErrorHandler(handler),
		backend.WithDispatcher(api.DispatcherFunc(func(data []byte) {
			received <- bytes.Clone(data)
		})))
	require.NoError(t, err)
	defer func() { _ = sysctrl.Close() }()

	ctx := context.Background()
	require.NoError(t, app.Initialize(ctx))
	require.NoError(t, sysctrl.Initialize(ctx))
	require.NoError(t, app.WaitForConnectionTimeout(time.Second))

	require.NoError(t, app.Send([]byte("reset-reason")))
	select {
	case data := <-received:
		assert.Equal(t, []byte("reset-reason"), data)
	case <-time.After(time.Second):
		t.Fatal("payload not delivered")
	}

	// A peer built with a larger limit trips the receiver's size check, even
	// when the record does not fit the receive buffer.
	require.NoError(t, local.Send(make([]byte, 4*cfg.MaxPacketSize)))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) == 1 && reports[0] == backend.KindConfiguration
	}, time.Second, 5*time.Millisecond)
}
