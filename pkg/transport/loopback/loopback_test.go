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

package loopback

import (
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

var _ api.Transport = (*Side)(nil)

type collector struct {
	mu    sync.Mutex
	bound chan struct{}
	msgs  [][]byte
}

func newCollector() *collector {
	return &collector{bound: make(chan struct{}, 1)}
}

func (c *collector) callbacks() api.EndpointCallbacks {
	return api.EndpointCallbacks{
		Bound: func() { c.bound <- struct{}{} },
		Received: func(data []byte) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.msgs = append(c.msgs, data)
		},
	}
}

func (c *collector) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.msgs))
	copy(out, c.msgs)
	return out
}

type LoopbackTestSuite struct {
	suite.Suite
	pair   *Pair
	local  *collector
	remote *collector
}

func TestLoopbackTestSuite(t *testing.T) {
	suite.Run(t, new(LoopbackTestSuite))
}

func (s *LoopbackTestSuite) SetupTest() {
	s.pair = NewPair(4, nil)
	s.local = newCollector()
	s.remote = newCollector()
}

func (s *LoopbackTestSuite) TearDownTest() {
	_ = s.pair.Close()
}

func (s *LoopbackTestSuite) register(side *Side, c *collector, name string) {
	s.Require().NoError(side.Open())
	s.Require().NoError(side.Register(api.EndpointConfig{Name: name, Callbacks: c.callbacks()}))
}

func (s *LoopbackTestSuite) waitBound(c *collector) {
	select {
	case <-c.bound:
	case <-time.After(time.Second):
		s.FailNow("bound not delivered")
	}
}

func (s *LoopbackTestSuite) TestOpenTwiceReportsAlreadyOpen() {
	s.NoError(s.pair.Local.Open())
	s.ErrorIs(s.pair.Local.Open(), api.ErrAlreadyOpen)
}

func (s *LoopbackTestSuite) TestRegisterRequiresOpen() {
	err := s.pair.Local.Register(api.EndpointConfig{Name: "x"})
	s.ErrorIs(err, ErrNotOpen)

	s.register(s.pair.Local, s.local, "x")
	s.ErrorIs(s.pair.Local.Register(api.EndpointConfig{Name: "x"}), ErrAlreadyRegistered)
}

func (s *LoopbackTestSuite) TestBoundFiresWhenBothRegistered() {
	s.register(s.pair.Local, s.local, "app")
	s.ErrorIs(s.pair.Local.Send([]byte("early")), api.ErrNotRegistered)

	select {
	case <-s.local.bound:
		s.FailNow("bound before the peer registered")
	case <-time.After(20 * time.Millisecond):
	}

	s.register(s.pair.Remote, s.remote, "sysctrl")
	s.waitBound(s.local)
	s.waitBound(s.remote)
}

func (s *LoopbackTestSuite) TestSendDeliversInOrderAndCopies() {
	s.register(s.pair.Local, s.local, "app")
	s.register(s.pair.Remote, s.remote, "sysctrl")
	s.waitBound(s.remote)

	buf := []byte("one")
	s.Require().NoError(s.pair.Local.Send(buf))
	buf[0] = 'X'
	s.Require().NoError(s.pair.Local.Send([]byte("two")))
	s.Require().NoError(s.pair.Local.Send([]byte{}))

	s.Eventually(func() bool { return len(s.remote.received()) == 3 }, time.Second, time.Millisecond)
	got := s.remote.received()
	s.Equal([]byte("one"), got[0])
	s.Equal([]byte("two"), got[1])
	s.NotNil(got[2])
	s.Empty(got[2])
	s.Empty(s.local.received())
}

func (s *LoopbackTestSuite) TestSendFailsWhenPeerInboxFull() {
	block := make(chan struct{})
	defer close(block)
	s.register(s.pair.Local, s.local, "app")
	s.Require().NoError(s.pair.Remote.Open())
	s.Require().NoError(s.pair.Remote.Register(api.EndpointConfig{
		Name: "sysctrl",
		Callbacks: api.EndpointCallbacks{
			Bound:    func() {},
			Received: func([]byte) { <-block },
		},
	}))
	s.waitBound(s.local)

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = s.pair.Local.Send([]byte{byte(i)})
	}
	s.ErrorIs(err, ErrInboxFull)
}

func (s *LoopbackTestSuite) TestClosedSideRejects() {
	s.register(s.pair.Local, s.local, "app")
	s.register(s.pair.Remote, s.remote, "sysctrl")
	s.waitBound(s.local)

	s.NoError(s.pair.Remote.Close())
	s.NoError(s.pair.Remote.Close())
	s.ErrorIs(s.pair.Local.Send([]byte("x")), api.ErrClosed)
	s.ErrorIs(s.pair.Remote.Open(), api.ErrClosed)
}

func TestEndpointsOverLoopback(t *testing.T) {
	pair := NewPair(16, nil)
	defer func() { _ = pair.Close() }()

	cfg := config.EndpointConfig{Name: "ipc_to_sysctrl", MaxPacketSize: 32, QueueCapacity: 8}
	unexpected := backend.ErrorHandlerFunc(func(kind backend.ErrorKind, err error, _ bool) {
		t.Errorf("unexpected report %s: %v", kind, err)
	})

	var mu sync.Mutex
	var replies [][]byte
	app, err := backend.New(cfg, pair.Local,
		backend.WithErrorHandler(unexpected),
		backend.WithDispatcher(api.DispatcherFunc(func(data []byte) {
			mu.Lock()
			defer mu.Unlock()
			replies = append(replies, append([]byte(nil), data...))
		})))
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	var sysctrl *backend.Endpoint
	sysctrl, err = backend.New(cfg, pair.Remote,
		backend.WithErrorHandler(unexpected),
		backend.WithDispatcher(api.DispatcherFunc(func(data []byte) {
			reply := append([]byte("ack:"), data...)
			if err := sysctrl.Send(reply); err != nil {
				t.Errorf("echo: %v", err)
			}
		})))
	require.NoError(t, err)
	defer func() { _ = sysctrl.Close() }()

	ctx := context.Background()
	require.NoError(t, app.Initialize(ctx))
	require.NoError(t, sysctrl.Initialize(ctx))
	require.NoError(t, app.WaitForConnectionTimeout(time.Second))
	require.NoError(t, sysctrl.WaitForConnectionTimeout(time.Second))

	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, app.SendEx(ctx, []byte(m), backend.PriorityNormal))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(replies) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]byte{[]byte("ack:a"), []byte("ack:b"), []byte("ack:c")}, replies)
}
