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
	"sync"
	"sync/atomic"

	"github.com/glycerine/idem"
)

// transmitter is the deferred execution context that drains the outbound
// queue. It runs on one goroutine, so drain never overlaps itself.
//
// pending is set on the false->true edge by schedule and cleared by the
// goroutine before it starts draining. A packet enqueued after the clear
// either is seen by the running drain or schedules the next activation.
type transmitter struct {
	kick    chan struct{}
	pending atomic.Bool
	halt    *idem.Halter
	drain   func()

	startOnce sync.Once
}

func newTransmitter(name string, drain func()) *transmitter {
	return &transmitter{
		kick:  make(chan struct{}, 1),
		halt:  idem.NewHalterNamed("transmitter(" + name + ")"),
		drain: drain,
	}
}

func (t *transmitter) start() {
	t.startOnce.Do(func() {
		go t.run()
	})
}

// schedule requests one activation. It reports false when an activation was
// already pending, in which case nothing is posted.
func (t *transmitter) schedule() bool {
	if !t.pending.CompareAndSwap(false, true) {
		return false
	}
	select {
	case t.kick <- struct{}{}:
	default:
	}
	return true
}

func (t *transmitter) run() {
	defer t.halt.Done.Close()
	for {
		select {
		case <-t.halt.ReqStop.Chan:
			return
		case <-t.kick:
			t.pending.Store(false)
			t.drain()
		}
	}
}

// stop asks the goroutine to exit and waits for it if it was started.
func (t *transmitter) stop() {
	t.halt.ReqStop.Close()
	started := true
	t.startOnce.Do(func() { started = false })
	if started {
		<-t.halt.Done.Chan
	}
}
