/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
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
	"golang.org/x/sync/semaphore"
)

var errQueueFull = errors.New("outbound queue is full")

// packetQueue is the bounded outbound FIFO: many producers, one consumer.
// The Workiva queue keeps order, the weighted semaphore keeps the bound.
// A slot is taken before Put and given back after the element is popped, so
// Len never exceeds cap.
type packetQueue struct {
	q     *queuepkg.Queue
	slots *semaphore.Weighted
	cap   int
}

func newPacketQueue(cap int) *packetQueue {
	return &packetQueue{
		q:     queuepkg.New(int64(cap)),
		slots: semaphore.NewWeighted(int64(cap)),
		cap:   cap,
	}
}

// tryPut enqueues without waiting for room.
func (q *packetQueue) tryPut(p *Packet) error {
	if !q.slots.TryAcquire(1) {
		return errQueueFull
	}
	return q.commit(p)
}

// put waits for room until ctx is done.
func (q *packetQueue) put(ctx context.Context, p *Packet) error {
	if err := q.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", errQueueFull, err)
	}
	return q.commit(p)
}

func (q *packetQueue) commit(p *Packet) error {
	if err := q.q.Put(p); err != nil {
		q.slots.Release(1)
		return err
	}
	return nil
}

// pop removes the head without blocking. Only the transmitter calls it, so an
// element seen by Empty cannot be taken by anyone else before Get.
func (q *packetQueue) pop() (*Packet, bool) {
	if q.q.Disposed() || q.q.Empty() {
		return nil, false
	}
	items, err := q.q.Get(1)
	if err != nil || len(items) == 0 {
		return nil, false
	}
	q.slots.Release(1)
	p, ok := items[0].(*Packet)
	if !ok {
		return nil, false
	}
	return p, true
}

func (q *packetQueue) size() int {
	return int(q.q.Len())
}

// dispose drops every queued packet and rejects further puts.
func (q *packetQueue) dispose() int {
	n := 0
	for {
		p, ok := q.pop()
		if !ok {
			break
		}
		p.release()
		n++
	}
	q.q.Dispose()
	return n
}
