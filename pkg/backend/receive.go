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
	"fmt"

	"github.com/srediag/sysctrl-ipc/pkg/types"
)

// onReceive runs on the transport context for every inbound message.
//
// A payload larger than the configured maximum means both sides were built
// with different limits and is fatal. A missing payload is dropped. Anything
// else is staged in a buffer owned by this call and handed to the dispatcher
// before returning, so concurrent deliveries do not share storage.
func (e *Endpoint) onReceive(data []byte) {
	if len(data) > e.cfg.MaxPacketSize {
		e.report(KindConfiguration, types.NewError(types.ErrCodeConfiguration,
			fmt.Sprintf("received %d bytes, limit is %d", len(data), e.cfg.MaxPacketSize)), true)
		return
	}
	if data == nil {
		e.report(KindProtocol, types.NewError(types.ErrCodeProtocol, "received message without payload"), false)
		return
	}

	e.counters.received.Add(1)
	e.metrics.Received.Inc()

	buf := payloadPool.Get()
	_, _ = buf.Write(data)
	staged := buf.B
	if staged == nil {
		staged = []byte{}
	}
	e.dispatcher.Notify(staged)
	payloadPool.Put(buf)
}
