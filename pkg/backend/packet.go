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
	"github.com/valyala/bytebufferpool"
)

// payloadPool backs outbound packets and the inbound hand-off copy. Buffers are
// owned by exactly one packet or one receive call at a time.
var payloadPool bytebufferpool.Pool

// Packet is one outbound message owned by the queue until transmitted.
type Packet struct {
	ChannelID uint32
	Size      int
	buf       *bytebufferpool.ByteBuffer
}

func newPacket(channelID uint32, data []byte) *Packet {
	buf := payloadPool.Get()
	_, _ = buf.Write(data)
	return &Packet{
		ChannelID: channelID,
		Size:      len(data),
		buf:       buf,
	}
}

// Bytes returns the payload. The slice is never nil, so transports can tell an
// empty message from an absent one.
func (p *Packet) Bytes() []byte {
	if p.buf == nil || p.buf.B == nil {
		return []byte{}
	}
	return p.buf.B[:p.Size]
}

func (p *Packet) release() {
	if p.buf != nil {
		payloadPool.Put(p.buf)
		p.buf = nil
	}
}
