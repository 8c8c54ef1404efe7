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

// Package sockpair wraps a connected AF_UNIX SOCK_SEQPACKET socket pair.
// Every write is one record and every read returns exactly one record, so the
// kernel keeps message boundaries and ordering.
package sockpair

import "errors"

var (
	// ErrTruncated is returned by Read when the record did not fit the buffer.
	// The leading part of the record is still returned.
	ErrTruncated = errors.New("sockpair: record truncated")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("sockpair: closed")
	// ErrUnsupported is returned on platforms without SOCK_SEQPACKET
	ErrUnsupported = errors.New("sockpair: not supported on this platform")
)
