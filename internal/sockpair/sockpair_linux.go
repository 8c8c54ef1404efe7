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

package sockpair

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Conn is one end of the pair. Write may be called concurrently with Read;
// concurrent writers are serialized by the kernel per record.
type Conn struct {
	fd     int
	closed atomic.Bool
}

// New creates a connected pair.
func New() (*Conn, *Conn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	return &Conn{fd: fds[0]}, &Conn{fd: fds[1]}, nil
}

// Write sends b as one record.
func (c *Conn) Write(b []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	for {
		_, err := unix.SendmsgN(c.fd, b, nil, nil, unix.MSG_NOSIGNAL)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("sendmsg: %w", err)
		}
		return nil
	}
}

// Read blocks for the next record. It returns 0 and no error once the peer
// has closed or Shutdown was called, so callers must not send empty records.
func (c *Conn) Read(buf []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	for {
		n, _, flags, _, err := unix.Recvmsg(c.fd, buf, nil, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("recvmsg: %w", err)
		}
		if flags&unix.MSG_TRUNC != 0 {
			return n, ErrTruncated
		}
		return n, nil
	}
}

// Shutdown wakes a blocked Read and makes the peer see end of stream.
func (c *Conn) Shutdown() error {
	if err := unix.Shutdown(c.fd, unix.SHUT_RDWR); err != nil && err != unix.ENOTCONN {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the descriptor. No Read may be in progress.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := unix.Close(c.fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
