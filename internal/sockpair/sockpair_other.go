//go:build !linux

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

// Conn is unavailable on this platform
type Conn struct{}

// New always fails with ErrUnsupported
func New() (*Conn, *Conn, error) {
	return nil, nil, ErrUnsupported
}

func (c *Conn) Write([]byte) error { return ErrUnsupported }
func (c *Conn) Read([]byte) (int, error) { return 0, ErrUnsupported }
func (c *Conn) Shutdown() error { return ErrUnsupported }
func (c *Conn) Close() error { return nil }
