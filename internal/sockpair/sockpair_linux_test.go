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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsKeepBoundaries(t *testing.T) {
	a, b, err := New()
	require.NoError(t, err)
	defer func() { _ = a.Close(); _ = b.Close() }()

	require.NoError(t, a.Write([]byte("first")))
	require.NoError(t, a.Write([]byte("second record")))

	buf := make([]byte, 64)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "first", string(buf[:n]))
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "second record", string(buf[:n]))
}

func TestReadReportsTruncation(t *testing.T) {
	a, b, err := New()
	require.NoError(t, err)
	defer func() { _ = a.Close(); _ = b.Close() }()

	require.NoError(t, a.Write([]byte("0123456789")))
	buf := make([]byte, 4)
	n, err := b.Read(buf)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, "0123", string(buf[:n]))
}

func TestShutdownWakesReader(t *testing.T) {
	a, b, err := New()
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	done := make(chan int, 1)
	go func() {
		n, _ := b.Read(make([]byte, 8))
		done <- n
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Shutdown())

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("reader not woken by shutdown")
	}
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Write([]byte("x")), ErrClosed)
	assert.Error(t, a.Write([]byte("x")))
}
