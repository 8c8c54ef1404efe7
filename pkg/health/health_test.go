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

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/sysctrl-ipc/internal/config"
	"github.com/srediag/sysctrl-ipc/pkg/backend"
	"github.com/srediag/sysctrl-ipc/pkg/transport/loopback"
)

func serve(t *testing.T, h http.Handler, path string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestReadinessFollowsConnection(t *testing.T) {
	pair := loopback.NewPair(8, nil)
	defer func() { _ = pair.Close() }()

	reg := backend.NewRegistry(nil)
	h := NewHandler(prometheus.NewRegistry(), "test", config.HealthConfig{GoroutineThreshold: 10000}, reg)

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, "/ready"))
	assert.Equal(t, http.StatusOK, serve(t, h, "/live"))

	cfg := config.EndpointConfig{Name: "ipc_to_sysctrl", MaxPacketSize: 32, QueueCapacity: 4}
	app, err := backend.New(cfg, pair.Local)
	require.NoError(t, err)
	peer, err := backend.New(cfg, pair.Remote)
	require.NoError(t, err)
	require.NoError(t, reg.Add(app))
	defer func() { _ = reg.CloseAll(); _ = peer.Close() }()

	require.NoError(t, reg.InitializeAll(context.Background()))
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, "/ready"))

	require.NoError(t, peer.Initialize(context.Background()))
	require.NoError(t, app.WaitForConnectionTimeout(2 * time.Second))
	assert.Equal(t, http.StatusOK, serve(t, h, "/ready"))
}

func TestConnectedCheckNamesPendingEndpoints(t *testing.T) {
	reg := backend.NewRegistry(nil)
	pair := loopback.NewPair(8, nil)
	defer func() { _ = pair.Close() }()

	e, err := backend.New(config.EndpointConfig{Name: "ipc_to_sysctrl", MaxPacketSize: 8, QueueCapacity: 1}, pair.Local)
	require.NoError(t, err)
	require.NoError(t, reg.Add(e))

	err = ConnectedCheck(reg)()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ipc_to_sysctrl")
}
