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

// Package health exposes liveness and readiness of the IPC endpoints over
// HTTP (/live and /ready).
package health

import (
	"fmt"
	"strings"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/sysctrl-ipc/internal/config"
	"github.com/srediag/sysctrl-ipc/pkg/backend"
)

// EndpointSource lists the endpoints whose connection gates readiness.
// backend.Registry implements it.
type EndpointSource interface {
	Endpoints() []*backend.Endpoint
}

// NewHandler builds the health handler. With a non-nil registerer the check
// results are also exported as prometheus gauges under namespace.
func NewHandler(reg prometheus.Registerer, namespace string, cfg config.HealthConfig, src EndpointSource) healthcheck.Handler {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, namespace)
	} else {
		h = healthcheck.NewHandler()
	}
	if cfg.GoroutineThreshold > 0 {
		h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(cfg.GoroutineThreshold))
	}
	h.AddReadinessCheck("endpoints-connected", ConnectedCheck(src))
	return h
}

// ConnectedCheck fails until at least one endpoint exists and every endpoint
// is bound to its peer.
func ConnectedCheck(src EndpointSource) healthcheck.Check {
	return func() error {
		eps := src.Endpoints()
		if len(eps) == 0 {
			return fmt.Errorf("no endpoints registered")
		}
		var pending []string
		for _, e := range eps {
			if !e.IsConnected() {
				pending = append(pending, e.Name())
			}
		}
		if len(pending) > 0 {
			return fmt.Errorf("endpoints not connected: %s", strings.Join(pending, ", "))
		}
		return nil
	}
}
