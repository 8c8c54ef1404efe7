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
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes every endpoint metric
const DefaultMetricsNamespace = "sysctrl_ipc"

// Metrics holds the per-endpoint prometheus collectors. Every collector carries
// a constant "endpoint" label, so several endpoints can share one registry.
type Metrics struct {
	Enqueued         prometheus.Counter
	Transmitted      prometheus.Counter
	TransmitFailures prometheus.Counter
	Received         prometheus.Counter
	Rejected         *prometheus.CounterVec // reason
	Errors           *prometheus.CounterVec // kind, fatal
	QueueDepth       prometheus.Gauge
	Connected        prometheus.Gauge
}

// NewMetrics creates the collectors for one endpoint and registers them with
// reg. A nil reg leaves them unregistered. Registering the same endpoint twice
// reuses the collectors already present.
func NewMetrics(reg prometheus.Registerer, namespace, endpoint string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	labels := prometheus.Labels{"endpoint": endpoint}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   namespace,
			Subsystem:   "endpoint",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}
	}

	m := &Metrics{
		Enqueued:         prometheus.NewCounter(prometheus.CounterOpts(opts("enqueued_total", "Packets accepted into the outbound queue."))),
		Transmitted:      prometheus.NewCounter(prometheus.CounterOpts(opts("transmitted_total", "Packets handed to the transport."))),
		TransmitFailures: prometheus.NewCounter(prometheus.CounterOpts(opts("transmit_failures_total", "Transport sends that failed while draining."))),
		Received:         prometheus.NewCounter(prometheus.CounterOpts(opts("received_total", "Inbound payloads accepted for the dispatcher."))),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts(opts("rejected_total", "Send calls rejected before enqueue.")),
			[]string{"reason"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts(opts("errors_total", "Errors reported to the error policy.")),
			[]string{"kind", "fatal"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts(opts("queue_depth", "Packets waiting in the outbound queue."))),
		Connected:  prometheus.NewGauge(prometheus.GaugeOpts(opts("connected", "1 once the peer endpoint is bound."))),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Enqueued, err = registerOrExisting(reg, m.Enqueued); err != nil {
		return nil, err
	}
	if m.Transmitted, err = registerOrExisting(reg, m.Transmitted); err != nil {
		return nil, err
	}
	if m.TransmitFailures, err = registerOrExisting(reg, m.TransmitFailures); err != nil {
		return nil, err
	}
	if m.Received, err = registerOrExisting(reg, m.Received); err != nil {
		return nil, err
	}
	if m.Rejected, err = registerOrExisting(reg, m.Rejected); err != nil {
		return nil, err
	}
	if m.Errors, err = registerOrExisting(reg, m.Errors); err != nil {
		return nil, err
	}
	if m.QueueDepth, err = registerOrExisting(reg, m.QueueDepth); err != nil {
		return nil, err
	}
	if m.Connected, err = registerOrExisting(reg, m.Connected); err != nil {
		return nil, err
	}
	return m, nil
}

func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
