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

package config

import "time"

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// DefaultEndpointName is the channel name the system controller expects.
	DefaultEndpointName   = "ipc_to_sysctrl"
	DefaultChannelID      = 0
	DefaultMaxPacketSize  = 32
	DefaultQueueCapacity  = 16
	DefaultConnectTimeout = 5 * time.Second

	DefaultTransportKind = TransportLoopback
	DefaultInboxSize     = 64

	DefaultAdminAddress       = "127.0.0.1:9464"
	DefaultMetricsNamespace   = "sysctrl_ipc"
	DefaultGoroutineThreshold = 1000

	DefaultRetryInitialInterval = 5 * time.Millisecond
	DefaultRetryMaxInterval     = 250 * time.Millisecond
	DefaultRetryMaxElapsed      = 5 * time.Second
	DefaultDispatchWorkers      = 4
)

// Default returns a configuration populated entirely with defaults
func Default() *Config {
	return &Config{
		Logging:   DefaultLoggingConfig(),
		Endpoint:  DefaultEndpointConfig(),
		Transport: DefaultTransportConfig(),
		Admin:     AdminConfig{Address: DefaultAdminAddress},
		Metrics:   MetricsConfig{Enabled: true, Namespace: DefaultMetricsNamespace},
		Health:    HealthConfig{Enabled: true, GoroutineThreshold: DefaultGoroutineThreshold},
		Client:    DefaultClientConfig(),
	}
}

// DefaultLoggingConfig returns the default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
		Output: "stdout",
	}
}

// DefaultEndpointConfig returns the default system-controller endpoint configuration
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		Name:           DefaultEndpointName,
		ChannelID:      DefaultChannelID,
		MaxPacketSize:  DefaultMaxPacketSize,
		QueueCapacity:  DefaultQueueCapacity,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// DefaultTransportConfig returns the default transport configuration
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Kind:      DefaultTransportKind,
		InboxSize: DefaultInboxSize,
	}
}

// DefaultClientConfig returns the default caller-side configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RetryInitialInterval: DefaultRetryInitialInterval,
		RetryMaxInterval:     DefaultRetryMaxInterval,
		RetryMaxElapsed:      DefaultRetryMaxElapsed,
		DispatchWorkers:      DefaultDispatchWorkers,
	}
}

// applyDefaults fills zero-valued fields left out of a partial YAML file
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = def.Logging.Output
	}

	if cfg.Endpoint.Name == "" {
		cfg.Endpoint.Name = def.Endpoint.Name
	}
	if cfg.Endpoint.MaxPacketSize == 0 {
		cfg.Endpoint.MaxPacketSize = def.Endpoint.MaxPacketSize
	}
	if cfg.Endpoint.QueueCapacity == 0 {
		cfg.Endpoint.QueueCapacity = def.Endpoint.QueueCapacity
	}
	if cfg.Endpoint.ConnectTimeout == 0 {
		cfg.Endpoint.ConnectTimeout = def.Endpoint.ConnectTimeout
	}

	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = def.Transport.Kind
	}
	if cfg.Transport.InboxSize == 0 {
		cfg.Transport.InboxSize = def.Transport.InboxSize
	}

	if cfg.Admin.Address == "" {
		cfg.Admin.Address = def.Admin.Address
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = def.Metrics.Namespace
	}
	if cfg.Health.GoroutineThreshold == 0 {
		cfg.Health.GoroutineThreshold = def.Health.GoroutineThreshold
	}

	if cfg.Client.RetryInitialInterval == 0 {
		cfg.Client.RetryInitialInterval = def.Client.RetryInitialInterval
	}
	if cfg.Client.RetryMaxInterval == 0 {
		cfg.Client.RetryMaxInterval = def.Client.RetryMaxInterval
	}
	if cfg.Client.RetryMaxElapsed == 0 {
		cfg.Client.RetryMaxElapsed = def.Client.RetryMaxElapsed
	}
	if cfg.Client.DispatchWorkers == 0 {
		cfg.Client.DispatchWorkers = def.Client.DispatchWorkers
	}
}
