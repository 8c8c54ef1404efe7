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

// Package config loads the sysctrl-ipc configuration from YAML, defaults and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/srediag/sysctrl-ipc/pkg/types"
)

// Config represents the complete configuration of a sysctrl-ipc process
type Config struct {
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Endpoint  EndpointConfig  `json:"endpoint" yaml:"endpoint"`
	Transport TransportConfig `json:"transport" yaml:"transport"`
	Admin     AdminConfig     `json:"admin" yaml:"admin"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Health    HealthConfig    `json:"health" yaml:"health"`
	Client    ClientConfig    `json:"client" yaml:"client"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
	Output string `json:"output" yaml:"output"` // stdout, stderr, file path
}

// EndpointConfig describes the channel to the system controller.
// All fields are fixed once the endpoint is constructed.
type EndpointConfig struct {
	Name           string        `json:"name" yaml:"name"`
	ChannelID      uint32        `json:"channel_id" yaml:"channel_id"`
	MaxPacketSize  int           `json:"max_packet_size" yaml:"max_packet_size"`
	QueueCapacity  int           `json:"queue_capacity" yaml:"queue_capacity"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// TransportConfig selects the channel primitive
type TransportConfig struct {
	Kind      string `json:"kind" yaml:"kind"` // loopback, seqpacket
	InboxSize int    `json:"inbox_size" yaml:"inbox_size"`
}

// AdminConfig contains the admin HTTP listener serving metrics and health
type AdminConfig struct {
	Address string `json:"address" yaml:"address"`
}

// MetricsConfig contains prometheus exposition settings
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// HealthConfig contains liveness/readiness settings
type HealthConfig struct {
	Enabled            bool `json:"enabled" yaml:"enabled"`
	GoroutineThreshold int  `json:"goroutine_threshold" yaml:"goroutine_threshold"`
}

// ClientConfig tunes caller-side retries of rejected sends
type ClientConfig struct {
	RetryInitialInterval time.Duration `json:"retry_initial_interval" yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `json:"retry_max_interval" yaml:"retry_max_interval"`
	RetryMaxElapsed      time.Duration `json:"retry_max_elapsed" yaml:"retry_max_elapsed"`
	DispatchWorkers      int           `json:"dispatch_workers" yaml:"dispatch_workers"`
}

const (
	EnvLogLevel       = "SYSCTRL_IPC_LOG_LEVEL"
	EnvLogFormat      = "SYSCTRL_IPC_LOG_FORMAT"
	EnvEndpointName   = "SYSCTRL_IPC_ENDPOINT_NAME"
	EnvChannelID      = "SYSCTRL_IPC_CHANNEL_ID"
	EnvMaxPacketSize  = "SYSCTRL_IPC_MAX_PACKET_SIZE"
	EnvQueueCapacity  = "SYSCTRL_IPC_QUEUE_CAPACITY"
	EnvConnectTimeout = "SYSCTRL_IPC_CONNECT_TIMEOUT"
	EnvTransportKind  = "SYSCTRL_IPC_TRANSPORT"
	EnvAdminAddress   = "SYSCTRL_IPC_ADMIN_ADDRESS"
	EnvMetricsEnabled = "SYSCTRL_IPC_METRICS_ENABLED"
	EnvHealthEnabled  = "SYSCTRL_IPC_HEALTH_ENABLED"
)

const (
	TransportLoopback  = "loopback"
	TransportSeqpacket = "seqpacket"
)

// Load builds the configuration from path (optional), then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg *Config
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = Default()
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv(EnvEndpointName); v != "" {
		cfg.Endpoint.Name = v
	}
	if v := os.Getenv(EnvChannelID); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid "+EnvChannelID, err)
		}
		cfg.Endpoint.ChannelID = uint32(id)
	}
	if v := os.Getenv(EnvMaxPacketSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid "+EnvMaxPacketSize, err)
		}
		cfg.Endpoint.MaxPacketSize = n
	}
	if v := os.Getenv(EnvQueueCapacity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid "+EnvQueueCapacity, err)
		}
		cfg.Endpoint.QueueCapacity = n
	}
	if v := os.Getenv(EnvConnectTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return types.WrapError(types.ErrCodeInvalidArgument, "invalid "+EnvConnectTimeout, err)
		}
		cfg.Endpoint.ConnectTimeout = d
	}

	if v := os.Getenv(EnvTransportKind); v != "" {
		cfg.Transport.Kind = v
	}
	if v := os.Getenv(EnvAdminAddress); v != "" {
		cfg.Admin.Address = v
	}
	if v := os.Getenv(EnvMetricsEnabled); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvHealthEnabled); v != "" {
		cfg.Health.Enabled = parseBool(v)
	}
	return nil
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// Validate checks the configuration for validity
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log format: %s (must be json or text)", c.Logging.Format))
	}

	if err := c.Endpoint.Validate(); err != nil {
		return err
	}

	switch c.Transport.Kind {
	case TransportLoopback, TransportSeqpacket:
	default:
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid transport kind: %s (must be loopback or seqpacket)", c.Transport.Kind))
	}
	if c.Transport.InboxSize <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "transport inbox size must be positive")
	}

	if (c.Metrics.Enabled || c.Health.Enabled) && c.Admin.Address == "" {
		return types.NewError(types.ErrCodeInvalidArgument, "admin address required when metrics or health is enabled")
	}
	if c.Health.GoroutineThreshold < 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "goroutine threshold cannot be negative")
	}

	if c.Client.RetryInitialInterval <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "client retry initial interval must be positive")
	}
	if c.Client.RetryMaxInterval < c.Client.RetryInitialInterval {
		return types.NewError(types.ErrCodeInvalidArgument, "client retry max interval must not be below the initial interval")
	}
	if c.Client.DispatchWorkers <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "client dispatch workers must be positive")
	}
	return nil
}

// Validate checks the endpoint section on its own; backend.New uses it too.
func (c EndpointConfig) Validate() error {
	if c.Name == "" {
		return types.NewError(types.ErrCodeInvalidArgument, "endpoint name cannot be empty")
	}
	if c.MaxPacketSize <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "endpoint max packet size must be positive")
	}
	if c.QueueCapacity <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "endpoint queue capacity must be positive")
	}
	if c.ConnectTimeout < 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "endpoint connect timeout cannot be negative")
	}
	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Logging: %s, Endpoint: %s, Transport: %s, Admin: %s, Metrics: %v, Health: %v}",
		c.Logging, c.Endpoint, c.Transport, c.Admin.Address, c.Metrics.Enabled, c.Health.Enabled)
}

func (c LoggingConfig) String() string {
	return fmt.Sprintf("LoggingConfig{Level: %s, Format: %s, Output: %s}", c.Level, c.Format, c.Output)
}

func (c EndpointConfig) String() string {
	return fmt.Sprintf("EndpointConfig{Name: %s, ChannelID: %d, MaxPacketSize: %d, QueueCapacity: %d}",
		c.Name, c.ChannelID, c.MaxPacketSize, c.QueueCapacity)
}

func (c TransportConfig) String() string {
	return fmt.Sprintf("TransportConfig{Kind: %s, InboxSize: %d}", c.Kind, c.InboxSize)
}
