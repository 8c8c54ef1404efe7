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
	"github.com/srediag/sysctrl-ipc/internal/logger"
	"github.com/srediag/sysctrl-ipc/internal/restart"
	"github.com/srediag/sysctrl-ipc/pkg/types"
)

// ErrorKind classifies a failure reported to the ErrorHandler
type ErrorKind int

const (
	// KindConfiguration: inbound payload larger than the configured maximum.
	KindConfiguration ErrorKind = iota + 1
	// KindProtocol: inbound notification without a payload.
	KindProtocol
	KindTransportOpen
	KindEndpointRegister
	// KindTransmit: Transport.Send failed while draining the queue.
	KindTransmit
)

// String returns the metric/log label of the kind
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindProtocol:
		return "protocol"
	case KindTransportOpen:
		return "transport_open"
	case KindEndpointRegister:
		return "endpoint_register"
	case KindTransmit:
		return "transmit"
	default:
		return "unknown"
	}
}

// Code maps the kind onto the shared error taxonomy
func (k ErrorKind) Code() string {
	switch k {
	case KindConfiguration:
		return types.ErrCodeConfiguration
	case KindProtocol:
		return types.ErrCodeProtocol
	case KindTransportOpen, KindEndpointRegister, KindTransmit:
		return types.ErrCodeTransport
	default:
		return types.ErrCodeInternal
	}
}

// ErrorHandler observes backend failures. When fatal is true the handler is
// expected to escalate; the backend makes no further progress guarantees.
// Report may be called from the transport's delivery context and must not block
// on backend operations.
type ErrorHandler interface {
	Report(kind ErrorKind, err error, fatal bool)
}

// ErrorHandlerFunc adapts a function to ErrorHandler
type ErrorHandlerFunc func(kind ErrorKind, err error, fatal bool)

// Report implements ErrorHandler
func (f ErrorHandlerFunc) Report(kind ErrorKind, err error, fatal bool) {
	f(kind, err, fatal)
}

// DefaultErrorHandler logs every report and escalates fatal ones to a warm
// restart of the process.
type DefaultErrorHandler struct {
	logger   *logger.Logger
	escalate func(kind ErrorKind, err error)
}

// NewDefaultErrorHandler creates the default policy. A nil escalate selects
// restart.WarmOrExit.
func NewDefaultErrorHandler(log *logger.Logger, escalate func(kind ErrorKind, err error)) *DefaultErrorHandler {
	if log == nil {
		log = logger.NewNop()
	}
	h := &DefaultErrorHandler{
		logger:   log.With("component", "ipc_error_policy"),
		escalate: escalate,
	}
	if h.escalate == nil {
		h.escalate = h.warmRestart
	}
	return h
}

// Report implements ErrorHandler
func (h *DefaultErrorHandler) Report(kind ErrorKind, err error, fatal bool) {
	switch kind {
	case KindConfiguration:
		h.logger.Error("Received data is too long, configuration mismatch", "error", err)
	case KindProtocol:
		h.logger.Error("No data in received message", "error", err)
	case KindTransportOpen:
		h.logger.Error("Transport open instance failure", "error", err)
	case KindEndpointRegister:
		h.logger.Error("Transport register endpoint failure", "error", err)
	case KindTransmit:
		h.logger.Error("Transport send failure", "error", err)
	default:
		h.logger.Error("Undefined error", "kind", int(kind), "error", err)
	}

	if fatal {
		h.escalate(kind, err)
	}
}

func (h *DefaultErrorHandler) warmRestart(kind ErrorKind, err error) {
	h.logger.Error("Fatal error, restarting", "kind", kind.String(), "error", err)
	restart.WarmOrExit(func(rerr error) {
		h.logger.Error("Warm restart failed", "error", rerr)
	})
}
