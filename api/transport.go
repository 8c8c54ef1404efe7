// Package api defines the public contracts between the sysctrl-ipc backend and
// the collaborators it does not own: the channel transport and the dispatcher.
package api

import "errors"

// ErrAlreadyOpen is returned by Transport.Open when another endpoint or an
// earlier start already opened the instance. Callers treat it as success.
var ErrAlreadyOpen = errors.New("transport instance already open")

// ErrNotRegistered is returned by Transport.Send before Register succeeded.
var ErrNotRegistered = errors.New("transport endpoint not registered")

// ErrClosed is returned by transports after Close.
var ErrClosed = errors.New("transport closed")

// EndpointCallbacks are invoked from the transport's own delivery context.
// They must return quickly and never block.
type EndpointCallbacks struct {
	// Bound fires once the remote side has registered the matching endpoint.
	Bound func()
	// Received delivers one inbound message. A nil slice means the transport
	// signalled a message without a payload.
	Received func(data []byte)
}

// EndpointConfig names the endpoint and carries its callbacks.
type EndpointConfig struct {
	Name      string
	Callbacks EndpointCallbacks
}

// Transport is the point-to-point channel primitive.
//
// Send is synchronous: it returns once the bytes are handed to the channel,
// or fails. It never drops silently, and it does not keep data after it
// returns. Received calls are serialized per endpoint.
type Transport interface {
	Open() error
	Register(cfg EndpointConfig) error
	Send(data []byte) error
}
