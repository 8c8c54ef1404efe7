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

// Package types holds the error taxonomy shared by every sysctrl-ipc package.
package types

import "errors"

// Error represents an error with a stable code and additional context
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same code, so that
// errors.Is(err, types.ErrCapacity) matches any capacity failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new error with code and message
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with code and message
func WrapError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsErrCode checks if an error, or any error it wraps, has a specific code
func IsErrCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetErrorCode returns the outermost error code found in err's chain
func GetErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Error codes
const (
	// ErrCodeConfiguration marks a build/config mismatch between the two cores.
	ErrCodeConfiguration = "CONFIGURATION"
	// ErrCodeProtocol marks a malformed or spurious notification from the peer.
	ErrCodeProtocol          = "PROTOCOL"
	ErrCodeTransport         = "TRANSPORT"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeSize              = "SIZE"
	ErrCodeCapacity          = "CAPACITY"
	ErrCodeConnectionTimeout = "CONNECTION_TIMEOUT"
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeUnavailable       = "UNAVAILABLE"
	ErrCodeInternal          = "INTERNAL"
)

// Sentinels for errors.Is matching. They compare by code only.
var (
	ErrConfiguration     = NewError(ErrCodeConfiguration, "configuration error")
	ErrProtocol          = NewError(ErrCodeProtocol, "protocol error")
	ErrTransport         = NewError(ErrCodeTransport, "transport error")
	ErrInvalidState      = NewError(ErrCodeInvalidState, "invalid state")
	ErrSize              = NewError(ErrCodeSize, "size error")
	ErrCapacity          = NewError(ErrCodeCapacity, "capacity error")
	ErrConnectionTimeout = NewError(ErrCodeConnectionTimeout, "connection timeout")
	ErrInvalidArgument   = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrNotFound          = NewError(ErrCodeNotFound, "not found")
	ErrAlreadyExists     = NewError(ErrCodeAlreadyExists, "already exists")
	ErrUnavailable       = NewError(ErrCodeUnavailable, "unavailable")
)
