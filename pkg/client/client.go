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

// Package client adds caller-side retries on top of an endpoint. The backend
// never retries a rejected send; callers that prefer to wait out a full queue
// use SendWithRetry.
package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/sysctrl-ipc/internal/config"
	"github.com/srediag/sysctrl-ipc/internal/logger"
	"github.com/srediag/sysctrl-ipc/pkg/types"
)

// Sender is the non-blocking send of an endpoint
type Sender interface {
	Send(msg []byte) error
}

// Client retries sends rejected for capacity with exponential backoff
type Client struct {
	sender Sender
	cfg    config.ClientConfig
	logger *logger.Logger

	attempts atomic.Uint64
	retries  atomic.Uint64
}

// New creates a client around sender
func New(sender Sender, cfg config.ClientConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		sender: sender,
		cfg:    cfg,
		logger: log.With("component", "ipc_client"),
	}
}

// Send is SendWithRetry using the client configuration
func (c *Client) Send(ctx context.Context, msg []byte) error {
	n, err := SendWithRetry(ctx, c.sender, msg, c.cfg, func(err error, wait time.Duration) {
		c.retries.Add(1)
		c.logger.Debug("Send retry", "wait", wait.String(), "error", err)
	})
	c.attempts.Add(uint64(n))
	return err
}

// Attempts returns the number of Send calls made on the endpoint
func (c *Client) Attempts() uint64 {
	return c.attempts.Load()
}

// Retries returns the number of attempts that were rejected and retried
func (c *Client) Retries() uint64 {
	return c.retries.Load()
}

// NewBackOff builds the retry schedule described by cfg
func NewBackOff(cfg config.ClientConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if cfg.RetryInitialInterval > 0 {
		b.InitialInterval = cfg.RetryInitialInterval
	}
	if cfg.RetryMaxInterval > 0 {
		b.MaxInterval = cfg.RetryMaxInterval
	}
	b.MaxElapsedTime = cfg.RetryMaxElapsed
	b.Reset()
	return b
}

// SendWithRetry calls s.Send until it succeeds, fails with an error other
// than CAPACITY, the backoff gives up or ctx is done. It returns the number of
// attempts. notify, if set, is called before each retry.
func SendWithRetry(ctx context.Context, s Sender, msg []byte, cfg config.ClientConfig, notify backoff.Notify) (int, error) {
	attempts := 0
	var last error
	op := func() error {
		attempts++
		err := s.Send(msg)
		if err == nil {
			return nil
		}
		last = err
		if types.IsErrCode(err, types.ErrCodeCapacity) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(NewBackOff(cfg), ctx), notify)
	if err == nil {
		return attempts, nil
	}
	if last != nil && types.IsErrCode(last, types.ErrCodeCapacity) {
		return attempts, types.WrapError(types.ErrCodeCapacity,
			fmt.Sprintf("send still rejected after %d attempts", attempts), err)
	}
	return attempts, err
}
