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
	"context"
	"errors"
	"fmt"
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/srediag/sysctrl-ipc/internal/logger"
	"github.com/srediag/sysctrl-ipc/pkg/types"
)

// Registry tracks independently managed endpoints by name.
type Registry struct {
	endpoints cmap.ConcurrentMap[string, *Endpoint]
	logger    *logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{
		endpoints: cmap.New[*Endpoint](),
		logger:    log.With("component", "ipc_registry"),
	}
}

// Add registers e under its name. Names are unique.
func (r *Registry) Add(e *Endpoint) error {
	if e == nil {
		return types.NewError(types.ErrCodeInvalidArgument, "endpoint cannot be nil")
	}
	if !r.endpoints.SetIfAbsent(e.Name(), e) {
		return types.NewError(types.ErrCodeAlreadyExists, fmt.Sprintf("endpoint %s already registered", e.Name()))
	}
	r.logger.Debug("Endpoint added", "endpoint", e.Name())
	return nil
}

// Get returns the endpoint registered under name
func (r *Registry) Get(name string) (*Endpoint, error) {
	e, ok := r.endpoints.Get(name)
	if !ok {
		return nil, types.NewError(types.ErrCodeNotFound, fmt.Sprintf("endpoint %s not found", name))
	}
	return e, nil
}

// Remove forgets the endpoint without closing it
func (r *Registry) Remove(name string) {
	r.endpoints.Remove(name)
}

// Len returns the number of registered endpoints
func (r *Registry) Len() int {
	return r.endpoints.Count()
}

// Names returns the registered names in lexical order
func (r *Registry) Names() []string {
	names := r.endpoints.Keys()
	sort.Strings(names)
	return names
}

// Endpoints returns the registered endpoints ordered by name
func (r *Registry) Endpoints() []*Endpoint {
	names := r.Names()
	out := make([]*Endpoint, 0, len(names))
	for _, name := range names {
		if e, ok := r.endpoints.Get(name); ok {
			out = append(out, e)
		}
	}
	return out
}

// InitializeAll initializes every endpoint that is not initialized yet and
// returns the joined failures.
func (r *Registry) InitializeAll(ctx context.Context) error {
	var errs []error
	for _, e := range r.Endpoints() {
		if e.initialized.Load() {
			continue
		}
		if err := e.Initialize(ctx); err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every registered endpoint
func (r *Registry) CloseAll() error {
	var errs []error
	for _, e := range r.Endpoints() {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of every endpoint ordered by name
func (r *Registry) Stats() []Stats {
	eps := r.Endpoints()
	out := make([]Stats, 0, len(eps))
	for _, e := range eps {
		out = append(out, e.Stats())
	}
	return out
}
