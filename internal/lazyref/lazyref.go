// Copyright 2021 Mongorel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lazyref provides deferred references to foreign model records.
package lazyref

import (
	"context"
	"sync"

	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// Resolver materializes a record by model name and primary key.
type Resolver interface {
	Resolve(ctx context.Context, model string, key any) (any, error)
}

// Ref is a lazy (model, key) reference.
//
// Equality compares the pair only and never forces resolution.
// The first Value call resolves and caches the record for the
// reference's lifetime.
type Ref struct {
	m sync.Mutex

	model    string
	key      any
	resolver Resolver

	wrapped any
	done    bool
}

// New creates a reference to the given model record.
func New(model string, key any, resolver Resolver) *Ref {
	return &Ref{
		model:    model,
		key:      key,
		resolver: resolver,
	}
}

// Model returns the referenced model name.
func (r *Ref) Model() string {
	return r.model
}

// Key returns the referenced primary key.
func (r *Ref) Key() any {
	return r.key
}

// Equal reports whether both references point at the same (model, key)
// pair. Neither side is resolved.
func (r *Ref) Equal(o *Ref) bool {
	if r == nil || o == nil {
		return r == o
	}

	return r.model == o.model && r.key == o.key
}

// Resolved reports whether the record has been materialized.
func (r *Ref) Resolved() bool {
	r.m.Lock()
	defer r.m.Unlock()

	return r.done
}

// Value returns the referenced record, resolving it on first access.
func (r *Ref) Value(ctx context.Context) (any, error) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.done {
		return r.wrapped, nil
	}

	if r.resolver == nil {
		return nil, lazyerrors.Errorf("no resolver for reference to %s", r.model)
	}

	v, err := r.resolver.Resolve(ctx, r.model, r.key)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	r.wrapped = v
	r.done = true

	return v, nil
}
