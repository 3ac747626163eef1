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

package conn

import "sync"

// Registry holds connections by logical name.
//
// At most one connection is active per name. Scoped replacement goes
// through Activate, whose release function restores the previous state
// unconditionally.
type Registry struct {
	rw    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: map[string]*Conn{},
	}
}

// Get returns the connection registered under name.
func (r *Registry) Get(name string) (*Conn, bool) {
	r.rw.RLock()
	defer r.rw.RUnlock()

	c, ok := r.conns[name]

	return c, ok
}

// Set registers a connection under name, replacing any previous one.
func (r *Registry) Set(name string, c *Conn) {
	r.rw.Lock()
	defer r.rw.Unlock()

	r.conns[name] = c
}

// Activate registers c under name and returns a release function that
// restores the previous state. Release is idempotent and must be deferred
// by the caller so restore happens even if the scoped body fails.
func (r *Registry) Activate(name string, c *Conn) (release func()) {
	r.rw.Lock()
	prev, had := r.conns[name]
	r.conns[name] = c
	r.rw.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			r.rw.Lock()
			defer r.rw.Unlock()

			if had {
				r.conns[name] = prev
			} else {
				delete(r.conns, name)
			}
		})
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}
