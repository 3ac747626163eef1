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

// Package schema provides model descriptors consumed by the adapter.
//
// A model descriptor is produced once at schema-registration time and is
// immutable afterwards. The framework layer supplies the ordered field list
// and declared index specifications; nothing here is reflected at runtime.
package schema

import (
	"sort"
	"sync"

	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// Direction is an index key direction.
type Direction int8

// Index key directions.
const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// Kind is the semantic type of a field.
type Kind int

// Field kinds.
const (
	KindObjectID Kind = iota // store-native identifier
	KindString
	KindInt
	KindFloat
	KindBool
	KindDateTime
	KindRaw         // schema-free value, including lists of embedded documents
	KindForeignKey  // reference to another model by primary key
	KindLargeObject // payload stored in the large-object store, column holds the id
)

// IndexKey is a single (field, direction) pair of a compound index declaration.
type IndexKey struct {
	Field     string
	Direction Direction
}

// Index is a declared index specification.
// Key order equals declaration order.
type Index struct {
	Keys   []IndexKey
	Unique bool
	Sparse bool
}

// Field describes a single model field.
type Field struct {
	Name   string
	Column string // storage column override; empty means Name
	Kind   Kind

	PrimaryKey bool

	// Single-field index spec.
	Index      bool
	Descending bool
	Unique     bool
	Sparse     bool

	Ref string // referenced model name for KindForeignKey

	// Large-object lifecycle flags.
	Versioning bool
	AutoDelete bool
}

// StorageColumn returns the column the field is stored under.
//
// The primary key is always stored as _id; foreign keys are stored
// under their id column.
func (f *Field) StorageColumn() string {
	if f.PrimaryKey {
		return "_id"
	}

	col := f.Column
	if col == "" {
		col = f.Name
	}

	if f.Kind == KindForeignKey {
		col += "_id"
	}

	return col
}

// Model is an immutable model descriptor.
type Model struct {
	name       string
	collection string
	fields     []Field
	byName     map[string]int
	indexes    []Index
}

// New validates the given descriptor data and returns an immutable Model.
func New(name, collection string, fields []Field, indexes []Index) (*Model, error) {
	if name == "" || collection == "" {
		return nil, lazyerrors.New("model name and collection must not be empty")
	}

	byName := make(map[string]int, len(fields))

	for i, f := range fields {
		if f.Name == "" {
			return nil, lazyerrors.Errorf("model %s: field %d has no name", name, i)
		}

		if _, dup := byName[f.Name]; dup {
			return nil, lazyerrors.Errorf("model %s: duplicate field %s", name, f.Name)
		}

		if f.Kind == KindForeignKey && f.Ref == "" {
			return nil, lazyerrors.Errorf("model %s: foreign key field %s has no referenced model", name, f.Name)
		}

		byName[f.Name] = i
	}

	for _, ix := range indexes {
		if len(ix.Keys) == 0 {
			return nil, lazyerrors.Errorf("model %s: index with no keys", name)
		}

		for _, k := range ix.Keys {
			if _, ok := byName[k.Field]; !ok {
				return nil, lazyerrors.Errorf("model %s: index references unknown field %s", name, k.Field)
			}
		}
	}

	return &Model{
		name:       name,
		collection: collection,
		fields:     fields,
		byName:     byName,
		indexes:    indexes,
	}, nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Collection returns the storage collection name.
func (m *Model) Collection() string { return m.collection }

// Fields returns the ordered field list.
func (m *Model) Fields() []Field { return m.fields }

// Field returns the named field.
func (m *Model) Field(name string) (*Field, bool) {
	i, ok := m.byName[name]
	if !ok {
		return nil, false
	}

	return &m.fields[i], true
}

// Indexes returns the declared compound index specifications.
func (m *Model) Indexes() []Index { return m.indexes }

// Column resolves a model attribute name to its storage column.
//
// Unknown names resolve to themselves; the store is schema-flexible and
// ad-hoc keys are valid query targets.
func (m *Model) Column(name string) string {
	if f, ok := m.Field(name); ok {
		return f.StorageColumn()
	}

	return name
}

// Registry holds registered models by name.
type Registry struct {
	rw     sync.RWMutex
	models map[string]*Model
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: map[string]*Model{},
	}
}

// Register adds a model to the registry.
func (r *Registry) Register(m *Model) error {
	r.rw.Lock()
	defer r.rw.Unlock()

	if _, dup := r.models[m.Name()]; dup {
		return lazyerrors.Errorf("model %s is already registered", m.Name())
	}

	r.models[m.Name()] = m

	return nil
}

// Model returns the registered model with the given name.
func (r *Registry) Model(name string) (*Model, bool) {
	r.rw.RLock()
	defer r.rw.RUnlock()

	m, ok := r.models[name]

	return m, ok
}

// Models returns all registered models sorted by name.
func (r *Registry) Models() []*Model {
	r.rw.RLock()
	defer r.rw.RUnlock()

	res := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		res = append(res, m)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })

	return res
}
