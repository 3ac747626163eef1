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

package store

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongorel/mongorel/internal/lob"
	"github.com/mongorel/mongorel/internal/query"
	"github.com/mongorel/mongorel/internal/schema"
)

// Record is a single model instance.
//
// Large-object fields have per-instance state holders; everything else
// lives in the field/value map keyed by model attribute name.
type Record struct {
	model *schema.Model
	id    primitive.ObjectID
	saved bool
	data  map[string]any
	lobs  map[string]*lob.State
}

// NewRecord creates an unsaved record of the given model.
func NewRecord(m *schema.Model) *Record {
	return &Record{
		model: m,
		data:  map[string]any{},
		lobs:  map[string]*lob.State{},
	}
}

// Model returns the record's model.
func (r *Record) Model() *schema.Model {
	return r.model
}

// ID returns the record's primary key.
func (r *Record) ID() primitive.ObjectID {
	return r.id
}

// Saved reports whether the record has been persisted.
func (r *Record) Saved() bool {
	return r.saved
}

// Set assigns a field value. Large-object fields go through their
// state holder; the primary key is validated at save time.
func (r *Record) Set(field string, v any) {
	if f, ok := r.model.Field(field); ok && f.Kind == schema.KindLargeObject {
		r.lobState(field).Set(v)
		return
	}

	r.data[field] = v
}

// Get returns a plain field value. Large-object fields are read through
// Store.LargeObject.
func (r *Record) Get(field string) any {
	return r.data[field]
}

// lobState returns the state holder for a large-object field,
// creating it on first use.
func (r *Record) lobState(field string) *lob.State {
	s, ok := r.lobs[field]
	if !ok {
		s = new(lob.State)
		r.lobs[field] = s
	}

	return s
}

// LobState exposes a large-object field's state holder.
func (r *Record) LobState(field string) *lob.State {
	return r.lobState(field)
}

// DocModel implements query.Document.
func (r *Record) DocModel() string {
	return r.model.Name()
}

// DocKey implements query.Document.
func (r *Record) DocKey() (any, bool) {
	return r.id, r.saved
}

// check interfaces
var (
	_ query.Document = (*Record)(nil)
)
