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

// Package lob manages externally-stored large-object payloads attached
// to model records.
//
// Each field-instance is an explicit state holder. An assigned value is
// held verbatim until save; the first read of a persisted field fetches
// and caches the materialized handle; the cache is authoritative and is
// never re-validated against the store.
package lob

import (
	"bytes"
	"context"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// State is the per-field-instance state holder.
//
// State is not safe for concurrent use; it belongs to a single record
// instance, which is the caller's unit of sharing.
type State struct {
	// Pending assigned value, kept as assigned. A file-like value's
	// stream is not consumed before save.
	raw   any
	dirty bool

	// Cached materialized handle.
	filelike any

	// Current payload id in the backing store.
	oid    primitive.ObjectID
	stored bool
}

// Set assigns a new raw value: bytes, a string, or an io.Reader.
func (s *State) Set(v any) {
	s.raw = v
	s.dirty = true
}

// Get returns the field value: the assigned raw value if present, then
// the cached handle, and otherwise fetches the payload from the bucket
// and caches the handle. A field that was never set and never stored
// returns nil.
func (s *State) Get(ctx context.Context, b Bucket) (any, error) {
	if s.raw != nil {
		return s.raw, nil
	}

	if s.filelike != nil {
		return s.filelike, nil
	}

	if !s.stored {
		return nil, nil
	}

	obj, err := b.Open(ctx, s.oid)
	if err != nil {
		return nil, err
	}

	s.filelike = obj

	return obj, nil
}

// IsCached reports whether a materialized handle is cached.
func (s *State) IsCached() bool {
	return s.filelike != nil
}

// OID returns the current payload id.
func (s *State) OID() (primitive.ObjectID, bool) {
	return s.oid, s.stored
}

// Load resets the state to a persisted payload id, as read from the
// record's document.
func (s *State) Load(oid primitive.ObjectID) {
	*s = State{oid: oid, stored: true}
}

// Field describes one large-object field of a model.
type Field struct {
	Name string

	// Versioning retains prior payloads on overwrite.
	Versioning bool

	// AutoDelete removes the payload when the owning record is deleted.
	AutoDelete bool
}

// Save persists a pending value: the new payload is written and durably
// assigned before the previous one is deleted, so the record never
// references a missing payload. With versioning, prior payloads are
// retained.
func (f *Field) Save(ctx context.Context, b Bucket, s *State) error {
	if !s.dirty {
		return nil
	}

	old, hadOld := s.oid, s.stored

	if s.raw == nil {
		s.oid = primitive.NilObjectID
		s.stored = false
	} else {
		r, err := payloadReader(s.raw)
		if err != nil {
			return err
		}

		id, err := b.Put(ctx, f.Name, r)
		if err != nil {
			return err
		}

		s.oid = id
		s.stored = true
	}

	s.dirty = false

	if hadOld && !f.Versioning {
		if err := b.Delete(ctx, old); err != nil {
			return err
		}
	}

	return nil
}

// OnDelete runs when the owning record is deleted. Payloads of fields
// without autodelete are left orphaned but retrievable.
func (f *Field) OnDelete(ctx context.Context, b Bucket, s *State) error {
	if !f.AutoDelete || !s.stored {
		return nil
	}

	return b.Delete(ctx, s.oid)
}

func payloadReader(v any) (io.Reader, error) {
	switch v := v.(type) {
	case []byte:
		return bytes.NewReader(v), nil
	case string:
		return strings.NewReader(v), nil
	case io.Reader:
		return v, nil
	default:
		return nil, lazyerrors.Errorf("unsupported large-object payload type %T", v)
	}
}
