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

// Package store runs model-level operations against the document store.
//
// Every operation goes through the query translator; the connection
// manager supplies collection handles and write-concern flags; the
// large-object field manager intercepts save, load and delete of its
// fields before and after the main document is persisted.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/mongorel/mongorel/internal/conn"
	"github.com/mongorel/mongorel/internal/dberrors"
	"github.com/mongorel/mongorel/internal/lazyref"
	"github.com/mongorel/mongorel/internal/lob"
	"github.com/mongorel/mongorel/internal/query"
	"github.com/mongorel/mongorel/internal/schema"
	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("record not found")

// Config configures a Store.
type Config struct {
	Registry    *schema.Registry
	Collections func(name string) conn.Collection
	Buckets     func(name string) (lob.Bucket, error)

	// AutomaticReferencing converts foreign model records in data into
	// lazy references instead of rejecting them.
	AutomaticReferencing bool

	// TZAware keeps decoded datetimes in UTC.
	TZAware bool

	L *zap.Logger
}

// Store runs operations for registered models.
type Store struct {
	registry *schema.Registry
	colls    func(name string) conn.Collection
	buckets  func(name string) (lob.Bucket, error)
	autoRef  bool
	tzAware  bool
	l        *zap.Logger

	mu          sync.Mutex
	bucketCache map[string]lob.Bucket
}

// New creates a Store from the given configuration.
func New(cfg *Config) (*Store, error) {
	if cfg.Registry == nil || cfg.Collections == nil {
		return nil, lazyerrors.New("registry and collection provider are required")
	}

	l := cfg.L
	if l == nil {
		l = zap.NewNop()
	}

	return &Store{
		registry:    cfg.Registry,
		colls:       cfg.Collections,
		buckets:     cfg.Buckets,
		autoRef:     cfg.AutomaticReferencing,
		tzAware:     cfg.TZAware,
		l:           l,
		bucketCache: map[string]lob.Bucket{},
	}, nil
}

// NewWithConn creates a Store backed by a live connection, with
// GridFS buckets named after each model's collection.
func NewWithConn(c *conn.Conn, registry *schema.Registry, autoRef bool, l *zap.Logger) (*Store, error) {
	return New(&Config{
		Registry:    registry,
		Collections: c.Collection,
		Buckets: func(name string) (lob.Bucket, error) {
			return lob.NewGridBucket(c.Database(), name)
		},
		AutomaticReferencing: autoRef,
		TZAware:              c.TZAware(),
		L:                    l,
	})
}

// ParseID validates a primary key value as a store-native object id.
//
// A non-empty hint is appended to the error message for ids supplied by
// configuration rather than code.
func ParseID(v any, hint string) (primitive.ObjectID, error) {
	switch v := v.(type) {
	case primitive.ObjectID:
		return v, nil

	case string:
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			msg := fmt.Sprintf("primary key values must be strings representing an ObjectId (got %q instead)", v)
			if hint != "" {
				msg += ". " + hint
			}

			return primitive.NilObjectID, dberrors.Wrap(dberrors.ErrorCodeInvalidIdentifier, err, "%s", msg)
		}

		return id, nil

	default:
		return primitive.NilObjectID, dberrors.New(
			dberrors.ErrorCodeInvalidIdentifier,
			"primary key values must be strings representing an ObjectId (got %v of type %T instead)", v, v,
		)
	}
}

func pkField(m *schema.Model) (*schema.Field, bool) {
	for _, f := range m.Fields() {
		if f.PrimaryKey {
			f := f
			return &f, true
		}
	}

	return nil, false
}

func (s *Store) translator(ctx context.Context, m *schema.Model) *query.Translator {
	var enc query.RefEncoder

	if s.autoRef {
		enc = func(d query.Document) (any, error) {
			rec, ok := d.(*Record)
			if !ok {
				return nil, lazyerrors.Errorf("unexpected document type %T", d)
			}

			// An unsaved related record is persisted first so the
			// reference has a key to point at.
			if !rec.saved {
				if err := s.Save(ctx, rec); err != nil {
					return nil, err
				}
			}

			return bson.D{
				{Key: "$ref", Value: rec.model.Collection()},
				{Key: "$id", Value: rec.id},
			}, nil
		}
	}

	return query.NewTranslator(m, enc)
}

func (s *Store) bucketFor(m *schema.Model) (lob.Bucket, error) {
	if s.buckets == nil {
		return nil, lazyerrors.Errorf("no large-object bucket provider for model %s", m.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.bucketCache[m.Collection()]; ok {
		return b, nil
	}

	b, err := s.buckets(m.Collection())
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	s.bucketCache[m.Collection()] = b

	return b, nil
}

// Save persists the record, inserting or replacing by primary key.
// Large-object fields are written to their bucket first; their columns
// store the resulting payload ids.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	m := rec.model

	if pk, ok := pkField(m); ok {
		if v, assigned := rec.data[pk.Name]; assigned {
			id, err := ParseID(v, "")
			if err != nil {
				return err
			}

			rec.id = id
			delete(rec.data, pk.Name)
		}
	}

	if rec.id.IsZero() {
		rec.id = primitive.NewObjectID()
	}

	tr := s.translator(ctx, m)
	doc := bson.D{{Key: "_id", Value: rec.id}}

	for _, f := range m.Fields() {
		if f.PrimaryKey {
			continue
		}

		switch f.Kind {
		case schema.KindLargeObject:
			b, err := s.bucketFor(m)
			if err != nil {
				return err
			}

			lf := &lob.Field{Name: f.Name, Versioning: f.Versioning, AutoDelete: f.AutoDelete}
			st := rec.lobState(f.Name)

			if err = lf.Save(ctx, b, st); err != nil {
				return err
			}

			if oid, stored := st.OID(); stored {
				doc = append(doc, bson.E{Key: f.StorageColumn(), Value: oid})
			} else {
				doc = append(doc, bson.E{Key: f.StorageColumn(), Value: nil})
			}

		case schema.KindForeignKey:
			v, assigned := rec.data[f.Name]
			if !assigned {
				continue
			}

			id, err := s.foreignKey(ctx, v)
			if err != nil {
				return err
			}

			doc = append(doc, bson.E{Key: f.StorageColumn(), Value: id})

		default:
			v, assigned := rec.data[f.Name]
			if !assigned {
				continue
			}

			ev, err := tr.Encode(v)
			if err != nil {
				return err
			}

			doc = append(doc, bson.E{Key: f.StorageColumn(), Value: ev})
		}
	}

	coll := s.colls(m.Collection())

	if rec.saved {
		if err := coll.Replace(ctx, bson.D{{Key: "_id", Value: rec.id}}, doc); err != nil {
			return lazyerrors.Error(err)
		}

		return nil
	}

	if _, err := coll.Insert(ctx, doc); err != nil {
		return lazyerrors.Error(err)
	}

	rec.saved = true

	return nil
}

// foreignKey resolves a foreign key value to the referenced id.
func (s *Store) foreignKey(ctx context.Context, v any) (any, error) {
	switch v := v.(type) {
	case *Record:
		if !v.saved {
			if err := s.Save(ctx, v); err != nil {
				return nil, err
			}
		}

		return v.id, nil

	case *lazyref.Ref:
		return v.Key(), nil

	default:
		id, err := ParseID(v, "")
		if err != nil {
			return nil, err
		}

		return id, nil
	}
}

// Get returns the single record matching the predicate, or ErrNotFound.
func (s *Store) Get(ctx context.Context, m *schema.Model, p query.Predicate) (*Record, error) {
	filter, err := s.translator(ctx, m).Filter(p)
	if err != nil {
		return nil, err
	}

	var doc bson.D

	err = s.colls(m.Collection()).FindOne(ctx, filter, &doc)

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrNotFound
	case err != nil:
		return nil, lazyerrors.Error(err)
	}

	return s.decodeRecord(m, doc)
}

// Find returns all records matching the predicate.
func (s *Store) Find(ctx context.Context, m *schema.Model, p query.Predicate) ([]*Record, error) {
	filter, err := s.translator(ctx, m).Filter(p)
	if err != nil {
		return nil, err
	}

	docs, err := s.colls(m.Collection()).Find(ctx, filter)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	res := make([]*Record, 0, len(docs))

	for _, d := range docs {
		doc, err := resultDocument(d)
		if err != nil {
			return nil, err
		}

		rec, err := s.decodeRecord(m, doc)
		if err != nil {
			return nil, err
		}

		res = append(res, rec)
	}

	return res, nil
}

// resultDocument converts a result of any configured document class
// into the shape the record decoder works on.
func resultDocument(d any) (bson.D, error) {
	switch d := d.(type) {
	case *bson.D:
		return *d, nil
	case bson.D:
		return d, nil
	}

	b, err := bson.Marshal(d)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	var doc bson.D
	if err = bson.Unmarshal(b, &doc); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return doc, nil
}

// Update applies a change set to all records matching the predicate.
//
// Changes touching large-object fields are rejected before any network
// call: a bulk update can't run their write/versioning/delete lifecycle.
func (s *Store) Update(ctx context.Context, m *schema.Model, p query.Predicate, changes map[string]any) (int64, error) {
	names := make([]string, 0, len(changes))
	for k := range changes {
		names = append(names, k)
	}

	sort.Strings(names)

	for _, name := range names {
		if f, ok := m.Field(name); ok && f.Kind == schema.KindLargeObject {
			return 0, dberrors.New(
				dberrors.ErrorCodeRestrictedOperation,
				"updates on large-object fields are not allowed (field %q of model %s)", name, m.Name(),
			)
		}
	}

	tr := s.translator(ctx, m)

	filter, err := tr.Filter(p)
	if err != nil {
		return 0, err
	}

	update, err := tr.Update(changes)
	if err != nil {
		return 0, err
	}

	n, err := s.colls(m.Collection()).Update(ctx, filter, update, query.KindUpdate.Multi())
	if err != nil {
		return 0, lazyerrors.Error(err)
	}

	return n, nil
}

// Delete removes all records matching the predicate, running each
// large-object field's delete hook first.
func (s *Store) Delete(ctx context.Context, m *schema.Model, p query.Predicate) (int64, error) {
	recs, err := s.Find(ctx, m, p)
	if err != nil {
		return 0, err
	}

	for _, rec := range recs {
		for _, f := range m.Fields() {
			if f.Kind != schema.KindLargeObject {
				continue
			}

			st := rec.lobState(f.Name)
			if _, stored := st.OID(); !stored {
				continue
			}

			b, err := s.bucketFor(m)
			if err != nil {
				return 0, err
			}

			lf := &lob.Field{Name: f.Name, Versioning: f.Versioning, AutoDelete: f.AutoDelete}
			if err = lf.OnDelete(ctx, b, st); err != nil {
				return 0, err
			}
		}
	}

	filter, err := s.translator(ctx, m).Filter(p)
	if err != nil {
		return 0, err
	}

	n, err := s.colls(m.Collection()).Remove(ctx, filter)
	if err != nil {
		return 0, lazyerrors.Error(err)
	}

	return n, nil
}

// LargeObject reads a large-object field through its state holder.
func (s *Store) LargeObject(ctx context.Context, rec *Record, field string) (any, error) {
	f, ok := rec.model.Field(field)
	if !ok || f.Kind != schema.KindLargeObject {
		return nil, lazyerrors.Errorf("%s is not a large-object field of model %s", field, rec.model.Name())
	}

	b, err := s.bucketFor(rec.model)
	if err != nil {
		return nil, err
	}

	return rec.lobState(field).Get(ctx, b)
}

// Resolve implements lazyref.Resolver.
func (s *Store) Resolve(ctx context.Context, model string, key any) (any, error) {
	m, ok := s.registry.Model(model)
	if !ok {
		return nil, lazyerrors.Errorf("model %s is not registered", model)
	}

	name := "_id"
	if pk, has := pkField(m); has {
		name = pk.Name
	}

	return s.Get(ctx, m, query.Eq(name, key))
}

func (s *Store) decodeRecord(m *schema.Model, doc bson.D) (*Record, error) {
	rec := NewRecord(m)

	byCol := map[string]schema.Field{}
	for _, f := range m.Fields() {
		byCol[f.StorageColumn()] = f
	}

	for _, e := range doc {
		if e.Key == "_id" {
			if id, ok := e.Value.(primitive.ObjectID); ok {
				rec.id = id
				rec.saved = true
			}

			continue
		}

		f, known := byCol[e.Key]

		name := e.Key
		if known {
			name = f.Name
		}

		if known && f.Kind == schema.KindLargeObject {
			if oid, ok := e.Value.(primitive.ObjectID); ok {
				rec.lobState(name).Load(oid)
			}

			continue
		}

		v, err := s.decodeValue(e.Value)
		if err != nil {
			return nil, err
		}

		rec.data[name] = v
	}

	return rec, nil
}

func (s *Store) decodeValue(v any) (any, error) {
	switch v := v.(type) {
	case bson.D:
		if ref, ok := s.decodeRef(v); ok {
			return ref, nil
		}

		res := make(bson.D, len(v))
		for i, e := range v {
			ev, err := s.decodeValue(e.Value)
			if err != nil {
				return nil, err
			}

			res[i] = bson.E{Key: e.Key, Value: ev}
		}

		return res, nil

	case bson.A:
		return s.decodeSlice(v)

	case []any:
		return s.decodeSlice(v)

	case primitive.DateTime:
		t := v.Time()
		if s.tzAware {
			return t.UTC(), nil
		}

		return t.Local(), nil

	default:
		return v, nil
	}
}

func (s *Store) decodeSlice(v []any) ([]any, error) {
	res := make([]any, len(v))

	for i, el := range v {
		ev, err := s.decodeValue(el)
		if err != nil {
			return nil, err
		}

		res[i] = ev
	}

	return res, nil
}

// decodeRef recognizes a stored {$ref, $id} pair and turns it into a
// lazy reference resolved through this store.
func (s *Store) decodeRef(d bson.D) (*lazyref.Ref, bool) {
	if len(d) != 2 || d[0].Key != "$ref" || d[1].Key != "$id" {
		return nil, false
	}

	collection, ok := d[0].Value.(string)
	if !ok {
		return nil, false
	}

	for _, m := range s.registry.Models() {
		if m.Collection() == collection {
			return lazyref.New(m.Name(), d[1].Value, s), true
		}
	}

	return nil, false
}

// check interfaces
var (
	_ lazyref.Resolver = (*Store)(nil)
)
