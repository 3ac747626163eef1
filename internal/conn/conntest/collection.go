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

// Package conntest provides an in-memory Collection implementation for tests.
package conntest

import (
	"context"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mongorel/mongorel/internal/conn"
	"github.com/mongorel/mongorel/internal/util/must"
)

// Collection is an in-memory conn.Collection.
//
// Filter matching supports top-level equality and single-level dot paths
// into embedded document sequences, which is what the translator emits.
type Collection struct {
	mu      sync.Mutex
	name    string
	docs    []bson.D
	indexes map[string]conn.IndexInfo

	// CreatedIndexes records CreateIndex calls in order.
	CreatedIndexes []string

	// CreateIndexErr, when set, is returned by CreateIndex.
	CreateIndexErr error
}

// NewCollection creates a new empty in-memory collection.
func NewCollection(name string) *Collection {
	return &Collection{
		name:    name,
		indexes: map[string]conn.IndexInfo{},
	}
}

// Name implements conn.Collection.
func (c *Collection) Name() string {
	return c.name
}

// Insert implements conn.Collection.
func (c *Collection) Insert(_ context.Context, doc bson.D) (primitive.ObjectID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := lookup(doc, "_id").(primitive.ObjectID)
	if !ok {
		id = primitive.NewObjectID()
		doc = append(bson.D{{Key: "_id", Value: id}}, doc...)
	}

	c.docs = append(c.docs, doc)

	return id, nil
}

// Replace implements conn.Collection.
func (c *Collection) Replace(_ context.Context, filter, doc bson.D) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, d := range c.docs {
		if matches(d, filter) {
			c.docs[i] = doc
			return nil
		}
	}

	c.docs = append(c.docs, doc)

	return nil
}

// Update implements conn.Collection.
func (c *Collection) Update(_ context.Context, filter, update bson.D, multi bool) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, _ := lookup(update, "$set").(bson.D)

	var n int64

	for i, d := range c.docs {
		if !matches(d, filter) {
			continue
		}

		for _, e := range set {
			c.docs[i] = setValue(c.docs[i], e.Key, e.Value)
		}

		n++

		if !multi {
			break
		}
	}

	return n, nil
}

// Remove implements conn.Collection.
func (c *Collection) Remove(_ context.Context, filter bson.D) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var kept []bson.D
	var n int64

	for _, d := range c.docs {
		if matches(d, filter) {
			n++
			continue
		}

		kept = append(kept, d)
	}

	c.docs = kept

	return n, nil
}

// Find implements conn.Collection.
func (c *Collection) Find(_ context.Context, filter bson.D) ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res []any

	for _, d := range c.docs {
		if matches(d, filter) {
			doc := d
			res = append(res, &doc)
		}
	}

	return res, nil
}

// FindOne implements conn.Collection.
func (c *Collection) FindOne(_ context.Context, filter bson.D, res any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.docs {
		if !matches(d, filter) {
			continue
		}

		// stored documents are known to be marshalable
		return bson.Unmarshal(must.NotFail(bson.Marshal(d)), res)
	}

	return mongo.ErrNoDocuments
}

// IndexInformation implements conn.Collection.
func (c *Collection) IndexInformation(_ context.Context) (map[string]conn.IndexInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make(map[string]conn.IndexInfo, len(c.indexes))
	for name, info := range c.indexes {
		res[name] = info
	}

	return res, nil
}

// CreateIndex implements conn.Collection.
func (c *Collection) CreateIndex(_ context.Context, info conn.IndexInfo) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.CreateIndexErr != nil {
		return "", c.CreateIndexErr
	}

	c.indexes[info.Name] = info
	c.CreatedIndexes = append(c.CreatedIndexes, info.Name)

	return info.Name, nil
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.docs)
}

func lookup(doc bson.D, key string) any {
	for _, e := range doc {
		if e.Key == key {
			return e.Value
		}
	}

	return nil
}

func setValue(doc bson.D, key string, value any) bson.D {
	for i, e := range doc {
		if e.Key == key {
			doc[i].Value = value
			return doc
		}
	}

	return append(doc, bson.E{Key: key, Value: value})
}

func matches(doc, filter bson.D) bool {
	for _, e := range filter {
		if !matchField(doc, e.Key, e.Value) {
			return false
		}
	}

	return true
}

func matchField(doc bson.D, key string, want any) bool {
	if head, rest, ok := strings.Cut(key, "."); ok {
		elems, _ := lookup(doc, head).([]any)
		for _, el := range elems {
			if sub, ok := el.(bson.D); ok && matchField(sub, rest, want) {
				return true
			}
		}

		return false
	}

	return equal(lookup(doc, key), want)
}

func equal(a, b any) bool {
	if as, ok := a.([]any); ok {
		bs, ok := b.([]any)
		if !ok || len(as) != len(bs) {
			return false
		}

		for i := range as {
			if !equal(as[i], bs[i]) {
				return false
			}
		}

		return true
	}

	if ad, ok := a.(bson.D); ok {
		bd, ok := b.(bson.D)
		if !ok || len(ad) != len(bd) {
			return false
		}

		for i := range ad {
			if ad[i].Key != bd[i].Key || !equal(ad[i].Value, bd[i].Value) {
				return false
			}
		}

		return true
	}

	return normalize(a) == normalize(b)
}

// normalize folds integer widths so documents round-tripped through BSON
// still compare equal.
func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	default:
		return v
	}
}

// check interfaces
var (
	_ conn.Collection = (*Collection)(nil)
)
