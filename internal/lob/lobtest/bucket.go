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

// Package lobtest provides an in-memory Bucket implementation for tests.
package lobtest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongorel/mongorel/internal/dberrors"
	"github.com/mongorel/mongorel/internal/lob"
	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// Bucket is an in-memory lob.Bucket.
type Bucket struct {
	mu       sync.Mutex
	payloads map[primitive.ObjectID][]byte
	names    map[primitive.ObjectID]string
}

// NewBucket creates a new empty in-memory bucket.
func NewBucket() *Bucket {
	return &Bucket{
		payloads: map[primitive.ObjectID][]byte{},
		names:    map[primitive.ObjectID]string{},
	}
}

// Put implements lob.Bucket.
func (b *Bucket) Put(_ context.Context, name string, r io.Reader) (primitive.ObjectID, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return primitive.NilObjectID, lazyerrors.Error(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := primitive.NewObjectID()
	b.payloads[id] = data
	b.names[id] = name

	return id, nil
}

// Open implements lob.Bucket.
func (b *Bucket) Open(_ context.Context, id primitive.ObjectID) (*lob.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.payloads[id]
	if !ok {
		return nil, dberrors.New(dberrors.ErrorCodeMissingPayload, "no payload for id %s", id.Hex())
	}

	return &lob.Object{
		ID:     id,
		Name:   b.names[id],
		Length: int64(len(data)),
		Reader: bytes.NewReader(data),
	}, nil
}

// Delete implements lob.Bucket.
func (b *Bucket) Delete(_ context.Context, id primitive.ObjectID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.payloads[id]; !ok {
		return dberrors.New(dberrors.ErrorCodeMissingPayload, "no payload for id %s", id.Hex())
	}

	delete(b.payloads, id)
	delete(b.names, id)

	return nil
}

// Len returns the number of stored payloads.
func (b *Bucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.payloads)
}

// check interfaces
var (
	_ lob.Bucket = (*Bucket)(nil)
)
