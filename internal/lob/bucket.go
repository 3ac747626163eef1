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

package lob

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongorel/mongorel/internal/dberrors"
	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// Object is a materialized large-object handle.
type Object struct {
	ID     primitive.ObjectID
	Name   string
	Length int64

	io.Reader
}

// Bucket is a content-addressed large-object store.
type Bucket interface {
	Put(ctx context.Context, name string, r io.Reader) (primitive.ObjectID, error)
	Open(ctx context.Context, id primitive.ObjectID) (*Object, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// GridBucket is a GridFS-backed Bucket.
type GridBucket struct {
	b *gridfs.Bucket
}

// NewGridBucket creates a bucket named after the owning collection.
func NewGridBucket(db *mongo.Database, name string) (*GridBucket, error) {
	b, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	return &GridBucket{b: b}, nil
}

// Put implements Bucket.
func (g *GridBucket) Put(ctx context.Context, name string, r io.Reader) (primitive.ObjectID, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = g.b.SetWriteDeadline(dl)
	}

	id, err := g.b.UploadFromStream(name, r)
	if err != nil {
		return primitive.NilObjectID, lazyerrors.Error(err)
	}

	return id, nil
}

// Open implements Bucket.
func (g *GridBucket) Open(ctx context.Context, id primitive.ObjectID) (*Object, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = g.b.SetReadDeadline(dl)
	}

	ds, err := g.b.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, dberrors.Wrap(dberrors.ErrorCodeMissingPayload, err, "no payload for id %s", id.Hex())
		}

		return nil, lazyerrors.Error(err)
	}

	file := ds.GetFile()

	return &Object{
		ID:     id,
		Name:   file.Name,
		Length: file.Length,
		Reader: ds,
	}, nil
}

// Delete implements Bucket.
func (g *GridBucket) Delete(ctx context.Context, id primitive.ObjectID) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = g.b.SetWriteDeadline(dl)
	}

	if err := g.b.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return dberrors.Wrap(dberrors.ErrorCodeMissingPayload, err, "no payload for id %s", id.Hex())
		}

		return lazyerrors.Error(err)
	}

	return nil
}

// check interfaces
var (
	_ Bucket = (*GridBucket)(nil)
)
