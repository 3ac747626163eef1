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

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongorel/mongorel/internal/util/lazyerrors"
)

// IndexKeyInfo is a single key of an index.
type IndexKeyInfo struct {
	Column     string
	Descending bool
}

// IndexInfo describes one index of a collection.
type IndexInfo struct {
	Name   string
	Keys   []IndexKeyInfo
	Unique bool
	Sparse bool
}

// Collection is the store collection surface used by the adapter.
//
// Both implementations (plain and instrumented) behave identically;
// selection is explicit configuration via Settings.Debug.
type Collection interface {
	Name() string
	Insert(ctx context.Context, doc bson.D) (primitive.ObjectID, error)
	Replace(ctx context.Context, filter, doc bson.D) error
	Update(ctx context.Context, filter, update bson.D, multi bool) (int64, error)
	Remove(ctx context.Context, filter bson.D) (int64, error)
	Find(ctx context.Context, filter bson.D) ([]any, error)
	FindOne(ctx context.Context, filter bson.D, res any) error
	IndexInformation(ctx context.Context) (map[string]IndexInfo, error)
	CreateIndex(ctx context.Context, info IndexInfo) (string, error)
}

// plainCollection applies per-operation write concerns on top of the driver.
type plainCollection struct {
	name string

	// Driver collection clones with the resolved write concern per kind.
	save   *mongo.Collection
	update *mongo.Collection
	remove *mongo.Collection

	// No write concern; used for reads and index access.
	base *mongo.Collection

	docClass func() any
}

func newPlainCollection(db *mongo.Database, name string, flags map[OpKind]Flags, docClass func() any) *plainCollection {
	clone := func(kind OpKind) *mongo.Collection {
		opts := options.Collection()
		if wc := flags[kind].WriteConcern(); wc != nil {
			opts.SetWriteConcern(wc)
		}

		return db.Collection(name, opts)
	}

	if docClass == nil {
		docClass = func() any { return new(bson.D) }
	}

	return &plainCollection{
		name:     name,
		save:     clone(OpSave),
		update:   clone(OpUpdate),
		remove:   clone(OpRemove),
		base:     db.Collection(name),
		docClass: docClass,
	}
}

func (pc *plainCollection) Name() string {
	return pc.name
}

func (pc *plainCollection) Insert(ctx context.Context, doc bson.D) (primitive.ObjectID, error) {
	res, err := pc.save.InsertOne(ctx, doc)
	if err != nil {
		return primitive.NilObjectID, lazyerrors.Error(err)
	}

	id, _ := res.InsertedID.(primitive.ObjectID)

	return id, nil
}

func (pc *plainCollection) Replace(ctx context.Context, filter, doc bson.D) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := pc.save.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return lazyerrors.Error(err)
	}

	return nil
}

func (pc *plainCollection) Update(ctx context.Context, filter, update bson.D, multi bool) (int64, error) {
	var res *mongo.UpdateResult
	var err error

	if multi {
		res, err = pc.update.UpdateMany(ctx, filter, update)
	} else {
		res, err = pc.update.UpdateOne(ctx, filter, update)
	}

	if err != nil {
		return 0, lazyerrors.Error(err)
	}

	return res.ModifiedCount, nil
}

func (pc *plainCollection) Remove(ctx context.Context, filter bson.D) (int64, error) {
	res, err := pc.remove.DeleteMany(ctx, filter)
	if err != nil {
		return 0, lazyerrors.Error(err)
	}

	return res.DeletedCount, nil
}

func (pc *plainCollection) Find(ctx context.Context, filter bson.D) ([]any, error) {
	cur, err := pc.base.Find(ctx, filter)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	defer cur.Close(ctx)

	var docs []any

	for cur.Next(ctx) {
		doc := pc.docClass()
		if err = cur.Decode(doc); err != nil {
			return nil, lazyerrors.Error(err)
		}

		docs = append(docs, doc)
	}

	if err = cur.Err(); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return docs, nil
}

func (pc *plainCollection) FindOne(ctx context.Context, filter bson.D, res any) error {
	// mongo.ErrNoDocuments must stay recognizable for callers.
	return pc.base.FindOne(ctx, filter).Decode(res)
}

func (pc *plainCollection) IndexInformation(ctx context.Context) (map[string]IndexInfo, error) {
	cur, err := pc.base.Indexes().List(ctx)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	defer cur.Close(ctx)

	res := map[string]IndexInfo{}

	for cur.Next(ctx) {
		var spec struct {
			Name   string `bson:"name"`
			Key    bson.D `bson:"key"`
			Unique bool   `bson:"unique"`
			Sparse bool   `bson:"sparse"`
		}

		if err = cur.Decode(&spec); err != nil {
			return nil, lazyerrors.Error(err)
		}

		info := IndexInfo{
			Name:   spec.Name,
			Unique: spec.Unique,
			Sparse: spec.Sparse,
		}

		for _, e := range spec.Key {
			info.Keys = append(info.Keys, IndexKeyInfo{
				Column:     e.Key,
				Descending: descending(e.Value),
			})
		}

		res[spec.Name] = info
	}

	if err = cur.Err(); err != nil {
		return nil, lazyerrors.Error(err)
	}

	return res, nil
}

func (pc *plainCollection) CreateIndex(ctx context.Context, info IndexInfo) (string, error) {
	keys := make(bson.D, len(info.Keys))

	for i, k := range info.Keys {
		dir := int32(1)
		if k.Descending {
			dir = -1
		}

		keys[i] = bson.E{Key: k.Column, Value: dir}
	}

	opts := options.Index().SetName(info.Name)

	if info.Unique {
		opts.SetUnique(true)
	}

	if info.Sparse {
		opts.SetSparse(true)
	}

	name, err := pc.base.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
	if err != nil {
		return "", lazyerrors.Error(err)
	}

	return name, nil
}

// descending reports whether an index key value from the server means
// a descending direction.
func descending(v any) bool {
	switch v := v.(type) {
	case int32:
		return v < 0
	case int64:
		return v < 0
	case float64:
		return v < 0
	default:
		return false
	}
}

// check interfaces
var (
	_ Collection = (*plainCollection)(nil)
)
