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
	"errors"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongorel/mongorel/internal/util/testutil"
)

// stubCollection returns canned results so the wrapper's pass-through
// behavior can be checked.
type stubCollection struct {
	id      primitive.ObjectID
	docs    []any
	findErr error
}

func (s *stubCollection) Name() string { return "stub" }

func (s *stubCollection) Insert(context.Context, bson.D) (primitive.ObjectID, error) {
	return s.id, nil
}

func (s *stubCollection) Replace(context.Context, bson.D, bson.D) error {
	return nil
}

func (s *stubCollection) Update(context.Context, bson.D, bson.D, bool) (int64, error) {
	return 3, nil
}

func (s *stubCollection) Remove(context.Context, bson.D) (int64, error) {
	return 1, nil
}

func (s *stubCollection) Find(context.Context, bson.D) ([]any, error) {
	return s.docs, s.findErr
}

func (s *stubCollection) FindOne(context.Context, bson.D, any) error {
	return nil
}

func (s *stubCollection) IndexInformation(context.Context) (map[string]IndexInfo, error) {
	return map[string]IndexInfo{"_id_": {Name: "_id_"}}, nil
}

func (s *stubCollection) CreateIndex(context.Context, IndexInfo) (string, error) {
	return "raw_1", nil
}

func TestDebugCollectionPassThrough(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	stub := &stubCollection{
		id:   primitive.NewObjectID(),
		docs: []any{&bson.D{{Key: "_id", Value: primitive.NewObjectID()}}},
	}

	m := NewMetrics()
	dc := newDebugCollection(stub, m, testutil.Logger(t))

	assert.Equal(t, "stub", dc.Name())

	id, err := dc.Insert(ctx, bson.D{})
	require.NoError(t, err)
	assert.Equal(t, stub.id, id)

	docs, err := dc.Find(ctx, bson.D{})
	require.NoError(t, err)
	assert.Equal(t, stub.docs, docs)

	n, err := dc.Update(ctx, bson.D{}, bson.D{}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	info, err := dc.IndexInformation(ctx)
	require.NoError(t, err)
	assert.Contains(t, info, "_id_")

	// one counter and one histogram series per (collection, operation)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.requests.WithLabelValues("stub", "insert", "ok")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.requests.WithLabelValues("stub", "find", "ok")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.requests.WithLabelValues("stub", "update", "ok")))
	assert.Equal(t, 8, promtestutil.CollectAndCount(m))
}

func TestDebugCollectionError(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)

	stub := &stubCollection{findErr: errors.New("boom")}

	m := NewMetrics()
	dc := newDebugCollection(stub, m, testutil.Logger(t))

	_, err := dc.Find(ctx, bson.D{})
	assert.EqualError(t, err, "boom")

	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.requests.WithLabelValues("stub", "find", "error")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(m.requests.WithLabelValues("stub", "find", "ok")))
}

// check interfaces
var (
	_ Collection = (*stubCollection)(nil)
)
