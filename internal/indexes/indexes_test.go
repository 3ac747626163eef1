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

package indexes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongorel/mongorel/internal/conn"
	"github.com/mongorel/mongorel/internal/conn/conntest"
	"github.com/mongorel/mongorel/internal/schema"
	"github.com/mongorel/mongorel/internal/util/testutil"
)

func indexTestModel(t *testing.T) *schema.Model {
	t.Helper()

	m, err := schema.New("IndexTestModel", "indextestmodel", []schema.Field{
		{Name: "id", Kind: schema.KindObjectID, PrimaryKey: true},
		{Name: "regular_index", Kind: schema.KindInt, Index: true},
		{Name: "custom_column", Column: "foo", Kind: schema.KindInt, Index: true},
		{Name: "descending_index", Kind: schema.KindInt, Index: true, Descending: true},
		{Name: "descending_custom", Column: "bar", Kind: schema.KindInt, Index: true, Descending: true},
		{Name: "sparse_index", Kind: schema.KindInt, Index: true, Sparse: true},
		{Name: "sparse_index_unique", Kind: schema.KindInt, Index: true, Sparse: true, Unique: true},
		{Name: "foreignkey_index", Kind: schema.KindForeignKey, Ref: "Other", Index: true},
	}, []schema.Index{
		{Keys: []schema.IndexKey{
			{Field: "regular_index", Direction: schema.Ascending},
			{Field: "custom_column", Direction: schema.Ascending},
		}},
	})
	require.NoError(t, err)

	return m
}

func TestPlan(t *testing.T) {
	t.Parallel()

	plan := Plan(indexTestModel(t))

	names := make([]string, len(plan))
	for i, ix := range plan {
		names[i] = ix.Name
	}

	assert.Equal(t, []string{
		"regular_index_1",
		"foo_1",
		"descending_index_-1",
		"bar_-1",
		"sparse_index_1",
		"sparse_index_unique_1",
		"foreignkey_index_id_1",
		"regular_index_1_foo_1",
	}, names)

	byName := map[string]conn.IndexInfo{}
	for _, ix := range plan {
		byName[ix.Name] = ix
	}

	assert.True(t, byName["sparse_index_1"].Sparse)
	assert.True(t, byName["sparse_index_unique_1"].Sparse)
	assert.True(t, byName["sparse_index_unique_1"].Unique)
	assert.False(t, byName["regular_index_1"].Unique)

	compound := byName["regular_index_1_foo_1"]
	require.Len(t, compound.Keys, 2)
	assert.Equal(t, "regular_index", compound.Keys[0].Column)
	assert.Equal(t, "foo", compound.Keys[1].Column)
}

func TestPlanCompoundDirections(t *testing.T) {
	t.Parallel()

	m, err := schema.New("IndexTestModel2", "indextestmodel2", []schema.Field{
		{Name: "a", Kind: schema.KindInt},
		{Name: "b", Kind: schema.KindInt},
	}, []schema.Index{
		{Keys: []schema.IndexKey{
			{Field: "a", Direction: schema.Ascending},
			{Field: "b", Direction: schema.Descending},
		}},
	})
	require.NoError(t, err)

	plan := Plan(m)
	require.Len(t, plan, 1)
	assert.Equal(t, "a_1_b_-1", plan[0].Name)
	assert.Equal(t, []conn.IndexKeyInfo{
		{Column: "a", Descending: false},
		{Column: "b", Descending: true},
	}, plan[0].Keys)
}

func TestSyncIdempotent(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)
	c := conntest.NewCollection("indextestmodel")
	m := indexTestModel(t)

	created, err := Sync(ctx, c, m, testutil.Logger(t))
	require.NoError(t, err)
	assert.Equal(t, len(Plan(m)), created)

	created, err = Sync(ctx, c, m, testutil.Logger(t))
	require.NoError(t, err)
	assert.Zero(t, created)

	// no duplicates
	assert.Len(t, c.CreatedIndexes, len(Plan(m)))

	info, err := c.IndexInformation(ctx)
	require.NoError(t, err)
	assert.Contains(t, info, "foreignkey_index_id_1")
	assert.Contains(t, info, "bar_-1")
}

func TestSyncFailure(t *testing.T) {
	t.Parallel()

	ctx := testutil.Ctx(t)
	c := conntest.NewCollection("indextestmodel")
	c.CreateIndexErr = errors.New("index build failed")

	created, err := Sync(ctx, c, indexTestModel(t), nil)
	require.Error(t, err)
	assert.Zero(t, created)
	assert.Contains(t, err.Error(), "regular_index_1")
}
