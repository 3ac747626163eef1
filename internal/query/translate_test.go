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

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongorel/mongorel/internal/dberrors"
	"github.com/mongorel/mongorel/internal/schema"
)

func testModel(t *testing.T) *schema.Model {
	t.Helper()

	m, err := schema.New("RawModel", "rawmodel", []schema.Field{
		{Name: "id", Kind: schema.KindObjectID, PrimaryKey: true},
		{Name: "raw", Kind: schema.KindRaw},
		{Name: "date", Kind: schema.KindDateTime},
		{Name: "title", Column: "foo", Kind: schema.KindString},
		{Name: "owner", Kind: schema.KindForeignKey, Ref: "User"},
	}, nil)
	require.NoError(t, err)

	return m
}

func TestFilterEquality(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(testModel(t), nil)

	filter, err := tr.Filter(Eq("title", "x"))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "foo", Value: "x"}}, filter)

	id := primitive.NewObjectID()
	filter, err = tr.Filter(And(Eq("id", id), Eq("owner", id)))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: id}, {Key: "owner_id", Value: id}}, filter)
}

func TestFilterOperators(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(testModel(t), nil)

	filter, err := tr.Filter(And(Gte("title", "a"), Lt("title", "z")))
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "foo", Value: bson.D{{Key: "$gte", Value: "a"}, {Key: "$lt", Value: "z"}}},
	}, filter)

	filter, err = tr.Filter(In("title", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "foo", Value: bson.D{{Key: "$in", Value: []any{"a", "b"}}}},
	}, filter)
}

func TestFilterConflictingConditions(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(testModel(t), nil)

	filter, err := tr.Filter(And(Eq("title", "a"), Eq("title", "b")))
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "$and", Value: bson.A{
			bson.D{{Key: "foo", Value: "a"}},
			bson.D{{Key: "foo", Value: "b"}},
		}},
	}, filter)
}

// An embedded attribute matcher must match elements partially:
// sequences [{a:1,b:2}] and [{a:1,b:3}] both match A("a", 1),
// while A("b", 2) matches only the former.
func TestFilterEmbeddedAttribute(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(testModel(t), nil)

	filter, err := tr.Filter(Eq("raw", A("a", 1)))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "raw.a", Value: 1}}, filter)

	filter, err = tr.Filter(Eq("raw", A("b", 2)))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "raw.b", Value: 2}}, filter)

	_, err = tr.Filter(Gt("raw", A("a", 1)))
	assert.True(t, dberrors.ErrorCodeIs(err, dberrors.ErrorCodeUnsupportedQuery))
}

func TestFilterDateComponents(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(testModel(t), nil)

	for name, p := range map[string]Predicate{
		"Year":  Year("date", 2011),
		"Month": Month("date", 1),
		"Day":   Day("date", 1),
	} {
		p := p

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := tr.Filter(p)
			require.Error(t, err)
			assert.True(t, dberrors.ErrorCodeIs(err, dberrors.ErrorCodeUnsupportedQuery))
			assert.Contains(t, err.Error(), "MongoDB does not support year/month/day queries")
		})
	}
}

func TestKindMulti(t *testing.T) {
	t.Parallel()

	assert.False(t, KindSave.Multi())
	assert.False(t, KindFind.Multi())
	assert.True(t, KindUpdate.Multi())
	assert.True(t, KindRemove.Multi())
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(testModel(t), nil)

	update, err := tr.Update(map[string]any{"title": "x", "raw": []any{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "raw", Value: []any{1, 2}},
			{Key: "foo", Value: "x"},
		}},
	}, update)
}

type fakeDoc struct {
	model string
	key   any
	saved bool
}

func (d *fakeDoc) DocModel() string    { return d.model }
func (d *fakeDoc) DocKey() (any, bool) { return d.key, d.saved }

func TestEncodeForeignRecord(t *testing.T) {
	t.Parallel()

	doc := &fakeDoc{model: "User", key: primitive.NewObjectID(), saved: true}

	tr := NewTranslator(testModel(t), nil)
	_, err := tr.Encode([]any{"foo", doc})
	require.Error(t, err)
	assert.True(t, dberrors.ErrorCodeIs(err, dberrors.ErrorCodeUnserializableReference))

	enc := func(d Document) (any, error) {
		key, _ := d.DocKey()
		return bson.D{{Key: "$ref", Value: "users"}, {Key: "$id", Value: key}}, nil
	}

	tr = NewTranslator(testModel(t), enc)
	v, err := tr.Encode([]any{"foo", doc})
	require.NoError(t, err)
	assert.Equal(t, []any{"foo", bson.D{{Key: "$ref", Value: "users"}, {Key: "$id", Value: doc.key}}}, v)
}
