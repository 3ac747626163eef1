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
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mongorel/mongorel/internal/dberrors"
	"github.com/mongorel/mongorel/internal/schema"
)

// Translator converts predicates and change sets for one model into
// store-native documents. Translation errors are raised before any
// network call.
type Translator struct {
	model      *schema.Model
	refEncoder RefEncoder
}

// NewTranslator creates a translator for the given model.
//
// A nil refEncoder disables automatic referencing: foreign model records
// in data are then rejected as unserializable.
func NewTranslator(m *schema.Model, refEncoder RefEncoder) *Translator {
	return &Translator{
		model:      m,
		refEncoder: refEncoder,
	}
}

// part is a single translated condition.
type part struct {
	col string
	op  Operator
	v   any
}

// Filter translates a predicate tree into a query document.
func (t *Translator) Filter(p Predicate) (bson.D, error) {
	if p == nil {
		return bson.D{}, nil
	}

	var parts []part

	for _, c := range p.conditions() {
		switch c.Op {
		case opYear, opMonth, opDay:
			return nil, dberrors.New(
				dberrors.ErrorCodeUnsupportedQuery,
				"MongoDB does not support year/month/day queries (got %s lookup on field %q)",
				c.Op, c.Field,
			)
		}

		col := t.model.Column(c.Field)

		if attr, ok := c.Value.(Attr); ok {
			if c.Op != opEq {
				return nil, dberrors.New(
					dberrors.ErrorCodeUnsupportedQuery,
					"embedded attribute matchers support equality only (field %q)", c.Field,
				)
			}

			v, err := t.encode(attr.Value)
			if err != nil {
				return nil, err
			}

			parts = append(parts, part{col: col + "." + attr.Key, op: opEq, v: v})

			continue
		}

		v, err := t.encode(c.Value)
		if err != nil {
			return nil, err
		}

		parts = append(parts, part{col: col, op: c.Op, v: v})
	}

	return combine(parts), nil
}

// combine merges translated conditions into a single query document.
// Conditions on distinct columns become separate elements; multiple
// operator conditions on one column share an operator document; anything
// conflicting falls back to $and.
func combine(parts []part) bson.D {
	cols := make([]string, 0, len(parts))
	byCol := map[string][]part{}

	for _, p := range parts {
		if _, ok := byCol[p.col]; !ok {
			cols = append(cols, p.col)
		}

		byCol[p.col] = append(byCol[p.col], p)
	}

	res := bson.D{}
	var conflicts bson.A

	for _, col := range cols {
		ps := byCol[col]

		switch {
		case len(ps) == 1 && ps[0].op == opEq:
			res = append(res, bson.E{Key: col, Value: ps[0].v})

		case allOperators(ps):
			ops := make(bson.D, len(ps))
			for i, p := range ps {
				ops[i] = bson.E{Key: string(p.op), Value: p.v}
			}

			res = append(res, bson.E{Key: col, Value: ops})

		default:
			for _, p := range ps {
				if p.op == opEq {
					conflicts = append(conflicts, bson.D{{Key: col, Value: p.v}})
					continue
				}

				conflicts = append(conflicts, bson.D{{Key: col, Value: bson.D{{Key: string(p.op), Value: p.v}}}})
			}
		}
	}

	if len(conflicts) > 0 {
		res = append(res, bson.E{Key: "$and", Value: conflicts})
	}

	return res
}

func allOperators(ps []part) bool {
	seen := map[Operator]struct{}{}

	for _, p := range ps {
		if p.op == opEq {
			return false
		}

		if _, dup := seen[p.op]; dup {
			return false
		}

		seen[p.op] = struct{}{}
	}

	return true
}

// Update translates a change set into a $set update document.
// Keys are emitted in sorted order for determinism.
func (t *Translator) Update(changes map[string]any) (bson.D, error) {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	set := make(bson.D, 0, len(keys))

	for _, k := range keys {
		v, err := t.encode(changes[k])
		if err != nil {
			return nil, err
		}

		set = append(set, bson.E{Key: t.model.Column(k), Value: v})
	}

	return bson.D{{Key: "$set", Value: set}}, nil
}

// Encode serializes a single data value for storage.
func (t *Translator) Encode(v any) (any, error) {
	return t.encode(v)
}

func (t *Translator) encode(v any) (any, error) {
	switch v := v.(type) {
	case nil, bool, string, int, int32, int64, float64, []byte,
		time.Time, primitive.ObjectID, primitive.DateTime:
		return v, nil

	case Document:
		if t.refEncoder == nil {
			return nil, dberrors.New(
				dberrors.ErrorCodeUnserializableReference,
				"cannot serialize %s record inside document data; enable automatic referencing", v.DocModel(),
			)
		}

		return t.refEncoder(v)

	case Attr:
		return nil, dberrors.New(
			dberrors.ErrorCodeUnsupportedQuery,
			"embedded attribute matcher is not a storable value (key %q)", v.Key,
		)

	case bson.D:
		res := make(bson.D, len(v))
		for i, e := range v {
			ev, err := t.encode(e.Value)
			if err != nil {
				return nil, err
			}

			res[i] = bson.E{Key: e.Key, Value: ev}
		}

		return res, nil

	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		res := make(bson.D, 0, len(keys))
		for _, k := range keys {
			ev, err := t.encode(v[k])
			if err != nil {
				return nil, err
			}

			res = append(res, bson.E{Key: k, Value: ev})
		}

		return res, nil

	case []any:
		res := make([]any, len(v))
		for i, el := range v {
			ev, err := t.encode(el)
			if err != nil {
				return nil, err
			}

			res[i] = ev
		}

		return res, nil

	case bson.A:
		return t.encode([]any(v))

	default:
		// Let the driver's codec handle anything else.
		return v, nil
	}
}
