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

// Package query translates filter predicate trees into store-native
// query and update documents.
package query

// Kind is the kind of the translated operation.
type Kind int

// Operation kinds.
const (
	KindFind Kind = iota
	KindSave
	KindUpdate
	KindRemove
)

// Multi reports whether the operation targets multiple records.
func (k Kind) Multi() bool {
	return k == KindUpdate || k == KindRemove
}

// Operator is a predicate operator.
type Operator string

// Predicate operators.
const (
	opEq  Operator = "$eq"
	opNe  Operator = "$ne"
	opGt  Operator = "$gt"
	opGte Operator = "$gte"
	opLt  Operator = "$lt"
	opLte Operator = "$lte"
	opIn  Operator = "$in"

	// Date component lookups; unsupported by the store's comparison model.
	opYear  Operator = "year"
	opMonth Operator = "month"
	opDay   Operator = "day"
)

// Predicate is a node of the filter expression tree.
type Predicate interface {
	conditions() []Condition
}

// Condition is a simple predicate on a single field.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

func (c Condition) conditions() []Condition {
	return []Condition{c}
}

// Eq matches records whose field equals value.
func Eq(field string, value any) Condition { return Condition{field, opEq, value} }

// Ne matches records whose field does not equal value.
func Ne(field string, value any) Condition { return Condition{field, opNe, value} }

// Gt matches records whose field is greater than value.
func Gt(field string, value any) Condition { return Condition{field, opGt, value} }

// Gte matches records whose field is greater than or equal to value.
func Gte(field string, value any) Condition { return Condition{field, opGte, value} }

// Lt matches records whose field is less than value.
func Lt(field string, value any) Condition { return Condition{field, opLt, value} }

// Lte matches records whose field is less than or equal to value.
func Lte(field string, value any) Condition { return Condition{field, opLte, value} }

// In matches records whose field equals one of the values.
func In(field string, values ...any) Condition { return Condition{field, opIn, values} }

// Year matches records by the year component of a date field.
func Year(field string, v int) Condition { return Condition{field, opYear, v} }

// Month matches records by the month component of a date field.
func Month(field string, v int) Condition { return Condition{field, opMonth, v} }

// Day matches records by the day component of a date field.
func Day(field string, v int) Condition { return Condition{field, opDay, v} }

type and struct {
	preds []Predicate
}

// And combines predicates; a record matches when all of them match.
func And(preds ...Predicate) Predicate {
	return and{preds: preds}
}

func (a and) conditions() []Condition {
	var res []Condition
	for _, p := range a.preds {
		res = append(res, p.conditions()...)
	}

	return res
}

// Attr is an embedded-attribute matcher, used as an Eq value against a
// field holding a sequence of embedded documents.
//
// It matches any record whose sequence contains an element with the given
// key/value pair, without requiring whole-document equality.
type Attr struct {
	Key   string
	Value any
}

// A creates an embedded-attribute matcher.
func A(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Document is implemented by model records appearing as data values.
type Document interface {
	// DocModel returns the model name.
	DocModel() string

	// DocKey returns the primary key and whether the record is saved.
	DocKey() (any, bool)
}

// RefEncoder encodes a foreign model record as a serializable reference
// value. Installing one enables automatic referencing.
type RefEncoder func(Document) (any, error)
